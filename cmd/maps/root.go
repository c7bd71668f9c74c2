package maps

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgrid/dgrid/cmd/util"
	"github.com/dgrid/dgrid/lib/imap"
	"github.com/dgrid/dgrid/rpc/client"
	"github.com/dgrid/dgrid/rpc/common"
)

var (
	gridClient *client.Client
	gridMap    imap.IMap

	// MapCommands represents the map command group
	MapCommands = &cobra.Command{
		Use:                "map",
		Short:              "Perform distributed map operations",
		PersistentPreRunE:  setupMapClient,
		PersistentPostRunE: shutdownMapClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common connection flags to the map command
	util.SetupClientFlags(MapCommands)

	MapCommands.PersistentFlags().String("name", "default", util.WrapString("Name of the distributed map"))

	// Add subcommands
	MapCommands.AddCommand(putCmd)
	MapCommands.AddCommand(getCmd)
	MapCommands.AddCommand(removeCmd)
	MapCommands.AddCommand(deleteCmd)
	MapCommands.AddCommand(hasCmd)
	MapCommands.AddCommand(sizeCmd)
	MapCommands.AddCommand(clearCmd)
	MapCommands.AddCommand(destroyCmd)
	MapCommands.AddCommand(valuesCmd)
	MapCommands.AddCommand(keysCmd)
	MapCommands.AddCommand(entriesCmd)
	MapCommands.AddCommand(aggregateCmd)
	MapCommands.AddCommand(membersCmd)
	MapCommands.AddCommand(perfTestCmd)
}

// setupMapClient connects the grid client and resolves the map proxy
func setupMapClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	common.InitLoggers(config.LogLevel)

	var err error
	gridClient, err = client.NewClient(context.Background(), config)
	if err != nil {
		return err
	}
	gridMap = gridClient.GetMap(viper.GetString("name"))
	return nil
}

func shutdownMapClient(_ *cobra.Command, _ []string) error {
	if gridClient != nil {
		gridClient.Shutdown()
	}
	return nil
}
