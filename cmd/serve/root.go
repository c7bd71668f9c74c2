package serve

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/dgrid/dgrid/cmd/util"
	"github.com/dgrid/dgrid/lib/rc"
	"github.com/dgrid/dgrid/rpc/common"
)

var (
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start a local grid cluster",
		Long: `Start a cluster of in-process members listening on 127.0.0.1. The cluster is either described by an xml configuration file or by the flags.
The configuration can be set via command line flags or environment variables. The format of the environment variables is DGRID_<flag> (e.g. DGRID_PARTITION_COUNT=31)`,
		PreRunE: processConfig,
		RunE:    run,
	}

	serveConfig struct {
		xml             string
		members         int
		logLevel        string
		metricsEndpoint string
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path of an xml cluster configuration. If set, cluster-name, port and partition-count are ignored"))

	key = "cluster-name"
	ServeCmd.PersistentFlags().String(key, "dev", cmdUtil.WrapString("Name clients must use to join the cluster"))

	key = "members"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Number of members to start"))

	key = "port"
	ServeCmd.PersistentFlags().Int(key, 5701, cmdUtil.WrapString("Port of the first member, every further member uses the next port (0 picks free ports)"))

	key = "partition-count"
	ServeCmd.PersistentFlags().Int(key, int(rc.DefaultPartitionCount), cmdUtil.WrapString("Number of partitions the keys are distributed over"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address on which Prometheus metrics are served under /metrics (e.g. 127.0.0.1:9090). Empty disables the endpoint"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the flags and environment variables into the serve configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveConfig.members = viper.GetInt("members")
	serveConfig.logLevel = viper.GetString("log-level")
	serveConfig.metricsEndpoint = viper.GetString("metrics-endpoint")
	if serveConfig.members <= 0 {
		return fmt.Errorf("members must be positive, got %d", serveConfig.members)
	}
	if _, err := common.ParseLogLevel(serveConfig.logLevel); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to read cluster configuration: %w", err)
		}
		serveConfig.xml = string(data)
		return nil
	}

	serveConfig.xml = clusterXML(
		viper.GetString("cluster-name"),
		viper.GetInt("port"),
		viper.GetInt("partition-count"),
	)
	return nil
}

// run starts the cluster and blocks until the process is interrupted
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveConfig.logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := rc.NewController()
	ctrl.SetLogLevel(serveConfig.logLevel)

	info, err := ctrl.CreateCluster("", serveConfig.xml)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrl.ShutdownCluster(info.ID); err != nil {
			rc.Logger.Errorf("Shutdown of cluster %s failed: %v", info.Name, err)
		}
	}()

	for i := 0; i < serveConfig.members; i++ {
		m, err := ctrl.StartMember(info.ID)
		if err != nil {
			return err
		}
		fmt.Printf("member %s listening on %s\n", m.UUID, m.Address())
	}
	fmt.Printf("cluster %q is running with %d partitions\n", info.Name, info.PartitionCount)

	if serveConfig.metricsEndpoint != "" {
		srv := metricsServer(ctrl, info, serveConfig.metricsEndpoint)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	fmt.Println("shutting down...")
	return nil
}

// metricsServer serves the process metrics and the cluster gauges in
// Prometheus format
func metricsServer(ctrl *rc.Controller, info rc.Cluster, addr string) *http.Server {
	set := metrics.NewSet()
	set.NewGauge(fmt.Sprintf(`dgrid_cluster_members{cluster=%q}`, info.Name), func() float64 {
		members, err := ctrl.Members(info.ID)
		if err != nil {
			return 0
		}
		return float64(len(members))
	})
	set.NewGauge(fmt.Sprintf(`dgrid_cluster_view_version{cluster=%q}`, info.Name), func() float64 {
		c, err := ctrl.Cluster(info.ID)
		if err != nil {
			return 0
		}
		return float64(c.Version())
	})
	set.NewGauge(fmt.Sprintf(`dgrid_cluster_partitions{cluster=%q}`, info.Name), func() float64 {
		return float64(info.PartitionCount)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
		set.WritePrometheus(w)
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rc.Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
	fmt.Printf("metrics available on http://%s/metrics\n", addr)
	return srv
}

// clusterXML renders the cluster configuration of the flags
func clusterXML(name string, port, partitionCount int) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(name))
	return fmt.Sprintf(`<grid>
  <cluster-name>%s</cluster-name>
  <properties>
    <property name="partition.count">%d</property>
  </properties>
  <network>
    <port auto-increment="true">%d</port>
  </network>
</grid>`, escaped.String(), partitionCount, port)
}
