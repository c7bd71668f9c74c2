package maps

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgrid/dgrid/cmd/util"
	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/predicate"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key and prints the previous value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := gridMap.Put(cmd.Context(), util.ParseValue(args[0]), util.ParseValue(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, previous=%v\n", args[0], prev)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := gridMap.Get(cmd.Context(), util.ParseValue(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t, value=%v\n", args[0], value != nil, value)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key] [value]",
		Short: "Removes a key, if a value is given only when it is mapped to that value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := util.ParseValue(args[0])
			if len(args) == 2 {
				removed, err := gridMap.RemoveIfSame(cmd.Context(), key, util.ParseValue(args[1]))
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, removed=%t\n", args[0], removed)
				return nil
			}
			prev, err := gridMap.Remove(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, removed=%t, previous=%v\n", args[0], prev != nil, prev)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gridMap.Delete(cmd.Context(), util.ParseValue(args[0])); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := gridMap.ContainsKey(cmd.Context(), util.ParseValue(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the number of entries of the map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, err := gridMap.Size(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("map=%s, size=%d\n", gridMap.Name(), size)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all entries of the map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := gridMap.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		},
	}
	destroyCmd = &cobra.Command{
		Use:   "destroy",
		Short: "Destroys the map and all its data on the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := gridMap.Destroy(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("destroy successfully")
			return nil
		},
	}
	valuesCmd = &cobra.Command{
		Use:   "values",
		Short: "Prints the values matching a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := queryPredicate()
			if err != nil {
				return err
			}
			values, err := gridMap.ValuesWithPredicate(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Printf("%v\n", v)
			}
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Prints the keys of the entries matching a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := queryPredicate()
			if err != nil {
				return err
			}
			keys, err := gridMap.KeySetWithPredicate(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Printf("%v\n", k)
			}
			return nil
		},
	}
	entriesCmd = &cobra.Command{
		Use:   "entries",
		Short: "Prints the entries matching a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := queryPredicate()
			if err != nil {
				return err
			}
			entries, err := gridMap.EntrySetWithPredicate(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%v=%v\n", e.Key, e.Value)
			}
			return nil
		},
	}
	aggregateCmd = &cobra.Command{
		Use:   "aggregate [count|distinct|sum|avg|min|max]",
		Short: "Aggregates the values matching a query on the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agg, err := parseAggregator(args[0], viper.GetString("attribute"))
			if err != nil {
				return err
			}
			result, err := gridMap.AggregateWithPredicate(cmd.Context(), agg, util.ParseWhere(viper.GetString("where")))
			if err != nil {
				return err
			}
			fmt.Printf("%s=%v\n", agg.Kind(), result)
			return nil
		},
	}
	membersCmd = &cobra.Command{
		Use:   "members",
		Short: "Prints the members of the cluster",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Printf("partitions=%d\n", gridClient.PartitionCount())
			for _, m := range gridClient.Members() {
				fmt.Printf("%s %s\n", m.UUID, m.Address)
			}
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{valuesCmd, keysCmd, entriesCmd, aggregateCmd} {
		cmd.Flags().String("where", "", util.WrapString("SQL-like condition the entries must match (e.g. \"this > 10 AND this < 20\")"))
	}
	for _, cmd := range []*cobra.Command{valuesCmd, keysCmd, entriesCmd} {
		cmd.Flags().Int("page-size", 0, util.WrapString("Return only one page of this size (0 returns all matching entries)"))
		cmd.Flags().Int("page", 0, util.WrapString("Zero based page to return if a page size is set"))
	}
	aggregateCmd.Flags().String("attribute", "", util.WrapString("Attribute path to aggregate (default is the value itself)"))
}

// queryPredicate builds the predicate from the --where and paging flags
func queryPredicate() (predicate.Predicate, error) {
	where := util.ParseWhere(viper.GetString("where"))
	pageSize := viper.GetInt("page-size")
	if pageSize <= 0 {
		return where, nil
	}
	p := predicate.Paging(where, pageSize, nil)
	if err := p.SetPage(viper.GetInt("page")); err != nil {
		return nil, err
	}
	return p, nil
}

func parseAggregator(name, attribute string) (aggregator.Aggregator, error) {
	var path []string
	if attribute != "" {
		path = append(path, attribute)
	}
	switch strings.ToLower(name) {
	case "count":
		return aggregator.Count(path...), nil
	case "distinct":
		return aggregator.Distinct(path...), nil
	case "sum":
		return aggregator.FloatingPointSum(path...), nil
	case "avg":
		return aggregator.NumberAvg(path...), nil
	case "min":
		return aggregator.Min(path...), nil
	case "max":
		return aggregator.Max(path...), nil
	default:
		return nil, fmt.Errorf("invalid aggregation %s (expected one of: count, distinct, sum, avg, min, max)", name)
	}
}
