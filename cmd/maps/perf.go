package maps

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgrid/dgrid/cmd/util"
	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/rpc/common"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for grid clusters",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// benchmark is one perf test. prepare runs before the timer starts and
// returns the operation executed for each iteration.
type benchmark struct {
	name    string
	prepare func(ctx context.Context, keys []string) (op func(ctx context.Context, counter int) error, err error)
}

// benchmarkResult combines the go benchmark result with the latency timer
type benchmarkResult struct {
	testing.BenchmarkResult
	latency gometrics.Timer
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU used for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "client-metrics"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Print the client metrics in Prometheus format after the run"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 {
		return fmt.Errorf("keys must be positive, got %d", perfKeySpread)
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	config := util.GetClientConfig()

	fmt.Println("Performance testing tool for grid clusters")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Map: %s\n", gridMap.Name())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()
	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	results := make(map[string]benchmarkResult)
	order := make([]string, 0)

	for _, bm := range benchmarks() {
		if shouldSkip(bm.name) {
			printResult(bm.name, benchmarkResult{})
			continue
		}
		result := runBenchmark(bm, registry)
		results[bm.name] = result
		order = append(order, bm.name)
		printResult(bm.name, result)
	}

	if viper.GetBool("client-metrics") {
		fmt.Println()
		gridClient.Metrics().WritePrometheus(os.Stdout)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}
	return nil
}

func runBenchmark(bm benchmark, registry gometrics.Registry) benchmarkResult {
	ctx := context.Background()
	timer := gometrics.GetOrRegisterTimer(bm.name, registry)
	keys := getKeys(bm.name)

	result := testing.Benchmark(func(b *testing.B) {
		op, err := bm.prepare(ctx, keys)
		if err != nil {
			log.Printf("(%s) - error preparing benchmark: %v\n", bm.name, err)
			return
		}

		// cleanup
		b.Cleanup(func() {
			for _, k := range keys {
				if err := gridMap.Delete(ctx, k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", bm.name, err)
				}
			}
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(ctx, counter); err != nil {
					log.Printf("(%s) - error performing operation: %v\n", bm.name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})
	return benchmarkResult{BenchmarkResult: result, latency: timer}
}

// benchmarks returns all perf tests in execution order
func benchmarks() []benchmark {
	fill := func(ctx context.Context, keys []string) error {
		for i, k := range keys {
			if _, err := gridMap.Put(ctx, k, float64(i)); err != nil {
				return err
			}
		}
		return nil
	}
	key := func(keys []string, counter int) string {
		return keys[counter%len(keys)]
	}

	return []benchmark{
		{"put", func(ctx context.Context, keys []string) (func(context.Context, int) error, error) {
			return func(ctx context.Context, counter int) error {
				_, err := gridMap.Put(ctx, key(keys, counter), "test")
				return err
			}, nil
		}},
		{"put-large", func(ctx context.Context, keys []string) (func(context.Context, int) error, error) {
			largeValue := make([]byte, perfLargeValueSizeKB*1024)
			return func(ctx context.Context, counter int) error {
				_, err := gridMap.Put(ctx, key(keys, counter), largeValue)
				return err
			}, nil
		}},
		{"get", func(ctx context.Context, keys []string) (func(context.Context, int) error, error) {
			return func(ctx context.Context, counter int) error {
				_, err := gridMap.Get(ctx, key(keys, counter))
				return err
			}, fill(ctx, keys)
		}},
		{"delete", func(ctx context.Context, keys []string) (func(context.Context, int) error, error) {
			return func(ctx context.Context, counter int) error {
				return gridMap.Delete(ctx, key(keys, counter))
			}, fill(ctx, keys)
		}},
		{"has", func(ctx context.Context, keys []string) (func(context.Context, int) error, error) {
			return func(ctx context.Context, counter int) error {
				_, err := gridMap.ContainsKey(ctx, key(keys, counter))
				return err
			}, fill(ctx, keys)
		}},
		{"has-not", func(ctx context.Context, _ []string) (func(context.Context, int) error, error) {
			return func(ctx context.Context, counter int) error {
				_, err := gridMap.ContainsKey(ctx, fmt.Sprintf("%s/has-not-%d", perfKeyPrefix, counter%100))
				return err
			}, nil
		}},
		{"query", func(ctx context.Context, keys []string) (func(context.Context, int) error, error) {
			half := predicate.LessThan("this", float64(len(keys)/2))
			return func(ctx context.Context, _ int) error {
				_, err := gridMap.ValuesWithPredicate(ctx, half)
				return err
			}, fill(ctx, keys)
		}},
		{"mixed", func(ctx context.Context, keys []string) (func(context.Context, int) error, error) {
			return func(ctx context.Context, counter int) error {
				k := key(keys, counter)
				var err error
				switch counter % 4 {
				case 0:
					_, err = gridMap.Put(ctx, k, "test")
				case 1:
					_, err = gridMap.Get(ctx, k)
				case 2:
					err = gridMap.Delete(ctx, k)
				case 3:
					_, err = gridMap.ContainsKey(ctx, k)
				}
				return err
			}, fill(ctx, keys)
		}},
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of one benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

func opsPerSec(result testing.BenchmarkResult) (nsPerOp, ops float64) {
	nsPerOp = math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return nsPerOp, 1.0 / (nsPerOp / 1e9)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result benchmarkResult) {
	if result.latency == nil || result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp, ops := opsPerSec(result.BenchmarkResult)
	p := result.latency.Snapshot().Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), ops, time.Duration(p[0]), time.Duration(p[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]benchmarkResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Max",
		"Addresses", "Timeout", "RetryCount", "SmartRouting", "Map",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range order {
		result := results[test]
		nsPerOp, ops := opsPerSec(result.BenchmarkResult)
		snapshot := result.latency.Snapshot()
		p := snapshot.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", ops),
			time.Duration(p[0]).String(),
			time.Duration(p[1]).String(),
			time.Duration(snapshot.Max()).String(),
			strings.Join(config.Addresses, ";"),
			config.InvocationTimeout.String(),
			strconv.Itoa(config.RetryCount),
			strconv.FormatBool(config.SmartRouting),
			gridMap.Name(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}
	return nil
}
