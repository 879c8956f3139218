package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "fuzzbroker",
	Short: "Distributed network-protocol fuzzing framework",
	Long: `fuzzbroker coordinates type-directed mutation fuzzing across a broker,
any number of producer harnesses (test case generation) and worker
harnesses (delivery to a target), recording crashes and results in a
queryable SQLite store.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fuzzbroker.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(brokerCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(producerCmd)
	rootCmd.AddCommand(storeCmd)
}

// Commands are defined in separate files:
// - brokerCmd in broker.go
// - workerCmd in worker.go
// - producerCmd in producer.go
// - storeCmd in store.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
