package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jihwankim/fuzzbroker/pkg/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Query the result store",
}

var storeRecentCmd = &cobra.Command{
	Use:   "recent",
	Args:  cobra.NoArgs,
	Short: "List the most recent crashes across every stream",
	RunE:  runStoreRecent,
}

var storeByHashCmd = &cobra.Command{
	Use:   "by-hash <hash>",
	Args:  cobra.ExactArgs(1),
	Short: "List every crash sharing one interned hash",
	RunE:  runStoreByHash,
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Args:  cobra.NoArgs,
	Short: "Print the distinct crash-signature count",
	RunE:  runStoreStats,
}

func init() {
	storeRecentCmd.Flags().Int("limit", 20, "maximum rows to return")
	storeCmd.AddCommand(storeRecentCmd)
	storeCmd.AddCommand(storeByHashCmd)
	storeCmd.AddCommand(storeStatsCmd)
}

func openStoreFromConfig() (*store.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(context.Background(), cfg.Store.DBPath, cfg.Store.CrashfilesDir, cfg.Store.CrashdataDir, cfg.Store.TemplatesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open result store: %w", err)
	}
	return st, func() { st.Close() }, nil
}

func printCrashSummaries(rows []store.CrashSummary) {
	if len(rows) == 0 {
		fmt.Println("no crashes found")
		return
	}
	for _, c := range rows {
		fmt.Printf("%d\t%d\t%s\t%s\t%s/%s\t%s\n",
			c.ID, c.Timestamp, c.Stream, c.Hash, c.ExceptionType, c.ExceptionSubtype, c.ShortDesc)
	}
}

func runStoreRecent(cmd *cobra.Command, args []string) error {
	st, closeFn, err := openStoreFromConfig()
	if err != nil {
		return err
	}
	defer closeFn()

	limit, _ := cmd.Flags().GetInt("limit")
	rows, err := st.RecentCrashes(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printCrashSummaries(rows)
	return nil
}

func runStoreByHash(cmd *cobra.Command, args []string) error {
	st, closeFn, err := openStoreFromConfig()
	if err != nil {
		return err
	}
	defer closeFn()

	rows, err := st.CrashesByHash(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printCrashSummaries(rows)
	return nil
}

func runStoreStats(cmd *cobra.Command, args []string) error {
	st, closeFn, err := openStoreFromConfig()
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := st.DistinctHashCount(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("distinct crash signatures: %d\n", n)
	return nil
}
