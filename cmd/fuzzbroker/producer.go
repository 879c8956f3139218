package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/jihwankim/fuzzbroker/pkg/binstruct"
	"github.com/jihwankim/fuzzbroker/pkg/generator"
	"github.com/jihwankim/fuzzbroker/pkg/mutate"
	"github.com/jihwankim/fuzzbroker/pkg/producer"
)

var producerCmd = &cobra.Command{
	Use:   "producer",
	Args:  cobra.NoArgs,
	Short: "Drive a seed file's mutation space into the broker as test cases",
	Long: `Wraps the seed file in a single variable-length structure field and
runs the mutation engine's basic test suite (replace/delete/inject/group
phases) over it, submitting every resulting variant as a new_test_case.`,
	RunE: runProducer,
}

func init() {
	producerCmd.Flags().String("seed", "", "path to the seed input file (required)")
	producerCmd.Flags().String("queue", "", "queue name (overrides config)")
	producerCmd.Flags().String("template", "", "template name recorded on every submitted test's tag")
	_ = producerCmd.MarkFlagRequired("seed")
}

func runProducer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	seedPath, _ := cmd.Flags().GetString("seed")
	seed, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	if q, _ := cmd.Flags().GetString("queue"); q != "" {
		cfg.Producer.Queue = q
	}
	templateName, _ := cmd.Flags().GetString("template")
	if templateName == "" {
		templateName = seedPath
	}

	log := newLogger(cfg, "producer")

	source, err := seedSource(seed, cfg.Fuzz.FuzzLevel, cfg.Fuzz.RandomCases, cfg.Fuzz.PreserveLen, cfg.Fuzz.SendUnfixed)
	if err != nil {
		return fmt.Errorf("build mutation source: %w", err)
	}

	conn, err := net.Dial("tcp", cfg.Producer.BrokerAddr)
	if err != nil {
		return fmt.Errorf("dial broker at %s: %w", cfg.Producer.BrokerAddr, err)
	}
	defer conn.Close()

	p := producer.New(conn, cfg.Producer.Queue, source, map[string]any{"template": templateName}, log)

	log.Info("producer starting", "broker_addr", cfg.Producer.BrokerAddr, "queue", cfg.Producer.Queue, "seed", seedPath)
	if err := p.Run(); err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	counters := p.Counters()
	log.Info("producer finished", "submitted", counters.Submitted,
		"success", counters.Success, "crash", counters.Crash, "error", counters.Error)
	return nil
}

// seedSource wraps seed in a single variable-length hexstring field and
// returns the mutation engine's full basic-test enumeration of it.
func seedSource(seed []byte, fuzzLevel, randomCases int, preserveLen, sendUnfixed bool) (generator.Generator[[]byte], error) {
	s := binstruct.New("seed", binstruct.Big, false)
	f := binstruct.NewField("body", binstruct.KindHexstring, len(seed)*8, binstruct.Variable, binstruct.Big, "seed payload")
	if err := f.Set(hex.EncodeToString(seed)); err != nil {
		return nil, fmt.Errorf("set seed field: %w", err)
	}
	if err := s.AddField(f); err != nil {
		return nil, fmt.Errorf("add seed field: %w", err)
	}

	return mutate.NewSource(s, mutate.Options{
		MaxLen:         len(seed) * 2,
		SendUnfixed:    sendUnfixed,
		FuzzLevel:      fuzzLevel,
		PreserveLength: preserveLen,
		RandomCases:    randomCases,
	})
}
