package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/fuzzbroker/pkg/config"
	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Args:  cobra.NoArgs,
	Short: "Run a worker that delivers test cases to a target program",
	Long: `Each delivered test case is written to a scratch file under
worker.work_dir and passed to worker.target_cmd as its final argument. The
target's exit status decides the reported outcome: a code listed in
worker.crash_exit_codes is a crash, any other nonzero code is an error,
zero is success.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().String("queue", "", "queue name (overrides config)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if q, _ := cmd.Flags().GetString("queue"); q != "" {
		cfg.Worker.Queue = q
	}
	if len(cfg.Worker.TargetCmd) == 0 {
		return fmt.Errorf("worker.target_cmd is required")
	}

	log := newLogger(cfg, "worker")
	if err := os.MkdirAll(cfg.Worker.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	deliver := targetDeliverFunc(cfg.Worker, log)

	log.Info("worker starting", "broker_addr", cfg.Worker.BrokerAddr, "queue", cfg.Worker.Queue)
	return worker.Serve(cfg.Worker, deliver, log)
}

// targetDeliverFunc builds a worker.DeliverFunc that stages data in a
// scratch file and runs cfg.TargetCmd against it, classifying the result
// from the target's exit status. This is the concrete stand-in for the
// user-supplied delivery hook the worker harness is built against.
func targetDeliverFunc(cfg config.WorkerConfig, log *logging.Logger) worker.DeliverFunc {
	var seq int64
	isCrashCode := func(code int) bool {
		for _, c := range cfg.CrashExitCodes {
			if c == code {
				return true
			}
		}
		return false
	}

	return func(data []byte) worker.DeliveryResult {
		seq++
		path := filepath.Join(cfg.WorkDir, fmt.Sprintf("case-%d-%d", time.Now().UnixNano(), seq))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return worker.DeliveryResult{Status: worker.StatusError, Detail: fmt.Sprintf("write scratch file: %v", err)}
		}
		defer os.Remove(path)

		timeout := cfg.DeliverTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		args := append(append([]string{}, cfg.TargetCmd[1:]...), path)
		out, err := exec.CommandContext(ctx, cfg.TargetCmd[0], args...).CombinedOutput()

		if ctx.Err() == context.DeadlineExceeded {
			return worker.DeliveryResult{Status: worker.StatusError, Detail: "target timed out"}
		}

		exitCode := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if err != nil {
			return worker.DeliveryResult{Status: worker.StatusError, Detail: fmt.Sprintf("exec target: %v", err)}
		}

		switch {
		case exitCode == 0:
			return worker.DeliveryResult{Status: worker.StatusSuccess}
		case isCrashCode(exitCode):
			log.Debug("target crashed", "exit_code", exitCode)
			return worker.DeliveryResult{Status: worker.StatusCrash, Detail: string(out)}
		default:
			return worker.DeliveryResult{Status: worker.StatusError, Detail: fmt.Sprintf("target exited %d: %s", exitCode, out)}
		}
	}
}
