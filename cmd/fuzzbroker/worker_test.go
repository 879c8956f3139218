package main

import (
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jihwankim/fuzzbroker/pkg/config"
	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/worker"
)

func cliTestLogger() *logging.Logger {
	return logging.New(logging.Config{Output: io.Discard})
}

func TestTargetDeliverFuncSuccessOnZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix shell")
	}
	cfg := config.WorkerConfig{
		WorkDir:        t.TempDir(),
		DeliverTimeout: 0,
		TargetCmd:      []string{"true"},
		CrashExitCodes: []int{139},
	}
	deliver := targetDeliverFunc(cfg, cliTestLogger())

	result := deliver([]byte("test case"))
	require.Equal(t, worker.StatusSuccess, result.Status)
}

func TestTargetDeliverFuncCrashOnListedExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix shell")
	}
	cfg := config.WorkerConfig{
		WorkDir:        t.TempDir(),
		DeliverTimeout: 0,
		TargetCmd:      []string{"sh", "-c", "exit 139"},
		CrashExitCodes: []int{139},
	}
	deliver := targetDeliverFunc(cfg, cliTestLogger())

	result := deliver([]byte("test case"))
	require.Equal(t, worker.StatusCrash, result.Status)
}

func TestTargetDeliverFuncErrorOnUnlistedExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix shell")
	}
	cfg := config.WorkerConfig{
		WorkDir:        t.TempDir(),
		DeliverTimeout: 0,
		TargetCmd:      []string{"sh", "-c", "exit 7"},
		CrashExitCodes: []int{139},
	}
	deliver := targetDeliverFunc(cfg, cliTestLogger())

	result := deliver([]byte("test case"))
	require.Equal(t, worker.StatusError, result.Status)
}
