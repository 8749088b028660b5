package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/log"
)

// DefaultGasBudget is used when a command does not set one
const DefaultGasBudget = "10000000"

type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

type execRunner struct{}

// Run starts the process and waits for it. A non zero exit is reported through exitCode, not err.
func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.String(), stderr.String(), -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}

// CLIExecutor runs the ledger CLI as a local process
type CLIExecutor struct {
	path    string
	timeout time.Duration
	runner  commandRunner
}

// NewCLIExecutor returns an executor for the CLI binary at path
func NewCLIExecutor(path string, timeout time.Duration) *CLIExecutor {
	return &CLIExecutor{path: path, timeout: timeout, runner: execRunner{}}
}

// CallArgs renders the client call arguments of cmd
func CallArgs(cmd domain.LedgerCommand) []string {
	gas := cmd.GasBudget
	if gas == "" {
		gas = DefaultGasBudget
	}
	args := []string{"client", "call",
		"--package", cmd.PackageID,
		"--module", cmd.Module,
		"--function", cmd.Function,
	}
	for _, t := range cmd.TypeArgs {
		args = append(args, "--type-args", t)
	}
	if len(cmd.Args) > 0 {
		args = append(args, "--args")
		args = append(args, cmd.Args...)
	}
	return append(args, "--gas-budget", gas, "--json")
}

// Execute runs a client call and reports the created objects of the transaction
func (c *CLIExecutor) Execute(ctx context.Context, cmd domain.LedgerCommand) (*domain.LedgerCommandResult, error) {
	res, err := c.run(ctx, CallArgs(cmd)...)
	if err != nil {
		return nil, err
	}
	if res.Success {
		res.CreatedObjects = CreatedObjectsFromJSON(res.Stdout)
	}
	return res, nil
}

// ActiveAddress runs client active-address
func (c *CLIExecutor) ActiveAddress(ctx context.Context) (*domain.LedgerCommandResult, error) {
	return c.run(ctx, "client", "active-address")
}

// Gas runs client gas
func (c *CLIExecutor) Gas(ctx context.Context) (*domain.LedgerCommandResult, error) {
	return c.run(ctx, "client", "gas")
}

// Ping makes sure the CLI is installed and has an active address
func (c *CLIExecutor) Ping(ctx context.Context) error {
	res, err := c.ActiveAddress(ctx)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("active-address exited with %d: %s", res.ReturnCode, res.Stderr)
	}
	return nil
}

func (c *CLIExecutor) run(ctx context.Context, args ...string) (*domain.LedgerCommandResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	command := strings.Join(append([]string{c.path}, args...), " ")
	log.Debug(ctx, "executing ledger command", "command", command)

	stdout, stderr, code, err := c.runner.Run(ctx, c.path, args...)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", c.path, err)
	}
	return &domain.LedgerCommandResult{
		Success:    code == 0,
		Stdout:     strings.TrimSpace(stdout),
		Stderr:     strings.TrimSpace(stderr),
		ReturnCode: code,
		Command:    command,
	}, nil
}
