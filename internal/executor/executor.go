package executor

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

type Executor struct {
	logger io.Writer
}

func NewExecutor(logger io.Writer) *Executor {
	e := &Executor{logger: logger}
	return e
}

func (e *Executor) Run(ctx context.Context, command *Cmd) error {
	_, _ = io.WriteString(e.logger, "> "+command.Binary+" "+strings.Join(command.args, " ")+"\n")

	start := time.Now()

	cmd := exec.CommandContext(ctx, command.Binary, command.args...)
	cmd.Stdout = io.MultiWriter(e.logger, os.Stdout)
	cmd.Stderr = io.MultiWriter(e.logger, os.Stderr)
	cmd.Env = append(os.Environ(), command.envs...)
	err := cmd.Run()

	_, _ = io.WriteString(e.logger, time.Since(start).String()+"\n")

	if err != nil {
		_, _ = io.WriteString(e.logger, err.Error()+"\n")
		return err
	}

	return nil
}

// Capture runs the command and returns its raw stdout, keeping stderr on the
// logger. Used for commands whose stdout is binary data, not log text.
func (e *Executor) Capture(ctx context.Context, command *Cmd) ([]byte, error) {
	_, _ = io.WriteString(e.logger, "> "+command.Binary+" "+strings.Join(command.args, " ")+"\n")

	var out bytes.Buffer

	cmd := exec.CommandContext(ctx, command.Binary, command.args...)
	cmd.Stdout = &out
	cmd.Stderr = e.logger
	cmd.Env = append(os.Environ(), command.envs...)

	if err := cmd.Run(); err != nil {
		_, _ = io.WriteString(e.logger, err.Error()+"\n")
		return nil, err
	}

	return out.Bytes(), nil
}

type Cmd struct {
	Binary string
	args   []string
	envs   []string
}

func (c *Cmd) Add(args ...string) {
	c.args = append(c.args, args...)
}

func (c *Cmd) Env(env string) {
	c.envs = append(c.envs, env)
}

func (c *Cmd) Command() []string {
	return c.args
}
