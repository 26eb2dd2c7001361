package utils

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// ExecApp runs a command and returns its captured stdout and stderr.
func ExecApp(name string, arg ...string) (par1, par2 string, err error) {
	return ExecAppContext(context.Background(), name, arg...)
}

// ExecAppContext is ExecApp with cancellation.
func ExecAppContext(ctx context.Context, name string, arg ...string) (par1, par2 string, err error) {
	cmd := exec.CommandContext(ctx, name, arg...)
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb
	err = cmd.Run()
	return outb.String(), errb.String(), err
}

// ExecSudo runs a privileged command, prefixing sudo unless already root.
func ExecSudo(ctx context.Context, name string, arg ...string) (string, string, error) {
	if os.Geteuid() == 0 {
		return ExecAppContext(ctx, name, arg...)
	}
	return ExecAppContext(ctx, "sudo", append([]string{name}, arg...)...)
}
