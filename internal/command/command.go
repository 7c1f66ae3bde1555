// Package command runs external programs and captures their output.
package command

import (
	"bytes"
	"context"
	"os/exec"
)

// Func has the signature of Run and is swapped in tests to avoid spawning
// processes.
type Func func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Run executes name with args until it exits or ctx is done.
func Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()

	return stdout.String(), stderr.String(), err
}
