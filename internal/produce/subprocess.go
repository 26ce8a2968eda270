// Package produce implements the one concrete Producer ctx ships: a
// subprocess adapter around spec's narrow `produce_scip(package_root)
// -> bytes` contract (spec §1, §9 DESIGN NOTES: "SCIP bytes are
// obtained from an external indexer binary or library"). ctx itself
// never parses source — every language binding is just a command line.
package produce

import (
	"bytes"
	"context"
	"os/exec"

	ctxerrors "github.com/wenkaifan0720/ctx/internal/errors"
)

// SubprocessProducer invokes an external indexer binary per file,
// passing the package root and the file's path relative to it as
// arguments, and reading one encoded SCIP Document from stdout.
type SubprocessProducer struct {
	Command    string
	Args       []string // appended before packageRoot/relativePath
	extensions []string
}

// NewSubprocessProducer builds a producer that shells out to command
// for every file matching one of extensions.
func NewSubprocessProducer(command string, args []string, extensions []string) *SubprocessProducer {
	return &SubprocessProducer{Command: command, Args: args, extensions: extensions}
}

// Extensions reports the file extensions this producer claims.
func (p *SubprocessProducer) Extensions() []string {
	return p.extensions
}

// ProduceFile runs the configured command as
// `<command> <args...> <packageRoot> <relativePath>` and returns its
// stdout as the encoded SCIP document bytes.
func (p *SubprocessProducer) ProduceFile(ctx context.Context, packageRoot, relativePath string) ([]byte, error) {
	args := append(append([]string(nil), p.Args...), packageRoot, relativePath)
	cmd := exec.CommandContext(ctx, p.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrScipProduction,
			"producer "+p.Command+" failed for "+relativePath+": "+stderr.String(), err)
	}
	return stdout.Bytes(), nil
}
