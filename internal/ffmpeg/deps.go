package ffmpeg

import (
	"context"
	"os"
	"os/exec"
)

// ---------------------------------------------------------------------------
// Interfaces - local to this package, following Go idiom
// ---------------------------------------------------------------------------

// commandRunner executes external commands and returns their combined output.
type commandRunner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

// pathChecker abstracts binary lookup operations.
type pathChecker interface {
	Stat(name string) (os.FileInfo, error)
	LookPath(file string) (string, error)
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to standard library
// ---------------------------------------------------------------------------

// Compile-time interface verification.
var (
	_ commandRunner = osCommandRunner{}
	_ pathChecker   = osPathChecker{}
)

// osCommandRunner implements commandRunner using exec.CommandContext.
type osCommandRunner struct{}

func (osCommandRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	// #nosec G204 -- name and args are constructed by this package, not user input
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// osPathChecker implements pathChecker using os and exec.
type osPathChecker struct{}

func (osPathChecker) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (osPathChecker) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
