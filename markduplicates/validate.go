package markduplicates

import (
	"fmt"
	"os"
	"runtime"
)

// DefaultBatchSize is the number of fingerprints accumulated per sort
// batch before it is spilled to a temp file (spec.md §6).
const DefaultBatchSize = 2_000_000

// Opts holds the run's CLI-derived configuration, mirroring the flat
// Opts-struct-plus-validate convention this package's tests and
// cmd/doppelmark/main.go both rely on.
type Opts struct {
	InputPath  string
	OutputPath string

	RemoveDuplicates bool

	Threads        int
	SingleThreaded bool
	BatchSize      int
	TmpDir         string
}

// effectiveThreads returns the sort-stage worker count Opts implies:
// SingleThreaded forces 1, otherwise Threads if set, otherwise the
// logical CPU count.
func (o *Opts) effectiveThreads() int {
	if o.SingleThreaded {
		return 1
	}
	if o.Threads > 0 {
		return o.Threads
	}
	return runtime.NumCPU()
}

func validate(opts *Opts) error {
	if opts.InputPath == "" {
		return fmt.Errorf("you must specify an input BAM with -i/--input")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("you must specify an output BAM with -o/--output")
	}
	if opts.Threads < 0 {
		return fmt.Errorf("threads must be non-negative")
	}
	if opts.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	if opts.TmpDir == "" {
		opts.TmpDir = os.TempDir()
	}
	if info, err := os.Stat(opts.TmpDir); err != nil || !info.IsDir() {
		return fmt.Errorf("tmp-dir %q is not a directory", opts.TmpDir)
	}
	return nil
}
