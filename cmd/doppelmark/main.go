package main

/*
  doppelmark is a tool for marking and removing PCR and optical
  duplicates. For more information, see
  github.com/grailbio/bammarkdup/markduplicates/doc.go
*/

import (
	"flag"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	md "github.com/grailbio/bammarkdup/markduplicates"
)

var (
	input          = flag.String("input", "", "Input coordinate-sorted BAM filename")
	output         = flag.String("output", "", "Output BAM filename")
	removeDups     = flag.Bool("remove-duplicates", false, "remove duplicate records instead of flagging them")
	threads        = flag.Int("threads", 0, "number of worker threads to use for sorting and (de)compression; 0 means use all logical CPUs")
	singleThreaded = flag.Bool("single-threaded", false, "force single-threaded operation, overriding -threads")
	batchSize      = flag.Int("batch-size", md.DefaultBatchSize, "number of fingerprints to sort in memory per external-sort batch")
	tmpDir         = flag.String("tmp-dir", "", "directory for external-sort scratch files; defaults to the OS temp directory")
)

// exitCode maps a pipeline error to one of spec.md §6's exit codes.
// The grailbio/base/errors package used throughout this module has no
// Kind value to switch on, so errors are told apart the same way the
// rest of the module already does: by the message text each call site
// chose (see SPEC_FULL.md's Errors ambient-stack entry).
func exitCode(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "invalid options"):
		return 3
	case strings.Contains(msg, "not a BAM stream"),
		strings.Contains(msg, "malformed BAM"),
		strings.Contains(msg, "parsing input BAM"),
		strings.Contains(msg, "is not coordinate-sorted"),
		strings.Contains(msg, "internal inconsistency"):
		return 2
	default:
		return 1
	}
}

func main() {
	flag.StringVar(input, "i", "", "shorthand for -input")
	flag.StringVar(output, "o", "", "shorthand for -output")
	shutdown := grail.Init()

	if flag.NArg() > 0 {
		a := flag.Args()
		log.Error.Printf("unparsed flags, please check flag syntax: '%s'", strings.Join(a[len(a)-flag.NArg():], " "))
		shutdown()
		os.Exit(3)
	}

	opts := &md.Opts{
		InputPath:        *input,
		OutputPath:       *output,
		RemoveDuplicates: *removeDups,
		Threads:          *threads,
		SingleThreaded:   *singleThreaded,
		BatchSize:        *batchSize,
		TmpDir:           *tmpDir,
	}

	ctx := vcontext.Background()
	if _, err := md.Run(ctx, opts); err != nil {
		log.Error.Printf(err.Error())
		shutdown()
		os.Exit(exitCode(err))
	}
	log.Debug.Printf("exiting")
	shutdown()
}
