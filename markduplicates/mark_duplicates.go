package markduplicates

import (
	"compress/gzip"
	"context"
	"io"
	"time"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Run executes the full duplicate-marking pipeline described in
// SPEC_FULL.md's MODULE MAP: extract+join, external sort, k-way
// merge+classify, then a raw mark-writing pass over a second read of
// the input. It validates opts, so callers need not call validate
// separately.
func Run(ctx context.Context, opts *Opts) (Stats, error) {
	start := time.Now()
	if err := validate(opts); err != nil {
		return Stats{}, errors.E(err, "markduplicates: invalid options")
	}

	stats, bitmap, total, err := extractSortMergeClassify(ctx, opts)
	if err != nil {
		return Stats{}, err
	}
	stats.TotalRecords = total
	stats.Duplicates = bitmap.Len()

	if err := markPass(ctx, opts, bitmap); err != nil {
		return Stats{}, err
	}

	stats.Elapsed = time.Since(start)
	stats.Log()
	return stats, nil
}

// extractSortMergeClassify runs pass 1: Fingerprint Extractor + Pair
// Joiner feeding the External Sorter, followed by the K-way Merger and
// Group Classifier. It returns the classification stats, the finished
// duplicate bitmap, and the total number of input records seen (reported
// as Stats.TotalRecords).
func extractSortMergeClassify(ctx context.Context, opts *Opts) (Stats, *dupBitmap, uint64, error) {
	in, err := file.Open(ctx, opts.InputPath)
	if err != nil {
		return Stats{}, nil, 0, errors.E(err, "markduplicates: opening input", opts.InputPath)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil {
			log.Error.Printf("markduplicates: closing input: %v", cerr)
		}
	}()

	br, err := bam.NewReader(in.Reader(ctx), opts.effectiveThreads())
	if err != nil {
		return Stats{}, nil, 0, errors.E(err, "markduplicates: parsing input BAM")
	}
	defer br.Close() // nolint: errcheck

	header := br.Header()
	if header.SortOrder != sam.Coordinate {
		return Stats{}, nil, 0, errors.E(
			"markduplicates: input BAM is not coordinate-sorted (SO:", header.SortOrder.String(),
			"); refusing to run rather than risk an unbounded pair-join table")
	}

	ex := newExtractor(header)
	srt := newSorter(opts.BatchSize, opts.effectiveThreads(), opts.TmpDir)

	for {
		r, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, nil, 0, errors.E(err, "markduplicates: reading input BAM record", ex.idx)
		}
		fp, ok := ex.Process(r)
		if !ok {
			continue
		}
		if fp.LibID == unmappedLibID {
			continue
		}
		if err := srt.Add(fp); err != nil {
			return Stats{}, nil, 0, err
		}
	}
	total := ex.idx

	if err := ex.Finish(); err != nil {
		return Stats{}, nil, 0, err
	}

	paths, err := srt.Finish()
	if err != nil {
		return Stats{}, nil, 0, err
	}

	bitmap := newDupBitmap()
	stats, err := mergeAndClassify(paths, bitmap)
	if err != nil {
		return Stats{}, nil, 0, err
	}
	return stats, bitmap, total, nil
}

// markPass runs pass 2: a raw byte-level copy of the input BAM to the
// output, patching only the duplicate flag bit of each record (or
// dropping duplicate records, in removal mode). It never constructs a
// sam.Record for output.
func markPass(ctx context.Context, opts *Opts, bitmap *dupBitmap) error {
	in, err := file.Open(ctx, opts.InputPath)
	if err != nil {
		return errors.E(err, "markduplicates: reopening input", opts.InputPath)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil {
			log.Error.Printf("markduplicates: closing input: %v", cerr)
		}
	}()

	inBg, err := bgzf.NewReader(in.Reader(ctx), opts.effectiveThreads())
	if err != nil {
		return errors.E(err, "markduplicates: opening input BGZF stream")
	}
	defer inBg.Close() // nolint: errcheck

	out, err := file.Create(ctx, opts.OutputPath)
	if err != nil {
		return errors.E(err, "markduplicates: creating output", opts.OutputPath)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil {
			log.Error.Printf("markduplicates: closing output: %v", cerr)
		}
	}()

	outBg, err := bgzf.NewWriterLevel(out.Writer(ctx), gzip.DefaultCompression, opts.effectiveThreads())
	if err != nil {
		return errors.E(err, "markduplicates: opening output BGZF stream")
	}

	if err := copyHeader(inBg, outBg); err != nil {
		return err
	}
	mw := newMarkWriter(bitmap, opts.RemoveDuplicates)
	if err := mw.Run(inBg, outBg); err != nil {
		return err
	}
	if err := outBg.Close(); err != nil {
		return errors.E(err, "markduplicates: closing output BGZF stream")
	}
	return nil
}
