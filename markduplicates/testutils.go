package markduplicates

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureRecord describes one synthetic read to feed through a test
// pipeline run, and the flag it is expected to carry on the way out.
type fixtureRecord struct {
	Name       string
	Ref        *sam.Reference
	Pos        int
	Flags      sam.Flags
	MateRef    *sam.Reference
	MatePos    int
	Cigar      sam.Cigar
	Qual       []byte
	Library    string
	WantMarked bool
}

// newFixtureHeader builds a single-reference, coordinate-sorted header
// with one read group per name in libraries, each read group named
// after its library.
func newFixtureHeader(t *testing.T, refLen int, libraries ...string) (*sam.Header, *sam.Reference) {
	ref, err := sam.NewReference("chr1", "", "", refLen, nil, nil)
	assert.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	assert.NoError(t, err)
	h.Version = "1.6"
	h.SortOrder = sam.Coordinate
	for _, lib := range libraries {
		rg, err := sam.NewReadGroup(lib, "", "", lib, "", "", "", "", "", "", time.Time{}, 0)
		assert.NoError(t, err)
		assert.NoError(t, h.AddReadGroup(rg))
	}
	return h, ref
}

var rgAuxTag = sam.NewTag("RG")

// buildRecord turns a fixtureRecord into a *sam.Record ready to be
// written to a BAM stream. Every base gets a quality high enough to
// count toward the base-quality score, unless Qual is set explicitly.
func buildRecord(t *testing.T, fr fixtureRecord) *sam.Record {
	seqLen := 10
	if len(fr.Cigar) > 0 {
		seqLen = 0
		for _, op := range fr.Cigar {
			switch op.Type() {
			case sam.CigarMatch, sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarEqual, sam.CigarMismatch:
				seqLen += op.Len()
			}
		}
	}
	seq := bytes.Repeat([]byte{'A'}, seqLen)
	qual := fr.Qual
	if qual == nil {
		qual = bytes.Repeat([]byte{30}, seqLen)
	}
	tempLen := 0
	pos, matePos := fr.Pos, fr.MatePos
	if fr.Ref == nil {
		pos = -1
	}
	if fr.MateRef == nil {
		matePos = -1
	}
	r, err := sam.NewRecord(fr.Name, fr.Ref, fr.MateRef, pos, matePos, tempLen, 60, fr.Cigar, seq, qual, nil)
	require.NoError(t, err)
	r.Flags = fr.Flags
	if fr.Library != "" {
		aux, err := sam.NewAux(rgAuxTag, fr.Library)
		assert.NoError(t, err)
		r.AuxFields = append(r.AuxFields, aux)
	}
	return r
}

// writeFixtureBAM writes recs (in the given order, which the caller
// must already have coordinate-sorted) to a temp BAM file and returns
// its path.
func writeFixtureBAM(t *testing.T, dir string, header *sam.Header, recs []*sam.Record) string {
	path := dir + "/input.bam"
	var buf bytes.Buffer
	bw, err := bam.NewWriter(&buf, header, 1)
	assert.NoError(t, err)
	for _, r := range recs {
		assert.NoError(t, bw.Write(r))
	}
	assert.NoError(t, bw.Close())
	assert.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// readOutputFlags reads back a BAM file produced by Run and returns
// the Duplicate-bit state of each record, in file order.
func readOutputFlags(t *testing.T, path string) []bool {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close() // nolint: errcheck
	r, err := bam.NewReader(f, 1)
	assert.NoError(t, err)
	defer r.Close() // nolint: errcheck
	var got []bool
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		got = append(got, rec.Flags&sam.Duplicate != 0)
	}
	return got
}

// runFixture writes recs to a temp input BAM, runs the pipeline with
// opts (InputPath/OutputPath/TmpDir are filled in by this helper), and
// returns the resulting Stats plus the Duplicate-bit state of every
// output record in order.
func runFixture(t *testing.T, header *sam.Header, recs []*sam.Record, opts Opts) (Stats, []bool) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	opts.InputPath = writeFixtureBAM(t, dir, header, recs)
	opts.OutputPath = dir + "/output.bam"
	opts.TmpDir = dir
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}

	stats, err := Run(context.Background(), &opts)
	assert.NoError(t, err)
	return stats, readOutputFlags(t, opts.OutputPath)
}
