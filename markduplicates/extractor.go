package markduplicates

import "github.com/biogo/hts/sam"

// minBaseQuality is the inclusive threshold used by the score
// function: only bases at or above this quality contribute.
const minBaseQuality = 15

// extractor turns a stream of BAM records, visited in file order, into
// a stream of Fingerprints. It owns the library table and the pair
// joiner, the two pieces of state that span the whole pass.
type extractor struct {
	libs   *libraryTable
	joiner *joiner
	idx    uint64
}

func newExtractor(h *sam.Header) *extractor {
	return &extractor{
		libs:   newLibraryTable(h),
		joiner: newJoiner(),
	}
}

// Process consumes one record in file order and returns the
// fingerprint it produces, if any: none (ok is false; the record is one
// half of a pair still awaiting its mate), or one (an orphan,
// single-end read, or unmapped/secondary/supplementary record, or a
// pair, emitted once, at the second sighting of its name — see
// extractSortMergeClassify for how the caller drives this).
func (e *extractor) Process(r *sam.Record) (fp Fingerprint, ok bool) {
	idx := e.idx
	e.idx++

	if r.Flags&(sam.Unmapped|sam.Secondary|sam.Supplementary) != 0 {
		return Fingerprint{LibID: unmappedLibID}, true
	}

	libID := e.libs.lookup(r)
	pos, rev := unclippedFivePrime(r)
	score := baseQualityScore(r)

	pairedMateMapped := r.Flags&sam.Paired != 0 && r.Flags&sam.MateUnmapped == 0
	if pairedMateMapped {
		if joined, done := e.joiner.join(r.Name, libID, int32(r.Ref.ID()), int32(pos), rev, score, idx); done {
			return joined, true
		}
		return Fingerprint{}, false
	}

	return Fingerprint{
		LibID:  libID,
		Ref1:   int32(r.Ref.ID()),
		Pos1:   int32(pos),
		Rev1:   rev,
		Rev2:   0,
		Ref2:   -1,
		Pos2:   -1,
		Score:  score,
		Idx1:   idx,
		Idx2:   0,
		Paired: 0,
	}, true
}

// Finish must be called after every record has been through Process.
// It fails if any paired, mate-mapped record's mate never arrived.
func (e *extractor) Finish() error {
	return e.joiner.checkComplete()
}

// unclippedFivePrime computes the unclipped 5' coordinate of a mapped
// record, correcting for soft-clipping introduced by the aligner. The
// forward strand looks at the leading CIGAR operation, the reverse
// strand at the trailing one, per spec.md §4.1.
func unclippedFivePrime(r *sam.Record) (pos int, rev uint8) {
	if r.Flags&sam.Reverse == 0 {
		lead := 0
		if len(r.Cigar) > 0 && r.Cigar[0].Type() == sam.CigarSoftClipped {
			lead = r.Cigar[0].Len()
		}
		return r.Start() - lead, 0
	}
	trail := 0
	if n := len(r.Cigar); n > 0 && r.Cigar[n-1].Type() == sam.CigarSoftClipped {
		trail = r.Cigar[n-1].Len()
	}
	return r.End() + trail, 1
}

// baseQualityScore sums the base qualities of r that meet or exceed
// minBaseQuality. BAM quality strings are raw Phred scores, not
// ASCII-offset, so no decoding is needed.
func baseQualityScore(r *sam.Record) int32 {
	var score int32
	for _, q := range r.Qual {
		if int(q) >= minBaseQuality {
			score += int32(q)
		}
	}
	return score
}
