package markduplicates

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// dupBitmap is the sparse set of input-record indices classified as
// duplicates. Roaring is chosen because duplicate rates are typically
// well under 5% of total records (spec.md §9): memory stays
// proportional to the number of duplicates, not the number of reads,
// and membership testing during the Mark Writer pass is O(1)
// amortized.
type dupBitmap struct {
	bm *roaring64.Bitmap
}

func newDupBitmap() *dupBitmap {
	return &dupBitmap{bm: roaring64.New()}
}

// Add marks idx as a duplicate. Idempotent: a paired fingerprint's
// idx1/idx2 may be inserted once per fingerprint that passes through
// the Classifier (spec.md §4.4 edge cases), and Roaring set-insertion
// absorbs the repeat with no extra bookkeeping.
func (d *dupBitmap) Add(idx uint64) {
	d.bm.Add(idx)
}

// Contains reports whether idx is a duplicate.
func (d *dupBitmap) Contains(idx uint64) bool {
	return d.bm.Contains(idx)
}

// Len returns the number of distinct duplicate indices.
func (d *dupBitmap) Len() uint64 {
	return d.bm.GetCardinality()
}

// secondEndKey is a mate key scoped to a library, used both to record
// and to look up the "second-end set" of spec.md §3/§4.4.
type secondEndKey struct {
	LibID int32
	Ref   int32
	Pos   int32
	Rev   uint8
}

// secondEndSet tracks mate keys already observed as the coordinate-
// greater end of some paired-end cluster. It is written and read only
// during single-threaded classification (spec.md §5), so a plain map
// needs no locking; no library in the corpus offers a composite-key
// set better suited to this than the language's own map type.
type secondEndSet map[secondEndKey]struct{}

func (s secondEndSet) add(k secondEndKey) {
	s[k] = struct{}{}
}

func (s secondEndSet) contains(k secondEndKey) bool {
	_, ok := s[k]
	return ok
}
