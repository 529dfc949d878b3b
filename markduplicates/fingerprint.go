package markduplicates

import (
	"encoding/binary"

	"github.com/grailbio/base/log"
)

// FingerprintSize is the fixed, on-disk, little-endian size of a
// marshaled Fingerprint.
const FingerprintSize = 43

// unmappedLibID is the sentinel library id assigned to fingerprints for
// unmapped, secondary, or supplementary records. Such fingerprints sort
// before every real library and are never classified.
const unmappedLibID = -1

// emptyLibID is the library id used for reads lacking a read group or
// an LB tag. It is a real, classifiable bucket, distinct from
// unmappedLibID.
const emptyLibID = 0

// Fingerprint is the fixed-width summary of one input record (or, for a
// completed pair, of both ends of that pair) used for sorting,
// merging, and duplicate classification. See Marshal for the exact
// byte layout.
type Fingerprint struct {
	LibID  int32
	Ref1   int32
	Pos1   int32
	Rev1   uint8
	Rev2   uint8
	Ref2   int32
	Pos2   int32
	Score  int32
	Idx1   uint64
	Idx2   uint64
	Paired uint8
}

// GroupKey is the (lib_id, ref1, pos1, rev1) tuple that determines sort
// order and group boundaries.
type GroupKey struct {
	LibID int32
	Ref1  int32
	Pos1  int32
	Rev1  uint8
}

// MateKey is the (ref2, pos2, rev2) tuple that partitions the paired
// fingerprints of a group into mate-equivalence classes.
type MateKey struct {
	Ref2 int32
	Pos2 int32
	Rev2 uint8
}

// Key returns f's grouping key.
func (f *Fingerprint) Key() GroupKey {
	return GroupKey{f.LibID, f.Ref1, f.Pos1, f.Rev1}
}

// Mate returns f's mate key. Only meaningful when f.Paired == 1.
func (f *Fingerprint) Mate() MateKey {
	return MateKey{f.Ref2, f.Pos2, f.Rev2}
}

// Marshal appends f's 43-byte little-endian encoding to buf and returns
// the extended slice.
func (f *Fingerprint) Marshal(buf []byte) []byte {
	var b [FingerprintSize]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(f.LibID))
	binary.LittleEndian.PutUint32(b[4:8], uint32(f.Ref1))
	binary.LittleEndian.PutUint32(b[8:12], uint32(f.Pos1))
	b[12] = f.Rev1
	b[13] = f.Rev2
	binary.LittleEndian.PutUint32(b[14:18], uint32(f.Ref2))
	binary.LittleEndian.PutUint32(b[18:22], uint32(f.Pos2))
	binary.LittleEndian.PutUint32(b[22:26], uint32(f.Score))
	binary.LittleEndian.PutUint64(b[26:34], f.Idx1)
	binary.LittleEndian.PutUint64(b[34:42], f.Idx2)
	b[42] = f.Paired
	return append(buf, b[:]...)
}

// Unmarshal decodes a 43-byte record from the front of b into f.
func (f *Fingerprint) Unmarshal(b []byte) {
	if len(b) < FingerprintSize {
		log.Fatalf("markduplicates: short fingerprint record: %d bytes", len(b))
	}
	f.LibID = int32(binary.LittleEndian.Uint32(b[0:4]))
	f.Ref1 = int32(binary.LittleEndian.Uint32(b[4:8]))
	f.Pos1 = int32(binary.LittleEndian.Uint32(b[8:12]))
	f.Rev1 = b[12]
	f.Rev2 = b[13]
	f.Ref2 = int32(binary.LittleEndian.Uint32(b[14:18]))
	f.Pos2 = int32(binary.LittleEndian.Uint32(b[18:22]))
	f.Score = int32(binary.LittleEndian.Uint32(b[22:26]))
	f.Idx1 = binary.LittleEndian.Uint64(b[26:34])
	f.Idx2 = binary.LittleEndian.Uint64(b[34:42])
	f.Paired = b[42]
}

func compareGroupKey(a, b GroupKey) int {
	switch {
	case a.LibID != b.LibID:
		return cmpInt32(a.LibID, b.LibID)
	case a.Ref1 != b.Ref1:
		return cmpInt32(a.Ref1, b.Ref1)
	case a.Pos1 != b.Pos1:
		return cmpInt32(a.Pos1, b.Pos1)
	case a.Rev1 != b.Rev1:
		return cmpUint8(a.Rev1, b.Rev1)
	default:
		return 0
	}
}

func compareMateKey(a, b MateKey) int {
	switch {
	case a.Ref2 != b.Ref2:
		return cmpInt32(a.Ref2, b.Ref2)
	case a.Pos2 != b.Pos2:
		return cmpInt32(a.Pos2, b.Pos2)
	case a.Rev2 != b.Rev2:
		return cmpUint8(a.Rev2, b.Rev2)
	default:
		return 0
	}
}

// batchLess orders fingerprints within one in-memory sort batch: by
// grouping key, then mate key, then score descending, then idx1
// ascending. This is the order spec.md §4.3 requires before a batch is
// spilled to a temp file.
func batchLess(a, b *Fingerprint) bool {
	if c := compareGroupKey(a.Key(), b.Key()); c != 0 {
		return c < 0
	}
	if c := compareMateKey(a.Mate(), b.Mate()); c != 0 {
		return c < 0
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Idx1 < b.Idx1
}

// better reports whether a is the preferred representative over b
// within a mate-key cluster: higher score wins; ties broken by the
// lexicographically smaller (min(idx1,idx2), max(idx1,idx2)).
func better(a, b Fingerprint) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	aMin, aMax := minMaxU64(a.Idx1, a.Idx2)
	bMin, bMax := minMaxU64(b.Idx1, b.Idx2)
	if aMin != bMin {
		return aMin < bMin
	}
	return aMax < bMax
}

func minMaxU64(a, b uint64) (lo, hi uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

func cmpInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint8(a, b uint8) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
