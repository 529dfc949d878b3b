package markduplicates

import (
	seahash "blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
)

// pendingHalf is one half of a not-yet-joined pair: the fingerprint
// data computed for a mapped, paired, mate-mapped record before its
// mate has been seen.
type pendingHalf struct {
	name  string
	libID int32
	ref   int32
	pos   int32
	rev   uint8
	score int32
	idx   uint64
}

// joiner resolves paired-end records into single joined fingerprints.
// It buckets pending halves by a seahash of the read name, mirroring
// encoding/bamprovider's concurrentMap sharding technique. Halves in
// one bucket are told apart by comparing their full read names, so
// names whose hashes collide are never confused.
//
// The extractor pass is single-threaded, so unlike concurrentMap this
// table needs no locking.
type joiner struct {
	pending map[uint64][]pendingHalf
}

func newJoiner() *joiner {
	return &joiner{pending: make(map[uint64][]pendingHalf)}
}

func hashName(name string) uint64 {
	return seahash.Sum64([]byte(name))
}

// join records one end of a paired, mate-mapped record. If this is the
// first sight of the read name, it stashes the half and returns
// ok=false. On the second sight, it returns the fully joined
// Fingerprint with ok=true, consuming the pending half.
func (j *joiner) join(name string, libID, ref, pos int32, rev uint8, score int32, idx uint64) (Fingerprint, bool) {
	h := hashName(name)
	bucket := j.pending[h]
	for i, half := range bucket {
		if half.name != name {
			continue
		}
		bucket[i] = bucket[len(bucket)-1]
		if len(bucket) == 1 {
			delete(j.pending, h)
		} else {
			j.pending[h] = bucket[:len(bucket)-1]
		}
		return joinHalves(half, pendingHalf{name, libID, ref, pos, rev, score, idx}), true
	}
	j.pending[h] = append(bucket, pendingHalf{name, libID, ref, pos, rev, score, idx})
	return Fingerprint{}, false
}

// joinHalves combines two halves of the same pair into the single
// canonical Fingerprint the pipeline sorts and classifies: ref1/pos1
// is the coordinate-lesser end, ref2/pos2 the coordinate-greater end,
// per the resolution recorded in SPEC_FULL.md ("Pair Joiner emission
// count").
func joinHalves(a, b pendingHalf) Fingerprint {
	left, right := a, b
	if right.ref < left.ref || (right.ref == left.ref && right.pos < left.pos) {
		left, right = right, left
	}
	return Fingerprint{
		LibID:  left.libID,
		Ref1:   left.ref,
		Pos1:   left.pos,
		Rev1:   left.rev,
		Rev2:   right.rev,
		Ref2:   right.ref,
		Pos2:   right.pos,
		Score:  left.score + right.score,
		Idx1:   left.idx,
		Idx2:   right.idx,
		Paired: 1,
	}
}

// pendingCount returns the number of not-yet-joined halves. Used to
// detect the internal inconsistency of a mate that never arrives.
func (j *joiner) pendingCount() int {
	n := 0
	for _, bucket := range j.pending {
		n += len(bucket)
	}
	return n
}

// checkComplete fails fast if any paired, mate-mapped record's mate
// never arrived by end of input: spec.md §7 classifies this as an
// internal inconsistency, not a recoverable condition.
func (j *joiner) checkComplete() error {
	if n := j.pendingCount(); n > 0 {
		var example string
		for _, bucket := range j.pending {
			if len(bucket) > 0 {
				example = bucket[0].name
				break
			}
		}
		return errors.E(
			"markduplicates: internal inconsistency:", n, "record(s) flagged paired with a mapped mate never found one, e.g.", example)
	}
	return nil
}
