package markduplicates

import "testing"

func makeSE(libID, ref, pos int32, rev uint8, score int32, idx uint64) Fingerprint {
	return Fingerprint{
		LibID: libID, Ref1: ref, Pos1: pos, Rev1: rev,
		Rev2: 0, Ref2: -1, Pos2: -1,
		Score: score, Idx1: idx, Idx2: 0, Paired: 0,
	}
}

func makePE(libID, ref1, pos1 int32, rev1 uint8, ref2, pos2 int32, rev2 uint8, score int32, idx1, idx2 uint64) Fingerprint {
	return Fingerprint{
		LibID: libID, Ref1: ref1, Pos1: pos1, Rev1: rev1,
		Rev2: rev2, Ref2: ref2, Pos2: pos2,
		Score: score, Idx1: idx1, Idx2: idx2, Paired: 1,
	}
}

func wantCounts(t *testing.T, o, p, s int, wantO, wantP, wantS int) {
	t.Helper()
	if o != wantO || p != wantP || s != wantS {
		t.Fatalf("got (orphan=%d, pe=%d, se_only=%d), want (%d, %d, %d)", o, p, s, wantO, wantP, wantS)
	}
}

func TestClassifyEmptyGroup(t *testing.T) {
	bitmap := newDupBitmap()
	o, p, s := classifyGroup(nil, GroupKey{}, bitmap, secondEndSet{})
	wantCounts(t, o, p, s, 0, 0, 0)
}

func TestClassifySingleReadNotMarked(t *testing.T) {
	key := GroupKey{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0}
	group := []Fingerprint{makeSE(0, 0, 100, 0, 50, 0)}
	bitmap := newDupBitmap()
	o, p, s := classifyGroup(group, key, bitmap, secondEndSet{})
	wantCounts(t, o, p, s, 0, 0, 0)
	if bitmap.Len() != 0 {
		t.Fatalf("expected empty bitmap, got %d entries", bitmap.Len())
	}
}

func TestClassifyFragmentDeduplication(t *testing.T) {
	key := GroupKey{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0}
	group := []Fingerprint{
		makeSE(0, 0, 100, 0, 50, 0),
		makeSE(0, 0, 100, 0, 70, 1), // highest score, kept
		makeSE(0, 0, 100, 0, 40, 2),
	}
	bitmap := newDupBitmap()
	o, p, s := classifyGroup(group, key, bitmap, secondEndSet{})
	wantCounts(t, o, p, s, 0, 0, 2)
	if bitmap.Len() != 2 {
		t.Fatalf("expected 2 marked, got %d", bitmap.Len())
	}
	if bitmap.Contains(1) {
		t.Fatalf("best-scoring read must not be marked")
	}
}

func TestClassifyOrphanHandling(t *testing.T) {
	key := GroupKey{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0}
	group := []Fingerprint{
		makeSE(0, 0, 100, 0, 50, 0),
		makePE(0, 0, 100, 0, 1, 200, 1, 60, 1, 2),
	}
	bitmap := newDupBitmap()
	o, p, s := classifyGroup(group, key, bitmap, secondEndSet{})
	wantCounts(t, o, p, s, 1, 0, 0)
	if !bitmap.Contains(0) {
		t.Fatalf("orphan sharing a paired position must be marked")
	}
}

func TestClassifyPEDeduplication(t *testing.T) {
	key := GroupKey{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0}
	group := []Fingerprint{
		makePE(0, 0, 100, 0, 1, 200, 1, 70, 0, 1), // kept
		makePE(0, 0, 100, 0, 1, 200, 1, 50, 2, 3), // marked
	}
	bitmap := newDupBitmap()
	o, p, s := classifyGroup(group, key, bitmap, secondEndSet{})
	wantCounts(t, o, p, s, 0, 2, 0)
	if bitmap.Contains(0) || bitmap.Contains(1) {
		t.Fatalf("best-scoring pair must not be marked")
	}
	if !bitmap.Contains(2) || !bitmap.Contains(3) {
		t.Fatalf("lower-scoring pair must be marked on both ends")
	}
}

func TestClassifySameLibrarySamePosition(t *testing.T) {
	key := GroupKey{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0}
	group := []Fingerprint{
		makeSE(0, 0, 100, 0, 50, 0),
		makeSE(0, 0, 100, 0, 60, 1),
	}
	bitmap := newDupBitmap()
	o, p, s := classifyGroup(group, key, bitmap, secondEndSet{})
	wantCounts(t, o, p, s, 0, 0, 1)
	if bitmap.Len() != 1 {
		t.Fatalf("expected exactly one marked read, got %d", bitmap.Len())
	}
}

func TestClassifySecondEndSetMembership(t *testing.T) {
	key := GroupKey{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0}
	group := []Fingerprint{makeSE(0, 0, 100, 0, 50, 0)}
	secondEnds := secondEndSet{}
	secondEnds.add(secondEndKey{LibID: 0, Ref: 0, Pos: 100, Rev: 0})

	bitmap := newDupBitmap()
	o, p, s := classifyGroup(group, key, bitmap, secondEnds)
	wantCounts(t, o, p, s, 1, 0, 0)
}

func TestClassifySkipsUnmappedLibrary(t *testing.T) {
	key := GroupKey{LibID: unmappedLibID, Ref1: 0, Pos1: 100, Rev1: 0}
	group := []Fingerprint{makeSE(unmappedLibID, 0, 100, 0, 50, 0)}
	bitmap := newDupBitmap()
	o, p, s := classifyGroup(group, key, bitmap, secondEndSet{})
	wantCounts(t, o, p, s, 0, 0, 0)
	if bitmap.Len() != 0 {
		t.Fatalf("unmapped-library group must never be classified")
	}
}
