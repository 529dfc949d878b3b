package markduplicates

import (
	"sort"
	"testing"
)

func TestFingerprintMarshalRoundTrip(t *testing.T) {
	want := Fingerprint{
		LibID: 3, Ref1: 1, Pos1: 12345, Rev1: 1, Rev2: 0,
		Ref2: 2, Pos2: 54321, Score: 987, Idx1: 42, Idx2: 43, Paired: 1,
	}
	buf := want.Marshal(nil)
	if len(buf) != FingerprintSize {
		t.Fatalf("Marshal produced %d bytes, want %d", len(buf), FingerprintSize)
	}
	var got Fingerprint
	got.Unmarshal(buf)
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestFingerprintMarshalAppends(t *testing.T) {
	a := Fingerprint{LibID: 1, Ref1: -1, Pos1: -1, Ref2: -1, Pos2: -1}
	b := Fingerprint{LibID: 2, Ref1: -1, Pos1: -1, Ref2: -1, Pos2: -1}
	buf := a.Marshal(nil)
	buf = b.Marshal(buf)
	if len(buf) != 2*FingerprintSize {
		t.Fatalf("expected %d bytes, got %d", 2*FingerprintSize, len(buf))
	}
	var got Fingerprint
	got.Unmarshal(buf[FingerprintSize:])
	if got.LibID != 2 {
		t.Fatalf("second record decoded as LibID %d, want 2", got.LibID)
	}
}

func TestBatchLessOrdersByGroupThenMateThenScoreThenIdx(t *testing.T) {
	fps := []Fingerprint{
		{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0, Ref2: 1, Pos2: 200, Score: 10, Idx1: 5},
		{LibID: 0, Ref1: 0, Pos1: 100, Rev1: 0, Ref2: 1, Pos2: 200, Score: 20, Idx1: 1},
		{LibID: 0, Ref1: 0, Pos1: 50, Rev1: 0, Ref2: -1, Pos2: -1, Score: 5, Idx1: 0},
		{LibID: -1, Ref1: 0, Pos1: 100, Rev1: 0, Ref2: -1, Pos2: -1, Score: 5, Idx1: 9},
	}
	sort.Slice(fps, func(i, j int) bool { return batchLess(&fps[i], &fps[j]) })

	if fps[0].LibID != -1 {
		t.Fatalf("unmapped-library fingerprint must sort first, got %+v", fps[0])
	}
	if fps[1].Pos1 != 50 {
		t.Fatalf("lower grouping position must sort before higher, got %+v", fps[1])
	}
	if fps[2].Score != 20 || fps[3].Score != 10 {
		t.Fatalf("within a mate cluster, higher score must sort first: got scores %d, %d", fps[2].Score, fps[3].Score)
	}
}

func TestBetterPrefersHigherScoreThenLowerIndexPair(t *testing.T) {
	a := Fingerprint{Score: 50, Idx1: 10, Idx2: 11}
	b := Fingerprint{Score: 60, Idx1: 20, Idx2: 21}
	if !better(b, a) {
		t.Fatalf("higher score must be preferred")
	}
	c := Fingerprint{Score: 50, Idx1: 1, Idx2: 5}
	d := Fingerprint{Score: 50, Idx1: 2, Idx2: 3}
	if !better(c, d) {
		t.Fatalf("equal score must break ties on the smaller min(idx1,idx2)")
	}
}
