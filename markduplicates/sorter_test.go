package markduplicates

import (
	"testing"

	"github.com/grailbio/testutil"
)

func TestSorterFlushBatchRoundTrip(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s := newSorter(100, 2, dir)
	fps := []Fingerprint{
		makeSE(0, 0, 300, 0, 10, 2),
		makeSE(0, 0, 100, 0, 20, 0),
		makeSE(0, 0, 200, 0, 30, 1),
	}
	for _, fp := range fps {
		if err := s.Add(fp); err != nil {
			t.Fatal(err)
		}
	}
	paths, err := s.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 spilled batch, got %d", len(paths))
	}

	r, err := openShard(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer r.close() // nolint: errcheck

	var got []Fingerprint
	for {
		fp, ok, err := r.next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, fp)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 fingerprints back, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !batchLess(&got[i-1], &got[i]) && got[i-1] != got[i] {
			t.Fatalf("spilled batch is not sorted at index %d: %+v then %+v", i, got[i-1], got[i])
		}
	}
	if got[0].Pos1 != 100 {
		t.Fatalf("expected the lowest position first, got %+v", got[0])
	}
}

func TestSorterFinishWithNoData(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	s := newSorter(100, 2, dir)
	paths, err := s.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected no spilled batches, got %d", len(paths))
	}
}
