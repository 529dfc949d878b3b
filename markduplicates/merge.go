package markduplicates

import (
	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
)

// mergeLeaf is one active shard in the k-way merge tree: it holds the
// shard's current Fingerprint and compares by grouping key, breaking
// ties by shard arrival order. Grounded on
// cmd/bio-bam-sort/sorter/sort.go's mergeLeaf/internalMergeShards,
// which merges sorted BAM shards the same way; here the merge key is
// the fingerprint grouping key rather than a BAM coordinate.
type mergeLeaf struct {
	seq    int
	reader *shardReader
	cur    Fingerprint
	valid  bool
}

func newMergeLeaf(seq int, r *shardReader) (*mergeLeaf, error) {
	fp, ok, err := r.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, r.close()
	}
	return &mergeLeaf{seq: seq, reader: r, cur: fp, valid: true}, nil
}

func (l *mergeLeaf) Compare(c1 llrb.Comparable) int {
	l1 := c1.(*mergeLeaf)
	if c := compareGroupKey(l.cur.Key(), l1.cur.Key()); c != 0 {
		return c
	}
	return l.seq - l1.seq
}

// advance reads the shard's next Fingerprint into l.cur. If the shard
// is exhausted, l.valid becomes false and the underlying file is
// closed.
func (l *mergeLeaf) advance() error {
	fp, ok, err := l.reader.next()
	if err != nil {
		return err
	}
	if !ok {
		l.valid = false
		return l.reader.close()
	}
	l.cur = fp
	return nil
}

// mergeAndClassify performs the k-way merge of the sorted temp files
// named by paths and, in the same pass, buffers each equal-grouping-key
// run into a group and classifies it (spec.md §4.3, §4.4, §4.6). It
// returns the accumulated classification counters.
func mergeAndClassify(paths []string, bitmap *dupBitmap) (Stats, error) {
	var stats Stats
	leafs := llrb.Tree{}
	for i, p := range paths {
		r, err := openShard(p)
		if err != nil {
			return stats, err
		}
		leaf, err := newMergeLeaf(i, r)
		if err != nil {
			return stats, err
		}
		if leaf != nil {
			leafs.Insert(leaf)
		}
	}

	secondEnds := secondEndSet{}
	var group []Fingerprint
	haveGroup := false
	var groupKey GroupKey

	flush := func() {
		if !haveGroup {
			return
		}
		o, p, se := classifyGroup(group, groupKey, bitmap, secondEnds)
		stats.Orphans += o
		stats.Pairs += p
		stats.SingleEndOnly += se
		group = group[:0]
	}

	for leafs.Len() > 0 {
		var top, next *mergeLeaf
		n := 0
		leafs.Do(func(item llrb.Comparable) bool {
			n++
			switch n {
			case 1:
				top = item.(*mergeLeaf)
				return false
			case 2:
				next = item.(*mergeLeaf)
				return true
			default:
				log.Fatalf("markduplicates: merge tree callback invoked a third time")
				return false
			}
		})

		for {
			k := top.cur.Key()
			if !haveGroup || compareGroupKey(k, groupKey) != 0 {
				flush()
				groupKey = k
				haveGroup = true
			}
			group = append(group, top.cur)
			if err := top.advance(); err != nil {
				return stats, err
			}
			if !top.valid || (next != nil && compareGroupKey(next.cur.Key(), top.cur.Key()) < 0) {
				break
			}
		}

		lenBefore := leafs.Len()
		leafs.DeleteMin()
		if top.valid {
			leafs.Insert(top)
			if lenAfter := leafs.Len(); lenAfter != lenBefore {
				log.Fatalf("markduplicates: merge tree size changed from %d to %d re-inserting an active leaf", lenBefore, lenAfter)
			}
		}
	}
	flush()
	return stats, nil
}
