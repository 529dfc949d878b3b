package markduplicates

import "sort"

// classifyGroup applies Sambamba's paired-end / orphan / single-end
// duplicate rules to one group of fingerprints sharing groupKey, per
// spec.md §4.4. It mutates bitmap and secondEnds in place and returns
// (orphan_count, pe_count, se_only_count): the number of duplicates
// produced by each rule, so callers can report aggregate statistics
// without rescanning the bitmap.
//
// Groups with lib_id == unmappedLibID are never classified: a group
// with that key returns zero counts and leaves bitmap untouched (the
// pipeline also drops such fingerprints before sorting; spec.md §4.4
// edge cases).
func classifyGroup(group []Fingerprint, groupKey GroupKey, bitmap *dupBitmap, secondEnds secondEndSet) (orphanCount, peCount, seOnlyCount int) {
	if groupKey.LibID == unmappedLibID || len(group) == 0 {
		return 0, 0, 0
	}

	var paired, orphans []Fingerprint
	for _, fp := range group {
		if fp.Paired == 1 {
			paired = append(paired, fp)
		} else {
			orphans = append(orphans, fp)
		}
	}

	sort.Slice(paired, func(i, j int) bool {
		return compareMateKey(paired[i].Mate(), paired[j].Mate()) < 0
	})
	i := 0
	for i < len(paired) {
		j := i + 1
		for j < len(paired) && paired[j].Mate() == paired[i].Mate() {
			j++
		}
		cluster := paired[i:j]

		best := 0
		for k := 1; k < len(cluster); k++ {
			if better(cluster[k], cluster[best]) {
				best = k
			}
		}
		for k, fp := range cluster {
			if k == best {
				continue
			}
			bitmap.Add(fp.Idx1)
			bitmap.Add(fp.Idx2)
			peCount += 2
		}

		mate := cluster[0].Mate()
		secondEnds.add(secondEndKey{LibID: groupKey.LibID, Ref: mate.Ref2, Pos: mate.Pos2, Rev: mate.Rev2})
		i = j
	}

	if len(orphans) == 0 {
		return 0, peCount, 0
	}

	ownKey := secondEndKey{LibID: groupKey.LibID, Ref: groupKey.Ref1, Pos: groupKey.Pos1, Rev: groupKey.Rev1}
	if len(paired) > 0 || secondEnds.contains(ownKey) {
		for _, o := range orphans {
			bitmap.Add(o.Idx1)
		}
		return len(orphans), peCount, 0
	}

	best := 0
	for k := 1; k < len(orphans); k++ {
		if orphans[k].Score > orphans[best].Score ||
			(orphans[k].Score == orphans[best].Score && orphans[k].Idx1 < orphans[best].Idx1) {
			best = k
		}
	}
	for k, o := range orphans {
		if k == best {
			continue
		}
		bitmap.Add(o.Idx1)
		seOnlyCount++
	}
	return 0, peCount, seOnlyCount
}
