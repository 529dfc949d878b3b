package markduplicates

import (
	"time"

	"github.com/grailbio/base/log"
)

// Stats accumulates the run summary this package reports at the end of
// Run: the (orphan_count, pe_count, se_only_count) triples spec.md
// §4.4 requires the Group Classifier to produce, summed across every
// group, plus record and duplicate totals. Grounded on
// _examples/original_source/src/main.rs, which accumulates the same
// three counters across groups and prints a summary at the end of the
// run (via utils.rs's format_duration helpers).
type Stats struct {
	TotalRecords  uint64
	Orphans       int
	Pairs         int
	SingleEndOnly int
	Duplicates    uint64
	Elapsed       time.Duration
}

// Log writes a human-readable summary of s, mirroring the level of
// detail markduplicates/mark_duplicates.go logs at the end of a run.
func (s Stats) Log() {
	log.Printf("markduplicates: %d records processed in %s", s.TotalRecords, s.Elapsed)
	log.Printf("markduplicates: %d duplicates marked (%d orphan, %d paired-end, %d single-end-only)",
		s.Duplicates, s.Orphans, s.Pairs, s.SingleEndOnly)
}
