/*Package markduplicates marks or removes PCR/optical duplicate reads
in a coordinate-sorted BAM file, producing output byte-compatible with
Sambamba's MarkDuplicates: every output record is identical to its
input record except that flag bit 0x400 is set or cleared.

Duplicate Marking Concepts:

Two mapped reads are candidates for the same duplicate group if their
reference id, unclipped 5' position, and strand are all identical. A
proper pair occupies two such positions at once (its two ends); two
pairs are duplicates of each other when both ends match, coordinate for
coordinate. A read whose mate is unmapped (an "orphan") occupies only
one position and can be a duplicate of either an orphan or one end of a
proper pair sharing that position.

Pipeline:

The work happens in two full passes over the input, joined by an
external sort:

  1. The Fingerprint Extractor (extractor.go) walks the input once,
     computing each record's unclipped 5' position and quality score
     and resolving its library. Paired, mate-mapped records are
     buffered by the Pair Joiner (joiner.go) until their mate arrives,
     then emitted as a single joined Fingerprint (fingerprint.go).
  2. The External Sorter (sorter.go) batches Fingerprints, sorts each
     batch in memory, and spills it to a compressed temp file, bounding
     memory independent of input size.
  3. The K-way Merger (merge.go) streams the sorted temp files back in
     one global order; the Group Classifier (classify.go) buffers each
     run of equal-grouping-key Fingerprints and applies the paired/
     orphan/single-end duplicate rules, recording duplicate indices in
     a sparse bitmap (bitmap.go).
  4. The Mark Writer (writer.go) makes a second raw pass over the input
     bytes, patching only the two flag bytes of each record according
     to the bitmap, or dropping duplicate records entirely in removal
     mode.

Run (mark_duplicates.go) wires these stages together and is the
package's entry point; cmd/doppelmark is its command-line front end.
*/
package markduplicates
