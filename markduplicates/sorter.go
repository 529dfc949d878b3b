package markduplicates

import (
	"io"
	"os"
	"sort"
	"sync"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// sorter accumulates Fingerprints into batches, sorts each batch in
// memory, and spills it to a snappy-compressed temp file. Distinct
// batches sort and flush concurrently on a bounded worker pool; the
// caller is the single producer.
type sorter struct {
	batchSize int
	tmpDir    string

	buf []Fingerprint

	sem     chan struct{}
	wg      sync.WaitGroup
	errOnce errors.Once

	mu    sync.Mutex
	paths []string
}

func newSorter(batchSize, workers int, tmpDir string) *sorter {
	if workers < 1 {
		workers = 1
	}
	s := &sorter{
		batchSize: batchSize,
		tmpDir:    tmpDir,
		sem:       make(chan struct{}, workers),
	}
	s.buf = make([]Fingerprint, 0, batchSize)
	return s
}

// Add buffers fp, flushing the batch asynchronously once it reaches
// batchSize. Add returns the first error observed by any flush so far,
// so a producer that keeps calling Add after a temp-file failure does
// not keep accumulating unbounded work.
func (s *sorter) Add(fp Fingerprint) error {
	s.buf = append(s.buf, fp)
	if len(s.buf) >= s.batchSize {
		s.flushAsync(s.buf)
		s.buf = make([]Fingerprint, 0, s.batchSize)
	}
	return s.errOnce.Err()
}

func (s *sorter) flushAsync(batch []Fingerprint) {
	s.sem <- struct{}{}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		path, err := s.flushBatch(batch)
		if err != nil {
			s.errOnce.Set(err)
			return
		}
		s.mu.Lock()
		s.paths = append(s.paths, path)
		s.mu.Unlock()
	}()
}

// Finish flushes any partial batch, waits for all in-flight flushes,
// and returns the sorted temp file paths in no particular order along
// with the first error seen, if any.
func (s *sorter) Finish() ([]string, error) {
	if len(s.buf) > 0 {
		s.flushAsync(s.buf)
		s.buf = nil
	}
	s.wg.Wait()
	if err := s.errOnce.Err(); err != nil {
		s.removeAll()
		return nil, err
	}
	return s.paths, nil
}

func (s *sorter) removeAll() {
	s.mu.Lock()
	paths := s.paths
	s.mu.Unlock()
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			log.Error.Printf("markduplicates: removing temp file %s: %v", p, err)
		}
	}
}

func (s *sorter) flushBatch(batch []Fingerprint) (string, error) {
	sort.Slice(batch, func(i, j int) bool { return batchLess(&batch[i], &batch[j]) })

	f, err := os.CreateTemp(s.tmpDir, "bammarkdup-sort-*.tmp")
	if err != nil {
		return "", errors.E(err, "markduplicates: creating temp file")
	}
	path := f.Name()

	sw := snappy.NewBufferedWriter(f)
	var raw []byte
	for i := range batch {
		raw = batch[i].Marshal(raw[:0])
		if _, err := sw.Write(raw); err != nil {
			sw.Close()
			f.Close()
			os.Remove(path)
			return "", errors.E(err, "markduplicates: writing temp file", path)
		}
	}
	if err := sw.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.E(err, "markduplicates: closing temp file writer", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.E(err, "markduplicates: closing temp file", path)
	}
	return path, nil
}

// shardReader reads one sorted, snappy-compressed temp file back as a
// stream of Fingerprints.
type shardReader struct {
	f    *os.File
	sr   *snappy.Reader
	buf  [FingerprintSize]byte
	path string
}

func openShard(path string) (*shardReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "markduplicates: opening temp file", path)
	}
	return &shardReader{f: f, sr: snappy.NewReader(f), path: path}, nil
}

// next reads the next Fingerprint from the shard. ok is false at clean
// EOF.
func (s *shardReader) next() (fp Fingerprint, ok bool, err error) {
	if _, err = io.ReadFull(s.sr, s.buf[:]); err != nil {
		if err == io.EOF {
			return Fingerprint{}, false, nil
		}
		return Fingerprint{}, false, errors.E(err, "markduplicates: reading temp file", s.path)
	}
	fp.Unmarshal(s.buf[:])
	return fp, true, nil
}

func (s *shardReader) close() error {
	return s.f.Close()
}
