// Package partition streams contiguous (min, max) id ranges out of a sorted
// identifier index file without ever holding the id list in memory.
package partition

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Boundary is one inclusive id range. Index is 1-based and strictly
// increasing in the order boundaries are emitted.
type Boundary struct {
	Index int
	Min   string
	Max   string
}

// CountDataLines returns the number of data lines in path, excluding the
// header line. It reads in fixed-size blocks, so memory use is independent
// of file size.
func CountDataLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var (
		buf   = make([]byte, 64*1024)
		lines int
		last  byte
	)
	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				lines++
			}
		}
		if n > 0 {
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	// A trailing line without a newline still counts.
	if last != 0 && last != '\n' {
		lines++
	}
	if lines == 0 {
		return 0, nil
	}
	return lines - 1, nil
}

// Scanner yields contiguous chunk boundaries from a sorted id index in a
// single sequential pass. It consumes the underlying file and is not
// restartable.
type Scanner struct {
	r         *csv.Reader
	closer    io.Closer
	chunkSize int
	index     int
	cur       Boundary
	err       error
	done      bool
}

// Open counts the data lines of the index file, derives the chunk size for
// targetCount partitions, and returns a Scanner positioned past the header.
// The ids must already be sorted ascending; the scanner does not check.
func Open(path string, targetCount int) (*Scanner, error) {
	if targetCount < 1 {
		return nil, fmt.Errorf("partition: target count must be >= 1, got %d", targetCount)
	}
	total, err := CountDataLines(path)
	if err != nil {
		return nil, fmt.Errorf("count index lines: %w", err)
	}
	chunkSize := (total + targetCount - 1) / targetCount

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := newScanner(f, chunkSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewScanner wraps an already-open index stream with a fixed chunk size.
// Used directly by tests; Open is the production entry point.
func NewScanner(r io.Reader, chunkSize int) (*Scanner, error) {
	return newScanner(r, chunkSize)
}

func newScanner(r io.Reader, chunkSize int) (*Scanner, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	// Skip header. An empty file yields no boundaries rather than an error.
	s := &Scanner{r: cr, chunkSize: chunkSize}
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return s, nil
		}
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if chunkSize < 1 {
		s.done = true
	}
	return s, nil
}

// Next advances to the next boundary. It returns false at the end of input
// or on error; check Err afterwards.
func (s *Scanner) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	var (
		first string
		last  string
		count int
	)
	for count < s.chunkSize {
		rec, err := s.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				break
			}
			s.err = err
			return false
		}
		if len(rec) == 0 {
			continue
		}
		if count == 0 {
			first = rec[0]
		}
		last = rec[0]
		count++
	}
	if count == 0 {
		return false
	}

	s.index++
	s.cur = Boundary{Index: s.index, Min: first, Max: last}
	return true
}

// Boundary returns the boundary produced by the last successful Next.
func (s *Scanner) Boundary() Boundary { return s.cur }

// Err returns the first error encountered while scanning, if any.
func (s *Scanner) Err() error { return s.err }

// Close releases the underlying file, if the scanner owns one.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
