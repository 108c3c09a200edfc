// Package mergecsv concatenates per-partition result CSVs into one file,
// keeping a single header row.
package mergecsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Merge streams every *.csv under inputDir (sorted by name, which matches
// partition order for zero-padded indices) into outputFile. The header of
// the first file is written once; later headers are dropped. Returns the
// number of data rows written.
func Merge(inputDir, outputFile string) (int64, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return 0, fmt.Errorf("read input dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return 0, fmt.Errorf("no CSV files found in %s", inputDir)
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return 0, fmt.Errorf("create merged file: %w", err)
	}
	defer out.Close()
	w := csv.NewWriter(out)

	var (
		rows          int64
		headerWritten bool
	)
	for _, name := range names {
		n, err := appendFile(filepath.Join(inputDir, name), w, &headerWritten)
		if err != nil {
			return rows, err
		}
		rows += n
		log.Debug().Str("file", name).Int64("rows", n).Msg("merged chunk")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, err
	}
	if err := out.Close(); err != nil {
		return rows, err
	}

	log.Info().Int64("rows", rows).Int("files", len(names)).Str("output", outputFile).Msg("merge complete")
	return rows, nil
}

func appendFile(path string, w *csv.Writer, headerWritten *bool) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("read header of %s: %w", path, err)
	}
	if !*headerWritten {
		if err := w.Write(header); err != nil {
			return 0, err
		}
		*headerWritten = true
	}

	var n int64
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("read %s: %w", path, err)
		}
		if err := w.Write(rec); err != nil {
			return n, err
		}
		n++
	}
}
