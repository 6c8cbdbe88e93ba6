package raster

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// csvSource reads a comma separated point file a record at a time.
type csvSource struct {
	f *os.File
	r *csv.Reader
}

func openCSV(path string) (*csvSource, error) {
	if path == "" {
		return nil, errcode.New(errcode.InputFileError, "csv path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.InputFileError, err, "open csv %q", path)
	}
	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = true
	return &csvSource{f: f, r: r}, nil
}

// next returns the cleaned cells of the next record, io.EOF at the end.
func (s *csvSource) next() ([]string, error) {
	for {
		rec, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errcode.Wrap(errcode.InputFileError, err, "read csv %q", s.f.Name())
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		for i := range rec {
			rec[i] = cleanCell(rec[i])
		}
		return rec, nil
	}
}

func (s *csvSource) close() { _ = s.f.Close() }

// cleanCell trims whitespace and one pair of surrounding double quotes.
func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	return strings.TrimSpace(v)
}

func fieldIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func numericCell(rec []string, i int) (float64, bool) {
	if i < 0 || i >= len(rec) {
		return 0, false
	}
	v, err := strconv.ParseFloat(rec[i], 64)
	return v, err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isHeader(rec []string) bool {
	for _, c := range rec {
		if _, err := strconv.ParseFloat(cleanCell(c), 64); err == nil {
			return false
		}
	}
	return true
}

// csvSink writes lines to a new text file.
type csvSink struct {
	path string
	f    *os.File
	w    *bufio.Writer
	n    int
}

func createCSV(path string) (*csvSink, error) {
	if path == "" {
		return nil, errcode.New(errcode.OutputFileMissing, "output csv path is missing")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.OutputFileError, err, "create %q", path)
	}
	return &csvSink{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (s *csvSink) line(fields ...string) error {
	if _, err := s.w.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
		return errcode.Wrap(errcode.OutputFileError, err, "write %q", s.path)
	}
	s.n++
	return nil
}

func (s *csvSink) close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return errcode.Wrap(errcode.OutputFileError, err, "flush %q", s.path)
	}
	if err := s.f.Close(); err != nil {
		return errcode.Wrap(errcode.OutputFileError, err, "close %q", s.path)
	}
	return nil
}

func (s *csvSink) abort() {
	_ = s.f.Close()
}

// coordPrecision is one more decimal than the cell width so that cell
// centres print exactly.
func coordPrecision(m grid.Meta) int {
	return min(m.Precision()+1, 10)
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
