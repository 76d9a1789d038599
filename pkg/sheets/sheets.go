// Package sheets stores small named tables ("sheets") in spreadsheet, CSV or SQLite files.
//
// A file holds one or more sheets. Every sheet has a header row and string cells; rows
// shorter than the header are padded with empty strings on read.
package sheets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrColumnNotFound    = errors.New("column not found")
)

type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Codec reads and writes every sheet of one table file.
type Codec interface {
	Read(path string) ([]Sheet, error)
	Write(path string, sheets []Sheet) error
	// Files lists the files that currently back path on disk.
	Files(path string) ([]string, error)
}

func ForPath(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return XLSX{}, nil
	case ".csv":
		return CSV{}, nil
	case ".db", ".sqlite", ".sqlite3":
		return SQLite{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}

// Exists reports whether any file backs path. For CSV that includes the
// "<stem>.<sheet>.csv" files next to it.
func Exists(path string) (bool, error) {
	c, err := ForPath(path)
	if err != nil {
		return false, err
	}
	files, err := c.Files(path)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// Read loads path with the codec matching its extension.
// A missing file yields no sheets and no error.
func Read(path string) ([]Sheet, error) {
	ok, err := Exists(path)
	if err != nil || !ok {
		return nil, err
	}
	c, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	return c.Read(path)
}

func Write(path string, sheets ...Sheet) error {
	c, err := ForPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	return c.Write(path, sheets)
}

func Find(sheets []Sheet, name string) (Sheet, error) {
	for _, s := range sheets {
		if s.Name == name {
			return s, nil
		}
	}
	for _, s := range sheets {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return Sheet{}, errors.Wrapf(ErrSheetNotFound, "%q", name)
}

// FindOrEmpty returns the named sheet, or an empty sheet with the given header.
func FindOrEmpty(sheets []Sheet, name string, header ...string) Sheet {
	s, err := Find(sheets, name)
	if err != nil {
		return Sheet{Name: name, Header: header}
	}
	return s
}

func (s Sheet) Index() map[string]int {
	m := make(map[string]int, len(s.Header))
	for i, h := range s.Header {
		m[h] = i
	}
	return m
}

// Require returns the column positions of the requested header names.
func (s Sheet) Require(columns ...string) ([]int, error) {
	idx := s.Index()
	out := make([]int, len(columns))
	for i, c := range columns {
		j, ok := idx[c]
		if !ok {
			return nil, errors.Wrapf(ErrColumnNotFound, "sheet %q: %s", s.Name, c)
		}
		out[i] = j
	}
	return out, nil
}

// Column returns every cell of one column, skipping empty cells.
func (s Sheet) Column(name string) ([]string, error) {
	cols, err := s.Require(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		if v := strings.TrimSpace(Cell(row, cols[0])); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func normalizeRows(header []string, rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		out = append(out, row)
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
