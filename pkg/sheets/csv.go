package sheets

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

// CSV stores every sheet in its own file next to path: "<stem>.<sheet>.csv".
// A plain file at path is read as a single sheet named after the stem.
type CSV struct{}

func (CSV) sheetPath(path, sheet string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + sheet + ".csv"
}

func (c CSV) Files(path string) ([]string, error) {
	pattern := strings.TrimSuffix(path, filepath.Ext(path)) + ".*.csv"
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", pattern)
	}
	if _, err := os.Stat(path); err == nil {
		matches = append(matches, path)
	}
	sort.Strings(matches)
	return matches, nil
}

func (c CSV) Read(path string) ([]Sheet, error) {
	files, err := c.Files(path)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	out := make([]Sheet, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(strings.TrimPrefix(f, stem+"."), ".csv")
		if f == path {
			name = filepath.Base(stem)
		}
		s, err := readCSVFile(f)
		if err != nil {
			return nil, err
		}
		s.Name = name
		out = append(out, s)
	}
	return out, nil
}

func (c CSV) Write(path string, sheets []Sheet) error {
	for _, s := range sheets {
		if err := writeCSVFile(c.sheetPath(path, s.Name), s); err != nil {
			return err
		}
	}
	return nil
}

func readCSVFile(path string) (Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sheet{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(stripUTF8BOM(bufio.NewReader(f)))
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return Sheet{}, errors.Wrapf(err, "read %s", path)
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Sheet{}, errors.Wrapf(err, "read %s", path)
		}
		rows = append(rows, rec)
	}
	return Sheet{Header: header, Rows: normalizeRows(header, rows)}, nil
}

func writeCSVFile(path string, s Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(s.Header); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := w.WriteAll(s.Rows); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func readHeader(r *csv.Reader) ([]string, error) {
	h, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("missing header")
		}
		return nil, err
	}
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(h[i]) {
			return nil, errors.New("invalid header encoding")
		}
	}
	return h, nil
}
