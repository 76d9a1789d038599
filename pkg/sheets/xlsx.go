package sheets

import (
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

type XLSX struct{}

func (XLSX) Files(path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	return []string{path}, nil
}

func (XLSX) Read(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var out []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s[%s]", path, name)
		}
		s := Sheet{Name: name}
		if len(rows) > 0 {
			s.Header = make([]string, len(rows[0]))
			for i, h := range rows[0] {
				s.Header[i] = strings.TrimSpace(h)
			}
			s.Rows = normalizeRows(s.Header, rows[1:])
		}
		out = append(out, s)
	}
	return out, nil
}

func (XLSX) Write(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return errors.Errorf("write %s: no sheets", path)
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return errors.Wrapf(err, "rename sheet %s", s.Name)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return errors.Wrapf(err, "new sheet %s", s.Name)
		}
		if err := writeRow(f, s.Name, 1, s.Header); err != nil {
			return err
		}
		for j, row := range s.Rows {
			if err := writeRow(f, s.Name, j+2, row); err != nil {
				return err
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return errors.Wrapf(err, "write %s row %d", sheet, row)
	}
	return nil
}
