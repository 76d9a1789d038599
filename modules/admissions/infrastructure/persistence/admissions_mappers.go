package persistence

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/iota-uz/admissions/modules/admissions/domain/applicant"
	"github.com/iota-uz/admissions/modules/admissions/domain/institution"
	"github.com/iota-uz/admissions/pkg/sheets"
)

const (
	SheetLookup  = "lookup"
	SheetAliases = "aliases"
	SheetIgnore  = "ignore"
	SheetRename  = "rename"
	SheetSchools = "schools"
)

var (
	lookupHeader  = []string{"Name", "Rank", "Country"}
	aliasHeader   = []string{"Alias", "Standard Name"}
	ignoreHeader  = []string{"Name", "Country"}
	renameHeader  = []string{"Full_Name", "Field", "Value"}
	schoolsHeader = []string{"Full_Name", "UG_School", "GR_School"}
)

func ToSheetInstitutions(insts []institution.Institution) sheets.Sheet {
	s := sheets.Sheet{Name: SheetLookup, Header: lookupHeader}
	for _, inst := range insts {
		s.Rows = append(s.Rows, []string{inst.Name(), strconv.Itoa(inst.Rank()), inst.Country()})
	}
	return s
}

func ToDomainInstitutions(s sheets.Sheet) ([]institution.Institution, error) {
	cols, err := s.Require(lookupHeader...)
	if err != nil {
		return nil, err
	}
	out := make([]institution.Institution, 0, len(s.Rows))
	for i, row := range s.Rows {
		rank, err := parseInt(sheets.Cell(row, cols[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", s.Name, i+2)
		}
		inst, err := institution.New(sheets.Cell(row, cols[0]), sheets.Cell(row, cols[2]), rank)
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", s.Name, i+2)
		}
		out = append(out, inst)
	}
	return out, nil
}

func ToSheetAliases(aliases []institution.Alias) sheets.Sheet {
	s := sheets.Sheet{Name: SheetAliases, Header: aliasHeader}
	for _, a := range aliases {
		s.Rows = append(s.Rows, []string{a.Alias, a.Canonical})
	}
	return s
}

func ToDomainAliases(s sheets.Sheet) ([]institution.Alias, error) {
	cols, err := s.Require(aliasHeader...)
	if err != nil {
		return nil, err
	}
	out := make([]institution.Alias, 0, len(s.Rows))
	for _, row := range s.Rows {
		a := institution.Alias{
			Alias:     strings.TrimSpace(sheets.Cell(row, cols[0])),
			Canonical: strings.TrimSpace(sheets.Cell(row, cols[1])),
		}
		if a.Alias == "" || a.Canonical == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func ToSheetIgnores(entries []institution.IgnoreEntry) sheets.Sheet {
	s := sheets.Sheet{Name: SheetIgnore, Header: ignoreHeader}
	for _, e := range entries {
		s.Rows = append(s.Rows, []string{e.Name, e.Country})
	}
	return s
}

func ToDomainIgnores(s sheets.Sheet) ([]institution.IgnoreEntry, error) {
	cols, err := s.Require(ignoreHeader...)
	if err != nil {
		return nil, err
	}
	out := make([]institution.IgnoreEntry, 0, len(s.Rows))
	for _, row := range s.Rows {
		out = append(out, institution.IgnoreEntry{
			Name:    strings.TrimSpace(sheets.Cell(row, cols[0])),
			Country: strings.TrimSpace(sheets.Cell(row, cols[1])),
		})
	}
	return out, nil
}

func ToSheetRenames(renames []applicant.RenameIntent) sheets.Sheet {
	s := sheets.Sheet{Name: SheetRename, Header: renameHeader}
	for _, r := range renames {
		s.Rows = append(s.Rows, []string{r.FullName, r.Field.String(), r.Value})
	}
	return s
}

func ToDomainRenames(s sheets.Sheet) ([]applicant.RenameIntent, error) {
	cols, err := s.Require(renameHeader...)
	if err != nil {
		return nil, err
	}
	out := make([]applicant.RenameIntent, 0, len(s.Rows))
	for i, row := range s.Rows {
		field, err := applicant.ParseField(sheets.Cell(row, cols[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", s.Name, i+2)
		}
		out = append(out, applicant.RenameIntent{
			FullName: sheets.Cell(row, cols[0]),
			Field:    field,
			Value:    sheets.Cell(row, cols[2]),
		})
	}
	return out, nil
}

func ToSheetSchoolMatches(matches []applicant.SchoolMatch) sheets.Sheet {
	s := sheets.Sheet{Name: SheetSchools, Header: schoolsHeader}
	for _, m := range matches {
		gr := ""
		if m.GR != nil {
			gr = strconv.Itoa(int(*m.GR))
		}
		s.Rows = append(s.Rows, []string{m.FullName, strconv.Itoa(int(m.UG)), gr})
	}
	return s
}

func ToDomainSchoolMatches(s sheets.Sheet) ([]applicant.SchoolMatch, error) {
	cols, err := s.Require(schoolsHeader...)
	if err != nil {
		return nil, err
	}
	out := make([]applicant.SchoolMatch, 0, len(s.Rows))
	for i, row := range s.Rows {
		ug, err := parseSlot(sheets.Cell(row, cols[1]))
		if err != nil || ug == nil {
			return nil, errors.Errorf("%s row %d: UG_School must be 1..3", s.Name, i+2)
		}
		gr, err := parseSlot(sheets.Cell(row, cols[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", s.Name, i+2)
		}
		out = append(out, applicant.SchoolMatch{FullName: sheets.Cell(row, cols[0]), UG: *ug, GR: gr})
	}
	return out, nil
}

// parseInt accepts spreadsheet numbers such as "12" and "12.0". Blank means zero.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, errors.Errorf("not a whole number: %q", s)
	}
	return int(f), nil
}

func parseSlot(s string) (*applicant.Slot, error) {
	if strings.TrimSpace(s) == "" || strings.EqualFold(strings.TrimSpace(s), "nan") {
		return nil, nil
	}
	n, err := parseInt(s)
	if err != nil {
		return nil, err
	}
	slot := applicant.Slot(n)
	if !slot.Valid() {
		return nil, errors.Errorf("slot %d out of range", n)
	}
	return &slot, nil
}
