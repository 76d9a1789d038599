package persistence

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/sheets"
)

const (
	SheetReaders     = "Readers"
	SheetCandidates  = "Candidates"
	SheetRewards     = "Rewards"
	SheetAssignments = "Assignments"
	SheetMatrix      = "Matrix"
	SheetReport      = "Schools"

	columnReaders    = "Reader Names"
	columnCandidates = "Candidate Names"
)

// Roster lists the people taking part in a reading assignment.
type Roster struct {
	Readers    []string
	Candidates []string
}

// readExisting loads an input file. A file that is absent, including a CSV table with
// none of its sheet files on disk, is missing data.
func readExisting(path, kind string) ([]sheets.Sheet, error) {
	ok, err := sheets.Exists(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if !ok {
		return nil, &services.MissingDataError{Kind: kind, IDs: []string{path}}
	}
	all, err := sheets.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return all, nil
}

func LoadRoster(path string) (Roster, error) {
	all, err := readExisting(path, "roster file")
	if err != nil {
		return Roster{}, err
	}
	var missing []string
	column := func(sheet, col string) []string {
		s, err := sheets.Find(all, sheet)
		if err != nil {
			missing = append(missing, sheet)
			return nil
		}
		vals, err := s.Column(col)
		if err != nil {
			missing = append(missing, sheet+"/"+col)
			return nil
		}
		return vals
	}
	r := Roster{
		Readers:    column(SheetReaders, columnReaders),
		Candidates: column(SheetCandidates, columnCandidates),
	}
	if len(missing) > 0 {
		return Roster{}, &services.MissingDataError{Kind: "roster sheet", IDs: missing}
	}
	return r, nil
}

// LoadRewards reads the Rewards sheet: the first column names the candidate and every
// other column holds one reader's weights. Every weight must be present.
func LoadRewards(path string) (services.Rewards, error) {
	all, err := readExisting(path, "rewards file")
	if err != nil {
		return services.Rewards{}, err
	}
	s, err := sheets.Find(all, SheetRewards)
	if err != nil {
		return services.Rewards{}, &services.MissingDataError{Kind: "rewards sheet", IDs: []string{SheetRewards}}
	}
	if len(s.Header) < 2 {
		return services.Rewards{}, errors.Errorf("%s: expected a candidate column and at least one reader", SheetRewards)
	}
	rw := services.Rewards{Readers: append([]string(nil), s.Header[1:]...)}
	var missing []string
	for _, row := range s.Rows {
		cand := strings.TrimSpace(sheets.Cell(row, 0))
		if cand == "" {
			continue
		}
		weights := make([]float64, len(rw.Readers))
		for j, reader := range rw.Readers {
			cell := strings.TrimSpace(sheets.Cell(row, j+1))
			if cell == "" {
				missing = append(missing, cand+"/"+reader)
				continue
			}
			w, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return services.Rewards{}, errors.Wrapf(err, "%s reward for %s/%s", SheetRewards, cand, reader)
			}
			weights[j] = w
		}
		rw.Candidates = append(rw.Candidates, cand)
		rw.Weights = append(rw.Weights, weights)
	}
	if len(missing) > 0 {
		return services.Rewards{}, &services.MissingDataError{Kind: "reward", IDs: missing}
	}
	return rw, nil
}

// ToSheetAssignment lays out one column per reader, in name order, with the reader's
// candidates below it. Columns have different lengths.
func ToSheetAssignment(asg services.Assignment) sheets.Sheet {
	readers := make([]string, 0, len(asg))
	depth := 0
	for r, cs := range asg {
		readers = append(readers, r)
		depth = max(depth, len(cs))
	}
	sort.Strings(readers)
	s := sheets.Sheet{Name: SheetAssignments, Header: readers}
	for i := 0; i < depth; i++ {
		row := make([]string, len(readers))
		for j, r := range readers {
			row[j] = sheets.Cell(asg[r], i)
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// ToDomainAssignment reads a sheet written by ToSheetAssignment.
func ToDomainAssignment(s sheets.Sheet) services.Assignment {
	asg := make(services.Assignment, len(s.Header))
	for j, r := range s.Header {
		asg[r] = []string{}
		for _, row := range s.Rows {
			if c := strings.TrimSpace(sheets.Cell(row, j)); c != "" {
				asg[r] = append(asg[r], c)
			}
		}
	}
	return asg
}

func toSheetMatrix(name string, rw services.Rewards, cell func(c, r int) string) sheets.Sheet {
	s := sheets.Sheet{Name: name, Header: append([]string{"Candidate"}, rw.Readers...)}
	for i, cand := range rw.Candidates {
		row := []string{cand}
		for j := range rw.Readers {
			row = append(row, cell(i, j))
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func WriteAssignment(path string, asg services.Assignment) error {
	return sheets.Write(path, ToSheetAssignment(asg))
}

// WriteOptimizedAssignment adds the 0/1 Matrix and the Rewards the optimizer saw.
func WriteOptimizedAssignment(path string, res services.OptimizedAssignment) error {
	matrix := toSheetMatrix(SheetMatrix, res.Rewards, func(c, r int) string {
		if res.Matrix[c][r] {
			return "1"
		}
		return "0"
	})
	rewards := toSheetMatrix(SheetRewards, res.Rewards, func(c, r int) string {
		return strconv.FormatFloat(res.Rewards.Weights[c][r], 'g', -1, 64)
	})
	return sheets.Write(path, ToSheetAssignment(res.Assignment), matrix, rewards)
}

var reportHeader = []string{"Full_Name", "UG_School", "UG_Country", "UG_Rank", "GR_School", "GR_Country", "GR_Rank"}

func ToSheetSchoolReport(rows []services.SchoolReportRow) sheets.Sheet {
	s := sheets.Sheet{Name: SheetReport, Header: reportHeader}
	place := func(p *services.Placement) []string {
		if p == nil {
			return []string{"", "", ""}
		}
		return []string{p.Name, p.Country, strconv.Itoa(p.Rank)}
	}
	for _, r := range rows {
		row := append([]string{r.FullName}, place(r.UG)...)
		s.Rows = append(s.Rows, append(row, place(r.GR)...))
	}
	return s
}

func WriteSchoolReport(path string, rows []services.SchoolReportRow) error {
	return sheets.Write(path, ToSheetSchoolReport(rows))
}
