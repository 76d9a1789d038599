package persistence

import (
	"strings"

	"github.com/go-faster/errors"

	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/sheets"
)

// LoadRankingList reads a bulk ranking list with Name, Rank and Country columns. The
// lookup sheet is used when present, otherwise the first sheet. Blank ranks stay zero.
func LoadRankingList(path string) ([]services.ImportRow, error) {
	all, err := readExisting(path, "ranking list")
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, &services.MissingDataError{Kind: "ranking list", IDs: []string{path}}
	}
	s, err := sheets.Find(all, SheetLookup)
	if err != nil {
		s = all[0]
	}
	cols, err := s.Require(lookupHeader...)
	if err != nil {
		return nil, err
	}
	out := make([]services.ImportRow, 0, len(s.Rows))
	for i, row := range s.Rows {
		name := strings.TrimSpace(sheets.Cell(row, cols[0]))
		if name == "" {
			continue
		}
		rank, err := parseInt(sheets.Cell(row, cols[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", s.Name, i+2)
		}
		out = append(out, services.ImportRow{
			Name:    name,
			Rank:    rank,
			Country: strings.TrimSpace(sheets.Cell(row, cols[2])),
		})
	}
	return out, nil
}
