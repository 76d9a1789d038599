package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/modules/admissions/domain/institution"
	"github.com/iota-uz/admissions/pkg/scrape"
)

// ImportRow is one line of a bulk ranking list.
type ImportRow struct {
	Name    string
	Country string
	Rank    int
}

type ImportResult struct {
	Added    int
	Reranked int
	Skipped  int
	// Rejected lists rows that failed validation.
	Rejected []string
}

type Importer struct {
	registry  *Registry
	countries CountryCanonicalizer
	logger    *logrus.Entry
}

func NewImporter(registry *Registry, countries CountryCanonicalizer, logger *logrus.Entry) *Importer {
	return &Importer{registry: registry, countries: countries, logger: logger}
}

// ImportRankings adds unknown institutions from rows. Ranks of known institutions only
// change when rerank is set.
func (im *Importer) ImportRankings(ctx context.Context, rows []ImportRow, rerank bool) ImportResult {
	var res ImportResult
	for _, row := range rows {
		name := institution.StripVariant(row.Name)
		country := im.country(row.Country)
		if existing, ok := im.registry.Find(name, country); ok {
			if rerank && row.Rank != 0 && row.Rank != existing.Rank() {
				if err := im.registry.Rerank(name, country, row.Rank); err != nil {
					res.Rejected = append(res.Rejected, fmt.Sprintf("%s (%s): %v", name, country, err))
					continue
				}
				res.Reranked++
				continue
			}
			res.Skipped++
			continue
		}
		if im.aliased(name) {
			res.Skipped++
			continue
		}
		im.add(ctx, &res, name, country, row.Rank)
	}
	return res
}

// ImportGrades registers institutions named in a GPA conversion table at the default rank.
// Per-country DEFAULT rows are not institutions and are dropped.
func (im *Importer) ImportGrades(ctx context.Context, rows []scrape.GradeRow) ImportResult {
	var res ImportResult
	for _, row := range rows {
		if row.IsDefault() {
			continue
		}
		name := institution.StripVariant(row.Title)
		country := im.country(row.Country)
		if _, ok := im.registry.Find(name, country); ok || name == "" || im.aliased(name) {
			res.Skipped++
			continue
		}
		im.add(ctx, &res, name, country, institution.DefaultRank)
	}
	return res
}

func (im *Importer) add(ctx context.Context, res *ImportResult, name, country string, rank int) {
	inst, err := institution.New(name, country, rank)
	if err == nil {
		err = im.registry.Add(inst)
	}
	if err != nil {
		res.Rejected = append(res.Rejected, fmt.Sprintf("%s (%s): %v", name, country, err))
		return
	}
	res.Added++
	logWithFields(ctx, im.logger, logrus.DebugLevel, "institution imported", logrus.Fields{
		"canonical": inst.Name(),
		"country":   inst.Country(),
		"rank":      inst.Rank(),
	})
}

// aliased reports whether name is a recorded alias spelling. The same canonical name in
// another country is a different institution and is imported.
func (im *Importer) aliased(name string) bool {
	_, ok := im.registry.ResolveAlias(name)
	return ok
}

func (im *Importer) country(raw string) string {
	if im.countries == nil {
		return raw
	}
	c, err := im.countries.Canonicalize(raw)
	if err != nil {
		return raw
	}
	return c
}
