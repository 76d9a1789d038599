package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/modules/admissions/domain/applicant"
	"github.com/iota-uz/admissions/modules/admissions/domain/institution"
	"github.com/iota-uz/admissions/pkg/country"
	"github.com/iota-uz/admissions/pkg/metrics"
	"github.com/iota-uz/admissions/pkg/prompt"
)

const (
	KindUndergrad prompt.Kind = "undergrad"
	KindGraduate  prompt.Kind = "graduate"
)

type CountryCanonicalizer interface {
	Canonicalize(name string) (string, error)
}

type SchoolAssignerOptions struct {
	Countries CountryCanonicalizer
	Logger    *logrus.Entry
	Metrics   *metrics.Recorder
}

func (o *SchoolAssignerOptions) setDefaults() {
	if o.Countries == nil {
		o.Countries = country.Default()
	}
}

// SchoolAssigner decides which of an applicant's schools is the undergraduate
// institution and which, if any, is the graduate one.
type SchoolAssigner struct {
	resolver *Resolver
	ledger   *Ledger
	asker    prompt.Asker
	opts     SchoolAssignerOptions
}

func NewSchoolAssigner(resolver *Resolver, ledger *Ledger, asker prompt.Asker, opts SchoolAssignerOptions) *SchoolAssigner {
	opts.setDefaults()
	return &SchoolAssigner{resolver: resolver, ledger: ledger, asker: asker, opts: opts}
}

type resolvedSchool struct {
	slot   applicant.Slot
	name   string
	school applicant.School
}

// Assign returns the stored match for a when it still resolves, otherwise it resolves
// every school slot again and records a new match. Rename intents are applied to a.
func (s *SchoolAssigner) Assign(ctx context.Context, a *applicant.Applicant) (applicant.SchoolMatch, error) {
	fullName := a.FullName()
	if m, ok := s.ledger.Match(fullName); ok {
		if s.stillKnown(*a, m) {
			s.opts.Metrics.SchoolMatch("kept")
			return m, nil
		}
		logWithFields(ctx, s.opts.Logger, logrus.WarnLevel, "stored school match no longer resolves", logrus.Fields{
			"applicant": fullName,
		})
		s.ledger.DropMatch(fullName)
	}

	prompt.Notify(s.asker, "\n%s", fullName)
	schools, err := s.resolveSlots(ctx, a)
	if err != nil {
		return applicant.SchoolMatch{}, err
	}
	if len(schools) == 0 {
		s.opts.Metrics.SchoolMatch("unresolved")
		return applicant.SchoolMatch{}, errors.Wrapf(ErrNoSchools, "%s", fullName)
	}

	m := applicant.SchoolMatch{FullName: fullName, UG: schools[0].slot}
	if len(schools) > 1 {
		ug, err := s.pickUndergrad(ctx, schools)
		if err != nil {
			return applicant.SchoolMatch{}, err
		}
		m.UG = schools[ug].slot
		gr, ok, err := s.pickGraduate(ctx, schools, ug)
		if err != nil {
			return applicant.SchoolMatch{}, err
		}
		if ok {
			slot := schools[gr].slot
			m.GR = &slot
		}
	}

	s.ledger.PutMatch(m)
	s.opts.Metrics.SchoolMatch("assigned")
	fields := logrus.Fields{"applicant": fullName, "ug_slot": int(m.UG)}
	if m.GR != nil {
		fields["gr_slot"] = int(*m.GR)
	}
	logWithFields(ctx, s.opts.Logger, logrus.InfoLevel, "schools assigned", fields)
	return m, nil
}

// AssignAll runs Assign for every applicant. Applicants without any resolvable school
// are reported rather than failing the batch.
func (s *SchoolAssigner) AssignAll(ctx context.Context, applicants []applicant.Applicant) ([]string, error) {
	var unresolved []string
	for i := range applicants {
		if _, err := s.Assign(ctx, &applicants[i]); err != nil {
			if errors.Is(err, ErrNoSchools) {
				unresolved = append(unresolved, applicants[i].FullName())
				continue
			}
			return unresolved, err
		}
	}
	return unresolved, nil
}

func (s *SchoolAssigner) stillKnown(a applicant.Applicant, m applicant.SchoolMatch) bool {
	reg := s.resolver.Registry()
	if !m.UG.Valid() || !reg.IsKnown(institution.StripVariant(a.School(m.UG).Name)) {
		return false
	}
	if m.GR != nil {
		if !m.GR.Valid() || !reg.IsKnown(institution.StripVariant(a.School(*m.GR).Name)) {
			return false
		}
	}
	return true
}

func (s *SchoolAssigner) canonicalCountry(raw string) string {
	c, err := s.opts.Countries.Canonicalize(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return c
}

func (s *SchoolAssigner) resolveSlots(ctx context.Context, a *applicant.Applicant) ([]resolvedSchool, error) {
	var out []resolvedSchool
	for i := range a.Schools {
		slot := applicant.SlotFromIndex(i)
		school := a.Schools[i]
		if !school.Present() {
			continue
		}
		res, err := s.resolver.Resolve(ctx, school.Name, s.canonicalCountry(school.Country), school.City)
		if err != nil {
			return nil, err
		}
		switch res.Kind {
		case OutcomeSkip:
			continue
		case OutcomeRename:
			intent := applicant.RenameIntent{
				FullName: a.FullName(),
				Field:    applicant.Field{Kind: applicant.FieldSchoolName, Slot: slot},
				Value:    res.Name,
			}
			s.ledger.AddRename(intent)
			if err := a.Apply(intent); err != nil {
				return nil, err
			}
		}
		out = append(out, resolvedSchool{slot: slot, name: res.Name, school: school})
	}
	return out, nil
}

func (s *SchoolAssigner) pickUndergrad(ctx context.Context, schools []resolvedSchool) (int, error) {
	var under []int
	for i, rs := range schools {
		if strings.Contains(strings.ToLower(rs.school.DegreeLevel), "under") {
			under = append(under, i)
		}
	}
	if len(under) == 1 {
		return under[0], nil
	}

	s.listSchools(schools)
	valid := make([]int, len(schools))
	for i := range schools {
		valid[i] = i
	}
	for {
		idx, empty, err := s.askIndex(ctx, KindUndergrad, "Pick UNDERgrad school index (from 0) ", valid)
		if err != nil {
			return 0, err
		}
		if !empty {
			return idx, nil
		}
		prompt.Notify(s.asker, "I need a valid integer from the list.")
	}
}

// pickGraduate treats any non-blank degree without "under", or with "combined", as a
// graduate candidate, excluding the undergraduate slot.
func (s *SchoolAssigner) pickGraduate(ctx context.Context, schools []resolvedSchool, ug int) (int, bool, error) {
	var cands []int
	for i, rs := range schools {
		if i == ug {
			continue
		}
		d := strings.ToLower(strings.TrimSpace(rs.school.DegreeLevel))
		if d == "" {
			continue
		}
		if !strings.Contains(d, "under") || strings.Contains(d, "combined") {
			cands = append(cands, i)
		}
	}
	switch len(cands) {
	case 0:
		return 0, false, nil
	case 1:
		return cands[0], true, nil
	}

	s.listSchools(schools)
	idx, empty, err := s.askIndex(ctx, KindGraduate, "Pick GRAD school index (from 0) or enter for none ", cands)
	if err != nil {
		return 0, false, err
	}
	if empty {
		return 0, false, nil
	}
	return idx, true, nil
}

// askIndex re-prompts until the answer is blank or one of valid.
func (s *SchoolAssigner) askIndex(ctx context.Context, kind prompt.Kind, text string, valid []int) (int, bool, error) {
	for {
		answer, err := s.asker.Ask(ctx, prompt.Question{Kind: kind, Text: text})
		if err != nil {
			return 0, false, errors.Wrapf(err, "ask %s", kind)
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return 0, true, nil
		}
		if idx, err := strconv.Atoi(answer); err == nil {
			for _, v := range valid {
				if v == idx {
					return idx, false, nil
				}
			}
		}
		prompt.Notify(s.asker, "I need a valid integer from the list.")
	}
}

func (s *SchoolAssigner) listSchools(schools []resolvedSchool) {
	for i, rs := range schools {
		prompt.Notify(s.asker, "%d: %s, %s, Earned: %s, GPA: %s", i, rs.name, rs.school.DegreeLevel,
			formatBool(rs.school.Earned), formatFloat(rs.school.GPA))
	}
}

func formatBool(b *bool) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatBool(*b)
}

func formatFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Placement is a re-resolved institution for one school role.
type Placement struct {
	Name    string
	Country string
	Rank    int
}

type SchoolReportRow struct {
	FullName string
	UG       *Placement
	GR       *Placement
}

// Report re-resolves the matched slots of every applicant. Applicants without a match
// are listed in a MissingDataError after the rows that could be built.
func (s *SchoolAssigner) Report(ctx context.Context, applicants []applicant.Applicant) ([]SchoolReportRow, error) {
	var rows []SchoolReportRow
	var missing []string
	for _, a := range applicants {
		m, ok := s.ledger.Match(a.FullName())
		if !ok {
			missing = append(missing, a.FullName())
			continue
		}
		row := SchoolReportRow{FullName: a.FullName()}
		ug, err := s.place(ctx, a.School(m.UG))
		if err != nil {
			return nil, err
		}
		row.UG = ug
		if m.GR != nil {
			gr, err := s.place(ctx, a.School(*m.GR))
			if err != nil {
				return nil, err
			}
			row.GR = gr
		}
		rows = append(rows, row)
	}
	if len(missing) > 0 {
		return rows, &MissingDataError{Kind: "school matches", IDs: missing}
	}
	return rows, nil
}

func (s *SchoolAssigner) place(ctx context.Context, school applicant.School) (*Placement, error) {
	c := s.canonicalCountry(school.Country)
	res, err := s.resolver.Resolve(ctx, school.Name, c, school.City)
	if err != nil {
		return nil, err
	}
	if res.Kind == OutcomeSkip {
		return nil, nil
	}
	reg := s.resolver.Registry()
	inst, ok := reg.Lookup(res.Name, c)
	if !ok {
		inst, ok = reg.Lookup(res.Name, "")
	}
	if !ok {
		return nil, &IntegrityError{Subject: "resolved institution not registered", Items: []string{fmt.Sprintf("%s (%s)", res.Name, c)}}
	}
	return &Placement{Name: inst.Name(), Country: inst.Country(), Rank: inst.Rank()}, nil
}
