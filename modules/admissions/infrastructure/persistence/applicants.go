package persistence

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/modules/admissions/domain/applicant"
	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/logging"
	"github.com/iota-uz/admissions/pkg/sheets"
)

const (
	columnFirstName = "First_Name"
	columnLastName  = "Last_Name"
	columnDecision  = "Field_Admission_Decision"

	// decisionAdmitted marks rows that were already decided in an earlier cycle.
	decisionAdmitted = "ADMT"
)

var headerReplacer = strings.NewReplacer(" ", "_", "?", "", "(", "", ")", "", `"`, "")

type ApplicantOptions struct {
	// Sheet selects the sheet to read; empty means the first one.
	Sheet string
	// SubHeaderRows is the number of rows between the header and the data, as survey
	// exports carry the question text and import ids there.
	SubHeaderRows int
	Logger        *logrus.Entry
}

// NormalizeHeader maps survey column titles onto field names: "School Name 1" -> "School_Name_1".
func NormalizeHeader(h string) string {
	return headerReplacer.Replace(strings.TrimSpace(h))
}

// LoadApplicants reads applicant rows and applies the ledger's rename intents.
func LoadApplicants(path string, ledger *services.Ledger, opts ApplicantOptions) ([]applicant.Applicant, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	all, err := readExisting(path, "applicant file")
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, &services.MissingDataError{Kind: "applicant file", IDs: []string{path}}
	}
	sheet := all[0]
	if opts.Sheet != "" {
		if sheet, err = sheets.Find(all, opts.Sheet); err != nil {
			return nil, err
		}
	}
	for i := range sheet.Header {
		sheet.Header[i] = NormalizeHeader(sheet.Header[i])
	}
	rows := sheet.Rows
	if opts.SubHeaderRows > 0 {
		rows = rows[min(opts.SubHeaderRows, len(rows)):]
	}

	names, err := sheet.Require(columnFirstName, columnLastName)
	if err != nil {
		return nil, err
	}
	idx := sheet.Index()
	decision, hasDecision := idx[columnDecision]

	out := make([]applicant.Applicant, 0, len(rows))
	for _, row := range rows {
		if hasDecision && strings.TrimSpace(sheets.Cell(row, decision)) == decisionAdmitted {
			continue
		}
		a := applicant.Applicant{
			FirstName: strings.TrimSpace(sheets.Cell(row, names[0])),
			LastName:  strings.TrimSpace(sheets.Cell(row, names[1])),
		}
		for _, field := range applicantFields() {
			col, ok := idx[field.String()]
			if !ok {
				continue
			}
			v := sheets.Cell(row, col)
			if err := a.Apply(applicant.RenameIntent{FullName: a.FullName(), Field: field, Value: v}); err != nil {
				opts.Logger.WithFields(logrus.Fields{
					"applicant": a.FullName(),
					"field":     field.String(),
					"value":     v,
				}).Warn("unreadable applicant value left blank")
			}
		}
		if ledger != nil {
			if err := ledger.ApplyRenames(&a); err != nil {
				return nil, errors.Wrapf(err, "apply renames to %s", a.FullName())
			}
		}
		out = append(out, a)
	}
	opts.Logger.WithField("applicants", len(out)).Debug("applicants loaded")
	return out, nil
}

func applicantFields() []applicant.Field {
	kinds := []applicant.FieldKind{
		applicant.FieldSchoolName, applicant.FieldSchoolCountry, applicant.FieldSchoolCity,
		applicant.FieldDegreeLevel, applicant.FieldEarnedDegree, applicant.FieldGPA, applicant.FieldGPAScale,
	}
	out := make([]applicant.Field, 0, len(kinds)*applicant.Slots)
	for slot := applicant.Slot(1); slot.Valid(); slot++ {
		for _, k := range kinds {
			out = append(out, applicant.Field{Kind: k, Slot: slot})
		}
	}
	return out
}
