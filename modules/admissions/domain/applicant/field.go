package applicant

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

type FieldKind string

const (
	FieldSchoolName    FieldKind = "School_Name"
	FieldSchoolCountry FieldKind = "School_Country"
	FieldSchoolCity    FieldKind = "School_City"
	FieldDegreeLevel   FieldKind = "Degree_level_School"
	FieldEarnedDegree  FieldKind = "Earned_a_degree_School"
	FieldGPA           FieldKind = "GPA_School"
	FieldGPAScale      FieldKind = "GPA_Scale_School"
)

var fieldKinds = []FieldKind{
	FieldSchoolName, FieldSchoolCountry, FieldSchoolCity, FieldDegreeLevel,
	FieldEarnedDegree, FieldGPA, FieldGPAScale,
}

var ErrUnknownField = errors.New("unknown applicant field")

// Field addresses one per-slot value of an applicant record, e.g. School_Name_2.
type Field struct {
	Kind FieldKind
	Slot Slot
}

func (f Field) String() string {
	return string(f.Kind) + "_" + strconv.Itoa(int(f.Slot))
}

func ParseField(s string) (Field, error) {
	s = strings.TrimSpace(s)
	cut := strings.LastIndexByte(s, '_')
	if cut <= 0 {
		return Field{}, errors.Wrapf(ErrUnknownField, "%q", s)
	}
	n, err := strconv.Atoi(s[cut+1:])
	if err != nil || !Slot(n).Valid() {
		return Field{}, errors.Wrapf(ErrUnknownField, "%q: bad slot", s)
	}
	prefix := s[:cut]
	for _, k := range fieldKinds {
		if strings.EqualFold(prefix, string(k)) {
			return Field{Kind: k, Slot: Slot(n)}, nil
		}
	}
	return Field{}, errors.Wrapf(ErrUnknownField, "%q", s)
}

// RenameIntent is a correction applied to a raw applicant field every time the record loads.
type RenameIntent struct {
	FullName string
	Field    Field
	Value    string
}

// Apply overwrites the addressed field. Numeric and boolean fields must parse.
func (a *Applicant) Apply(r RenameIntent) error {
	if !r.Field.Slot.Valid() {
		return errors.Wrapf(ErrUnknownField, "%s", r.Field)
	}
	s := &a.Schools[r.Field.Slot.Index()]
	v := strings.TrimSpace(r.Value)
	switch r.Field.Kind {
	case FieldSchoolName:
		s.Name = v
	case FieldSchoolCountry:
		s.Country = v
	case FieldSchoolCity:
		s.City = v
	case FieldDegreeLevel:
		s.DegreeLevel = v
	case FieldEarnedDegree:
		b, err := ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s", r.Field)
		}
		s.Earned = b
	case FieldGPA, FieldGPAScale:
		f, err := ParseFloat(v)
		if err != nil {
			return errors.Wrapf(err, "%s", r.Field)
		}
		if r.Field.Kind == FieldGPA {
			s.GPA = f
		} else {
			s.GPAScale = f
		}
	default:
		return errors.Wrapf(ErrUnknownField, "%s", r.Field)
	}
	return nil
}

// ParseFloat returns nil for blank input.
func ParseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parse number %q", s)
	}
	return &f, nil
}

// ParseBool accepts yes/no in addition to strconv forms and returns nil for blank input.
func ParseBool(s string) (*bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var b bool
	switch strings.ToLower(s) {
	case "yes", "y":
		b = true
	case "no", "n":
		b = false
	default:
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parse flag %q", s)
		}
		b = parsed
	}
	return &b, nil
}
