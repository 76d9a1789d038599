package applicant

import (
	"fmt"
	"strings"
)

// Slots is the number of schools an application form collects.
const Slots = 3

type School struct {
	Name        string
	Country     string
	City        string
	DegreeLevel string
	Earned      *bool
	GPA         *float64
	GPAScale    *float64
}

func (s School) Present() bool {
	return strings.TrimSpace(s.Name) != ""
}

type Applicant struct {
	FirstName string
	LastName  string
	Schools   [Slots]School
}

// FullName is the "Last, First" key shared by every per-applicant table.
func (a Applicant) FullName() string {
	return fmt.Sprintf("%s, %s", strings.TrimSpace(a.LastName), strings.TrimSpace(a.FirstName))
}

// School returns the record for a 1-based slot.
func (a Applicant) School(slot Slot) School {
	return a.Schools[slot.Index()]
}

// Slot is a 1-based school position on the application form.
type Slot int

func (s Slot) Valid() bool { return s >= 1 && s <= Slots }
func (s Slot) Index() int  { return int(s) - 1 }

func SlotFromIndex(i int) Slot { return Slot(i + 1) }

// SchoolMatch records which slots hold the undergraduate and graduate institutions.
// The institutions themselves are re-resolved from the slot names when read.
type SchoolMatch struct {
	FullName string
	UG       Slot
	GR       *Slot
}

func (m SchoolMatch) HasGraduate() bool { return m.GR != nil }
