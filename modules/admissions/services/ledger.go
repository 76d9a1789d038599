package services

import (
	"sort"

	"github.com/iota-uz/admissions/modules/admissions/domain/applicant"
)

// Ledger holds the per-applicant tables: school matches and rename intents.
type Ledger struct {
	matches map[string]applicant.SchoolMatch
	renames []applicant.RenameIntent
	dirty   bool
}

func NewLedger() *Ledger {
	return &Ledger{matches: map[string]applicant.SchoolMatch{}}
}

// HydrateLedger loads persisted rows. A later match for the same applicant wins.
func HydrateLedger(matches []applicant.SchoolMatch, renames []applicant.RenameIntent) *Ledger {
	l := NewLedger()
	for _, m := range matches {
		l.matches[m.FullName] = m
	}
	l.renames = append(l.renames, renames...)
	return l
}

func (l *Ledger) Match(fullName string) (applicant.SchoolMatch, bool) {
	m, ok := l.matches[fullName]
	return m, ok
}

func (l *Ledger) PutMatch(m applicant.SchoolMatch) {
	l.matches[m.FullName] = m
	l.dirty = true
}

func (l *Ledger) DropMatch(fullName string) {
	if _, ok := l.matches[fullName]; !ok {
		return
	}
	delete(l.matches, fullName)
	l.dirty = true
}

// Matches returns all school matches ordered by applicant name.
func (l *Ledger) Matches() []applicant.SchoolMatch {
	out := make([]applicant.SchoolMatch, 0, len(l.matches))
	for _, m := range l.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

func (l *Ledger) AddRename(r applicant.RenameIntent) {
	l.renames = append(l.renames, r)
	l.dirty = true
}

// Renames returns rename intents in the order they were recorded.
func (l *Ledger) Renames() []applicant.RenameIntent {
	return append([]applicant.RenameIntent(nil), l.renames...)
}

// ApplyRenames replays every recorded intent for a onto it, oldest first.
func (l *Ledger) ApplyRenames(a *applicant.Applicant) error {
	name := a.FullName()
	for _, r := range l.renames {
		if r.FullName != name {
			continue
		}
		if err := a.Apply(r); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) Dirty() bool { return l.dirty }
func (l *Ledger) MarkClean()  { l.dirty = false }
