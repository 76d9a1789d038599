package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admissions/modules/admissions/domain/applicant"
	"github.com/iota-uz/admissions/pkg/prompt"
	"github.com/iota-uz/admissions/pkg/similarity"
)

func stateRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Add(mustInstitution(t, "State U", "United States", 50)))
	require.NoError(t, r.Add(mustInstitution(t, "State U Grad School", "United States", 40)))
	require.NoError(t, r.Add(mustInstitution(t, "Tech Institute", "United States", 10)))
	r.MarkClean()
	return r
}

func newApplicant(schools ...applicant.School) applicant.Applicant {
	a := applicant.Applicant{FirstName: "Ada", LastName: "Lovelace"}
	copy(a.Schools[:], schools)
	return a
}

func newSchoolAssigner(reg *Registry, ledger *Ledger, script *prompt.Script, opts ResolverOptions) *SchoolAssigner {
	return NewSchoolAssigner(NewResolver(reg, script, opts), ledger, script, SchoolAssignerOptions{})
}

func slotPtr(s applicant.Slot) *applicant.Slot { return &s }

func TestAssign_CombinedCountsAsGraduate(t *testing.T) {
	t.Parallel()

	a := newApplicant(
		applicant.School{Name: "State U", Country: "USA", DegreeLevel: "Undergraduate"},
		applicant.School{Name: "State U Grad School", Country: "United States", DegreeLevel: "Graduate, Combined"},
	)
	script := prompt.Values()
	ledger := NewLedger()
	m, err := newSchoolAssigner(stateRegistry(t), ledger, script, ResolverOptions{}).Assign(context.Background(), &a)
	require.NoError(t, err)
	require.Equal(t, applicant.SchoolMatch{FullName: "Lovelace, Ada", UG: 1, GR: slotPtr(2)}, m)
	require.Empty(t, script.Asked())
	require.True(t, ledger.Dirty())

	stored, ok := ledger.Match("Lovelace, Ada")
	require.True(t, ok)
	require.Equal(t, m, stored)
}

func TestAssign_CombinedUndergradSlotIsGraduateCandidate(t *testing.T) {
	t.Parallel()

	a := newApplicant(
		applicant.School{Name: "Tech Institute", Country: "United States", DegreeLevel: "Bachelor"},
		applicant.School{Name: "State U", Country: "United States", DegreeLevel: "Undergraduate"},
		applicant.School{Name: "State U Grad School", Country: "United States", DegreeLevel: "Combined Undergraduate/Masters"},
	)
	script := prompt.NewScript(prompt.Answer{Kind: KindUndergrad, Value: "1"}, prompt.Answer{Kind: KindGraduate, Value: "2"})
	m, err := newSchoolAssigner(stateRegistry(t), NewLedger(), script, ResolverOptions{}).Assign(context.Background(), &a)
	require.NoError(t, err)
	require.Equal(t, applicant.Slot(2), m.UG)
	require.Equal(t, slotPtr(3), m.GR)
}

func TestAssign_SingleSchool(t *testing.T) {
	t.Parallel()

	a := newApplicant(
		applicant.School{},
		applicant.School{Name: "Tech Institute", Country: "United States", DegreeLevel: "Masters"},
	)
	m, err := newSchoolAssigner(stateRegistry(t), NewLedger(), prompt.Values(), ResolverOptions{}).Assign(context.Background(), &a)
	require.NoError(t, err)
	require.Equal(t, applicant.Slot(2), m.UG)
	require.Nil(t, m.GR)
}

func TestAssign_AmbiguousUndergradAsks(t *testing.T) {
	t.Parallel()

	a := newApplicant(
		applicant.School{Name: "State U", Country: "United States", DegreeLevel: "Undergraduate"},
		applicant.School{Name: "Tech Institute", Country: "United States", DegreeLevel: "Undergraduate"},
	)
	script := prompt.Values("5", "", "one", "1")
	m, err := newSchoolAssigner(stateRegistry(t), NewLedger(), script, ResolverOptions{}).Assign(context.Background(), &a)
	require.NoError(t, err)
	require.Equal(t, applicant.Slot(2), m.UG)
	require.Nil(t, m.GR)
	require.Zero(t, script.Remaining())
}

func TestAssign_GraduateSelection(t *testing.T) {
	t.Parallel()

	schools := []applicant.School{
		{Name: "State U", Country: "United States", DegreeLevel: "Undergraduate"},
		{Name: "State U Grad School", Country: "United States", DegreeLevel: "Masters"},
		{Name: "Tech Institute", Country: "United States", DegreeLevel: "PhD"},
	}

	t.Run("blank means none", func(t *testing.T) {
		t.Parallel()
		a := newApplicant(schools...)
		m, err := newSchoolAssigner(stateRegistry(t), NewLedger(), prompt.Values(""), ResolverOptions{}).Assign(context.Background(), &a)
		require.NoError(t, err)
		require.Equal(t, applicant.Slot(1), m.UG)
		require.Nil(t, m.GR)
	})

	t.Run("undergrad index is rejected", func(t *testing.T) {
		t.Parallel()
		a := newApplicant(schools...)
		script := prompt.Values("0", "2")
		m, err := newSchoolAssigner(stateRegistry(t), NewLedger(), script, ResolverOptions{}).Assign(context.Background(), &a)
		require.NoError(t, err)
		require.Equal(t, slotPtr(3), m.GR)
		require.Contains(t, script.Notes(), "I need a valid integer from the list.")
	})
}

func TestAssign_KeepsValidMatchAndRedoesStaleOne(t *testing.T) {
	t.Parallel()

	reg := stateRegistry(t)
	a := newApplicant(
		applicant.School{Name: "State U", Country: "United States", DegreeLevel: "Undergraduate"},
		applicant.School{Name: "Tech Institute", Country: "United States", DegreeLevel: "Masters"},
	)
	stored := applicant.SchoolMatch{FullName: a.FullName(), UG: 2}
	ledger := HydrateLedger([]applicant.SchoolMatch{stored}, nil)

	m, err := newSchoolAssigner(reg, ledger, prompt.Values(), ResolverOptions{}).Assign(context.Background(), &a)
	require.NoError(t, err)
	require.Equal(t, stored, m)
	require.False(t, ledger.Dirty())

	// A slot name that no longer resolves forces full resolution.
	stale := HydrateLedger([]applicant.SchoolMatch{{FullName: a.FullName(), UG: 1, GR: slotPtr(3)}}, nil)
	m, err = newSchoolAssigner(reg, stale, prompt.Values(), ResolverOptions{}).Assign(context.Background(), &a)
	require.NoError(t, err)
	require.Equal(t, applicant.SchoolMatch{FullName: a.FullName(), UG: 1, GR: slotPtr(2)}, m)
	require.True(t, stale.Dirty())
}

func TestAssign_RecordsRenameIntent(t *testing.T) {
	t.Parallel()

	reg := stateRegistry(t)
	a := newApplicant(applicant.School{Name: "Stat U", Country: "United States", DegreeLevel: "Undergraduate"})
	ledger := NewLedger()
	script := prompt.Values("r", "State U")
	opts := ResolverOptions{Scorer: fixedScorer{match: similarity.Match{Candidate: "State U Grad School", Score: 70}}}

	m, err := newSchoolAssigner(reg, ledger, script, opts).Assign(context.Background(), &a)
	require.NoError(t, err)
	require.Equal(t, applicant.Slot(1), m.UG)
	require.Equal(t, []applicant.RenameIntent{{
		FullName: "Lovelace, Ada",
		Field:    applicant.Field{Kind: applicant.FieldSchoolName, Slot: 1},
		Value:    "State U",
	}}, ledger.Renames())
	require.Equal(t, "State U", a.Schools[0].Name)

	fresh := newApplicant(applicant.School{Name: "Stat U"})
	require.NoError(t, ledger.ApplyRenames(&fresh))
	require.Equal(t, "State U", fresh.Schools[0].Name)
}

func TestAssignAll_ReportsUnresolved(t *testing.T) {
	t.Parallel()

	reg := stateRegistry(t)
	reg.AddIgnore("Junk", "United States")
	applicants := []applicant.Applicant{
		newApplicant(applicant.School{Name: "Junk", Country: "United States"}),
		{FirstName: "Grace", LastName: "Hopper", Schools: [3]applicant.School{{Name: "State U", Country: "United States"}}},
	}
	unresolved, err := newSchoolAssigner(reg, NewLedger(), prompt.Values(), ResolverOptions{}).AssignAll(context.Background(), applicants)
	require.NoError(t, err)
	require.Equal(t, []string{"Lovelace, Ada"}, unresolved)
}

func TestReport(t *testing.T) {
	t.Parallel()

	reg := stateRegistry(t)
	require.NoError(t, reg.AddAlias("SU", "State U"))
	a := newApplicant(
		applicant.School{Name: "SU", Country: "USA", DegreeLevel: "Undergraduate"},
		applicant.School{Name: "Tech Institute - After 2013", Country: "United States", DegreeLevel: "PhD"},
	)
	other := applicant.Applicant{FirstName: "Grace", LastName: "Hopper"}
	ledger := HydrateLedger([]applicant.SchoolMatch{{FullName: a.FullName(), UG: 1, GR: slotPtr(2)}}, nil)

	rows, err := newSchoolAssigner(reg, ledger, prompt.Values(), ResolverOptions{}).Report(context.Background(), []applicant.Applicant{a, other})
	require.ErrorIs(t, err, ErrMissingData)
	require.Equal(t, []SchoolReportRow{{
		FullName: "Lovelace, Ada",
		UG:       &Placement{Name: "State U", Country: "United States", Rank: 50},
		GR:       &Placement{Name: "Tech Institute", Country: "United States", Rank: 10},
	}}, rows)
}
