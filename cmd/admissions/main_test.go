package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"

	"github.com/iota-uz/admissions/modules/admissions/infrastructure/persistence"
	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/prompt"
	"github.com/iota-uz/admissions/pkg/sheets"
)

type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "admissions.toml")
	body := fmt.Sprintf(`ADMISSIONS_RANK_FILE = %q
ADMISSIONS_ALIAS_FILE = %q
ADMISSIONS_UTIL_FILE = %q
ADMISSIONS_BACKUP = false
ADMISSIONS_METRICS_FILE = %q
LOG_LEVEL = "silent"
`, filepath.Join(dir, "rankings.csv"), filepath.Join(dir, "aliases.csv"), filepath.Join(dir, "util.csv"),
		filepath.Join(dir, "admissions.prom"))
	if err := os.WriteFile(config, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return workspace{dir: dir, config: config}
}

func (w workspace) path(name string) string { return filepath.Join(w.dir, name) }

func (w workspace) run(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()
	out, err := w.runErr(t, stdin, args...)
	return exitCode(err), out
}

func (w workspace) runErr(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{stdin: strings.NewReader(stdin), stdout: &out, stderr: &errOut}
	err := a.execute(append([]string{"--config", w.config}, args...))
	return out.String(), err
}

func (w workspace) configure(t *testing.T, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(w.config, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := fmt.Fprintln(f, l); err != nil {
			t.Fatalf("append config: %v", err)
		}
	}
}

func (w workspace) write(t *testing.T, name string, s ...sheets.Sheet) string {
	t.Helper()
	path := w.path(name)
	if err := sheets.Write(path, s...); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{withCode(exitStorage, errors.New("disk")), exitStorage},
		{errors.Wrap(&services.IntegrityError{Subject: "x"}, "close"), exitValidation},
		{&services.MissingDataError{Kind: "roster"}, exitMissingData},
		{errors.Wrap(services.ErrInfeasible, "n too large"), exitValidation},
		{errors.Wrap(prompt.ErrNoInput, "ask rank"), exitUsage},
		{errors.New("boom"), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestResolveRegistersAndRemembers(t *testing.T) {
	w := newWorkspace(t)

	code, out := w.run(t, "\n\n12\n", "resolve", "Kyoto University", "--country", "Japan")
	if code != exitOK {
		t.Fatalf("first resolve exit %d, output %q", code, out)
	}
	if !strings.Contains(out, "canonical\tKyoto University\tnew_country") {
		t.Fatalf("unexpected output: %q", out)
	}

	code, out = w.run(t, "", "resolve", "Kyoto University", "--country", "Japan")
	if code != exitOK {
		t.Fatalf("second resolve exit %d, output %q", code, out)
	}
	if !strings.Contains(out, "canonical\tKyoto University\texact") {
		t.Fatalf("unexpected output: %q", out)
	}

	rows, err := persistence.LoadRankingList(w.path("rankings.csv"))
	if err != nil {
		t.Fatalf("load rankings: %v", err)
	}
	if len(rows) != 1 || rows[0].Rank != 12 {
		t.Fatalf("unexpected rankings: %+v", rows)
	}
	if _, err := os.Stat(w.path("admissions.prom")); err != nil {
		t.Fatalf("metrics file: %v", err)
	}
}

func TestResolveWithoutAnswersDiscards(t *testing.T) {
	w := newWorkspace(t)

	code, _ := w.run(t, "", "resolve", "Kyoto University", "--country", "Japan")
	if code != exitUsage {
		t.Fatalf("exit %d, want %d", code, exitUsage)
	}
	if _, err := os.Stat(w.path("rankings.lookup.csv")); !os.IsNotExist(err) {
		t.Fatalf("rankings written after a failed run: %v", err)
	}
}

func TestResolveWithScriptedDecisions(t *testing.T) {
	w := newWorkspace(t)
	script := w.path("decisions.yaml")
	if err := os.WriteFile(script, []byte("answers:\n  - kind: new_country\n    value: s\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	code, out := w.run(t, "", "--decisions", script, "resolve", "Online Academy", "--country", "Peru")
	if code != exitOK || !strings.Contains(out, "skip\tskipped") {
		t.Fatalf("exit %d, output %q", code, out)
	}
	code, out = w.run(t, "", "resolve", "Online Academy", "--country", "Peru")
	if code != exitOK || !strings.Contains(out, "skip\tignored") {
		t.Fatalf("exit %d, output %q", code, out)
	}
}

func TestUsageErrors(t *testing.T) {
	w := newWorkspace(t)

	for _, args := range [][]string{
		{"resolve"},
		{"resolve", "MIT"},
		{"assign", "--roster", "x.xlsx"},
		{"assign", "--bogus"},
		{"schools"},
	} {
		if code, _ := w.run(t, "", args...); code != exitUsage {
			t.Fatalf("%v: exit %d, want %d", args, code, exitUsage)
		}
	}
}

func rosterSheets(readers, candidates []string) []sheets.Sheet {
	r := sheets.Sheet{Name: persistence.SheetReaders, Header: []string{"Reader Names"}}
	for _, x := range readers {
		r.Rows = append(r.Rows, []string{x})
	}
	c := sheets.Sheet{Name: persistence.SheetCandidates, Header: []string{"Candidate Names"}}
	for _, x := range candidates {
		c.Rows = append(c.Rows, []string{x})
	}
	return []sheets.Sheet{r, c}
}

func readAssignment(t *testing.T, path string) services.Assignment {
	t.Helper()
	all, err := sheets.Read(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	s, err := sheets.Find(all, persistence.SheetAssignments)
	if err != nil {
		t.Fatalf("find assignments: %v", err)
	}
	return persistence.ToDomainAssignment(s)
}

func TestAssignRandomized(t *testing.T) {
	w := newWorkspace(t)
	readers := []string{"Ann", "Ben", "Cid", "Dot"}
	candidates := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10"}
	roster := w.write(t, "roster.xlsx", rosterSheets(readers, candidates)...)
	out := w.path("assignments.xlsx")

	code, stdout := w.run(t, "", "assign", "--roster", roster, "--out", out, "-n", "2", "--seed", "7", "--strategy", "rotate")
	if code != exitOK {
		t.Fatalf("exit %d, output %q", code, stdout)
	}
	asg := readAssignment(t, out)
	if err := services.ValidateAssignment(asg, readers, candidates, 2); err != nil {
		t.Fatalf("invalid assignment: %v", err)
	}
}

func TestAssignInfeasible(t *testing.T) {
	w := newWorkspace(t)
	roster := w.write(t, "roster.xlsx", rosterSheets([]string{"Ann"}, []string{"c1"})...)

	code, _ := w.run(t, "", "assign", "--roster", roster, "--out", w.path("out.xlsx"), "-n", "2")
	if code != exitValidation {
		t.Fatalf("exit %d, want %d", code, exitValidation)
	}
}

func TestAssignDrawFailureSuggestsRotate(t *testing.T) {
	w := newWorkspace(t)
	w.configure(t, "ADMISSIONS_MAX_DRAW_ATTEMPTS = 1", "ADMISSIONS_MAX_RESTARTS = 1")
	candidates := make([]string, 20)
	for i := range candidates {
		candidates[i] = fmt.Sprintf("c%d", i)
	}
	roster := w.write(t, "roster.xlsx", rosterSheets([]string{"A", "B"}, candidates)...)
	out := w.path("out.xlsx")

	_, err := w.runErr(t, "", "assign", "--roster", roster, "--out", out, "-n", "2", "--seed", "3")
	if !errors.Is(err, services.ErrDrawFailed) {
		t.Fatalf("want a draw failure, got %v", err)
	}
	if code := exitCode(err); code != exitValidation {
		t.Fatalf("exit %d, want %d", code, exitValidation)
	}
	if !strings.Contains(err.Error(), "--strategy rotate") {
		t.Fatalf("error does not point at rotate: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("assignment written after a failed draw: %v", err)
	}

	code, stdout := w.run(t, "", "assign", "--roster", roster, "--out", out, "-n", "2", "--seed", "3", "--strategy", "rotate")
	if code != exitOK {
		t.Fatalf("rotate exit %d, output %q", code, stdout)
	}
}

func TestAssignOptimized(t *testing.T) {
	w := newWorkspace(t)
	rewards := w.write(t, "rewards.xlsx", sheets.Sheet{
		Name:   persistence.SheetRewards,
		Header: []string{"Candidate", "Ann", "Ben"},
		Rows:   [][]string{{"c1", "5", "1"}, {"c2", "1", "5"}},
	})
	out := w.path("assignments.xlsx")

	code, stdout := w.run(t, "", "assign", "--rewards", rewards, "--out", out, "-n", "1")
	if code != exitOK {
		t.Fatalf("exit %d, output %q", code, stdout)
	}
	if !strings.Contains(stdout, "total reward 10") {
		t.Fatalf("unexpected output: %q", stdout)
	}
	asg := readAssignment(t, out)
	if len(asg["Ann"]) != 1 || asg["Ann"][0] != "c1" || len(asg["Ben"]) != 1 || asg["Ben"][0] != "c2" {
		t.Fatalf("unexpected assignment: %v", asg)
	}
}

func TestAssignOptimizedMissingRosterPerson(t *testing.T) {
	w := newWorkspace(t)
	rewards := w.write(t, "rewards.xlsx", sheets.Sheet{
		Name:   persistence.SheetRewards,
		Header: []string{"Candidate", "Ann"},
		Rows:   [][]string{{"c1", "5"}},
	})
	roster := w.write(t, "roster.xlsx", rosterSheets([]string{"Ann", "Ben"}, []string{"c1"})...)

	code, _ := w.run(t, "", "assign", "--roster", roster, "--rewards", rewards, "--out", w.path("o.xlsx"), "-n", "1")
	if code != exitMissingData {
		t.Fatalf("exit %d, want %d", code, exitMissingData)
	}
}

func TestRegistryImportSearchValidate(t *testing.T) {
	w := newWorkspace(t)
	list := w.write(t, "top.xlsx", sheets.Sheet{
		Name:   "lookup",
		Header: []string{"Name", "Rank", "Country"},
		Rows: [][]string{
			{"Kyoto University", "30", "Japan"},
			{"Massachusetts Institute of Technology", "1", "USA"},
		},
	})

	code, out := w.run(t, "", "registry", "import", "--file", list)
	if code != exitOK || !strings.Contains(out, "added 2") {
		t.Fatalf("import exit %d, output %q", code, out)
	}

	code, out = w.run(t, "", "registry", "search", "kyoto")
	if code != exitOK || !strings.HasPrefix(out, "Kyoto University\tJapan\t30") {
		t.Fatalf("search exit %d, output %q", code, out)
	}

	code, out = w.run(t, "", "registry", "validate")
	if code != exitOK || !strings.Contains(out, "consistent") {
		t.Fatalf("validate exit %d, output %q", code, out)
	}
}

func TestRegistryValidateReportsDanglingAlias(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "aliases.csv", sheets.Sheet{
		Name:   persistence.SheetAliases,
		Header: []string{"Alias", "Standard Name"},
		Rows:   [][]string{{"Tokyo U", "University of Tokyo"}},
	})

	code, out := w.run(t, "", "registry", "validate")
	if code != exitValidation {
		t.Fatalf("exit %d, want %d", code, exitValidation)
	}
	if !strings.Contains(out, "University of Tokyo") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRegistryImportGradesFromFile(t *testing.T) {
	w := newWorkspace(t)
	page := w.path("grades.html")
	html := `<table><tbody>
<tr><td class="views-field views-field-title"><a href="#">Kyoto University</a></td>
<td class="views-field views-field-field-country">Japan</td>
<td class="views-field views-field-field-intl-gpa">4.0</td>
<td class="views-field views-field-field-us-gpa">4.0</td></tr>
<tr><td class="views-field views-field-title"><a href="#">DEFAULT Japan</a></td>
<td class="views-field views-field-field-country">Japan</td>
<td class="views-field views-field-field-intl-gpa">4.0</td>
<td class="views-field views-field-field-us-gpa">4.0</td></tr>
</tbody></table>`
	if err := os.WriteFile(page, []byte(html), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}

	code, out := w.run(t, "", "registry", "import-grades", "--file", page)
	if code != exitOK || !strings.Contains(out, "added 1") {
		t.Fatalf("exit %d, output %q", code, out)
	}
}

func TestSchools(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "rankings.csv", sheets.Sheet{
		Name:   persistence.SheetLookup,
		Header: []string{"Name", "Rank", "Country"},
		Rows: [][]string{
			{"Kyoto University", "30", "Japan"},
			{"Massachusetts Institute of Technology", "1", "United States"},
		},
	})
	applicants := w.write(t, "applicants.xlsx", sheets.Sheet{
		Name: "export",
		Header: []string{
			"First Name", "Last Name",
			"School Name 1", "School Country 1", "Degree level School 1",
			"School Name 2", "School Country 2", "Degree level School 2",
		},
		Rows: [][]string{
			{"First", "Last", "q", "q", "q", "q", "q", "q"},
			{"Jane", "Doe", "Kyoto University", "Japan", "undergraduate", "Massachusetts Institute of Technology", "United States", "masters"},
		},
	})
	report := w.path("report.xlsx")

	code, out := w.run(t, "", "schools", "--applicants", applicants, "--report", report)
	if code != exitOK {
		t.Fatalf("exit %d, output %q", code, out)
	}
	all, err := sheets.Read(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s, err := sheets.Find(all, persistence.SheetReport)
	if err != nil || len(s.Rows) != 1 {
		t.Fatalf("report sheet: %v %+v", err, s)
	}
	want := []string{"Doe, Jane", "Kyoto University", "Japan", "30", "Massachusetts Institute of Technology", "United States", "1"}
	for i, v := range want {
		if s.Rows[0][i] != v {
			t.Fatalf("report column %d = %q, want %q", i, s.Rows[0][i], v)
		}
	}
}
