package persistence

import (
	"context"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/logging"
	"github.com/iota-uz/admissions/pkg/sheets"
)

const BackupSuffix = ".bck"

// Paths names the three persisted table files. Rankings holds the lookup sheet,
// Aliases holds the aliases and ignore sheets, Util holds the rename and schools sheets.
// Two of them may point at the same file.
type Paths struct {
	Rankings string
	Aliases  string
	Util     string
}

func (p Paths) all() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, path := range []string{p.Rankings, p.Aliases, p.Util} {
		if _, ok := seen[path]; ok || path == "" {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}

type Options struct {
	Backup bool
	Logger *logrus.Entry
}

func (o *Options) setDefaults(ctx context.Context) {
	if o.Logger == nil {
		o.Logger = logging.FromContext(ctx)
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
}

// Session owns the in-memory tables of one run. Every command ends it with exactly one
// of Close or Discard.
type Session struct {
	paths    Paths
	logger   *logrus.Entry
	registry *services.Registry
	ledger   *services.Ledger
	done     bool
}

// Open backs up every existing table file and loads the tables. Missing files start empty.
func Open(ctx context.Context, paths Paths, opts Options) (*Session, error) {
	opts.setDefaults(ctx)
	if paths.Rankings == "" || paths.Aliases == "" || paths.Util == "" {
		return nil, errors.New("table paths are required")
	}
	if opts.Backup {
		for _, path := range paths.all() {
			if err := backup(path, opts.Logger); err != nil {
				return nil, err
			}
		}
	}

	loaded := map[string][]sheets.Sheet{}
	for _, path := range paths.all() {
		s, err := sheets.Read(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
		loaded[path] = s
	}

	insts, err := ToDomainInstitutions(sheets.FindOrEmpty(loaded[paths.Rankings], SheetLookup, lookupHeader...))
	if err != nil {
		return nil, err
	}
	aliases, err := ToDomainAliases(sheets.FindOrEmpty(loaded[paths.Aliases], SheetAliases, aliasHeader...))
	if err != nil {
		return nil, err
	}
	ignores, err := ToDomainIgnores(sheets.FindOrEmpty(loaded[paths.Aliases], SheetIgnore, ignoreHeader...))
	if err != nil {
		return nil, err
	}
	renames, err := ToDomainRenames(sheets.FindOrEmpty(loaded[paths.Util], SheetRename, renameHeader...))
	if err != nil {
		return nil, err
	}
	matches, err := ToDomainSchoolMatches(sheets.FindOrEmpty(loaded[paths.Util], SheetSchools, schoolsHeader...))
	if err != nil {
		return nil, err
	}

	reg, err := services.Hydrate(insts, aliases, ignores)
	if err != nil {
		return nil, err
	}
	opts.Logger.WithFields(logrus.Fields{
		"institutions": len(insts),
		"aliases":      len(aliases),
		"ignored":      len(ignores),
		"renames":      len(renames),
		"matches":      len(matches),
	}).Debug("tables loaded")

	return &Session{
		paths:    paths,
		logger:   opts.Logger,
		registry: reg,
		ledger:   services.HydrateLedger(matches, renames),
	}, nil
}

func (s *Session) Registry() *services.Registry { return s.registry }
func (s *Session) Ledger() *services.Ledger     { return s.ledger }

// Close validates the registry and writes the dirty tables. A validation failure
// leaves every file untouched and ends the session.
func (s *Session) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.registry.Validate(); err != nil {
		s.logger.WithError(err).Error("validation failed, discarding changes")
		return err
	}

	pending := map[string][]sheets.Sheet{}
	var order []string
	stage := func(path string, sheet sheets.Sheet) {
		if _, ok := pending[path]; !ok {
			order = append(order, path)
		}
		pending[path] = append(pending[path], sheet)
	}
	if s.registry.RankingsDirty() {
		stage(s.paths.Rankings, ToSheetInstitutions(s.registry.Institutions()))
	}
	if s.registry.AliasesDirty() {
		stage(s.paths.Aliases, ToSheetAliases(s.registry.Aliases()))
		stage(s.paths.Aliases, ToSheetIgnores(s.registry.Ignores()))
	}
	if s.ledger.Dirty() {
		stage(s.paths.Util, ToSheetRenames(s.ledger.Renames()))
		stage(s.paths.Util, ToSheetSchoolMatches(s.ledger.Matches()))
	}

	for _, path := range order {
		if err := flush(path, pending[path]); err != nil {
			return err
		}
		s.logger.WithField("file", path).Info("table file written")
	}
	s.registry.MarkClean()
	s.ledger.MarkClean()
	return nil
}

// Discard drops every in-memory change.
func (s *Session) Discard() {
	if s.done {
		return
	}
	s.done = true
	if s.registry.RankingsDirty() || s.registry.AliasesDirty() || s.ledger.Dirty() {
		s.logger.Warn("discarding unsaved table changes")
	}
}

// Finish closes the session when *errp is nil and discards it otherwise.
// Use it as `defer sess.Finish(&err)`.
func (s *Session) Finish(errp *error) {
	if *errp != nil {
		s.Discard()
		return
	}
	*errp = s.Close()
}

// flush rewrites path with the given sheets, carrying over the sheets it already holds.
func flush(path string, updated []sheets.Sheet) error {
	existing, err := sheets.Read(path)
	if err != nil {
		return errors.Wrapf(err, "reload %s", path)
	}
	out := make([]sheets.Sheet, 0, len(existing)+len(updated))
	replaced := map[string]bool{}
	for _, u := range updated {
		replaced[u.Name] = true
	}
	for _, e := range existing {
		if !replaced[e.Name] {
			out = append(out, e)
		}
	}
	out = append(out, updated...)
	if err := sheets.Write(path, out...); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func backup(path string, logger *logrus.Entry) error {
	codec, err := sheets.ForPath(path)
	if err != nil {
		return err
	}
	files, err := codec.Files(path)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := copyFile(f, f+BackupSuffix); err != nil {
			return errors.Wrapf(err, "backup %s", f)
		}
		logger.WithField("file", f).Debug("backup written")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
