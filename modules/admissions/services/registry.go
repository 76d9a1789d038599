package services

import (
	"fmt"
	"sort"

	"github.com/go-faster/errors"

	"github.com/iota-uz/admissions/modules/admissions/domain/institution"
)

var ErrDuplicateInstitution = errors.New("institution already registered")

// Registry is the canonical institution list with its alias and ignore tables.
// Institutions stay ordered by rank and aliases by canonical name, matching the
// order in which they are persisted.
type Registry struct {
	institutions []institution.Institution
	byKey        map[institution.Key]int
	byName       map[string]int // name -> number of countries registering it

	aliases    map[string]string
	aliasOrder []string
	added      map[string]struct{}

	ignores   []institution.IgnoreEntry
	ignoreSet map[institution.Key]struct{}

	rankingsDirty bool
	aliasesDirty  bool
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:     map[institution.Key]int{},
		byName:    map[string]int{},
		aliases:   map[string]string{},
		added:     map[string]struct{}{},
		ignoreSet: map[institution.Key]struct{}{},
	}
}

// Hydrate builds a registry from persisted rows without marking anything dirty.
// Duplicate institutions are an integrity error; duplicate aliases keep the last mapping.
func Hydrate(insts []institution.Institution, aliases []institution.Alias, ignores []institution.IgnoreEntry) (*Registry, error) {
	r := NewRegistry()
	var dups []string
	for _, inst := range insts {
		if _, ok := r.byKey[inst.Key()]; ok {
			dups = append(dups, fmt.Sprintf("%s (%s)", inst.Name(), inst.Country()))
			continue
		}
		r.byKey[inst.Key()] = len(r.institutions)
		r.byName[inst.Name()]++
		r.institutions = append(r.institutions, inst)
	}
	if len(dups) > 0 {
		return nil, &IntegrityError{Subject: "duplicate institutions", Items: dups}
	}
	sort.SliceStable(r.institutions, func(i, j int) bool {
		return r.institutions[i].Rank() < r.institutions[j].Rank()
	})
	r.reindex()

	for _, a := range aliases {
		r.putAlias(a.Alias, a.Canonical)
	}
	for _, e := range ignores {
		r.putIgnore(e)
	}
	return r, nil
}

// Add registers a new institution. Its (name, country) pair must be unused.
func (r *Registry) Add(inst institution.Institution) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	if _, ok := r.byKey[inst.Key()]; ok {
		return errors.Wrapf(ErrDuplicateInstitution, "%s (%s)", inst.Name(), inst.Country())
	}
	at := sort.Search(len(r.institutions), func(i int) bool {
		return r.institutions[i].Rank() > inst.Rank()
	})
	r.institutions = append(r.institutions, institution.Institution{})
	copy(r.institutions[at+1:], r.institutions[at:])
	r.institutions[at] = inst
	r.byName[inst.Name()]++
	r.reindex()
	r.rankingsDirty = true
	return nil
}

// Rerank changes the rank of an existing institution.
func (r *Registry) Rerank(name, country string, rank int) error {
	i, ok := r.byKey[institution.Key{Name: name, Country: country}]
	if !ok {
		return errors.Wrapf(ErrUnknownInstitution, "%s (%s)", name, country)
	}
	moved := r.institutions[i].WithRank(rank)
	if err := moved.Validate(); err != nil {
		return err
	}
	if moved.Rank() == r.institutions[i].Rank() {
		return nil
	}
	r.institutions = append(r.institutions[:i], r.institutions[i+1:]...)
	r.byName[name]--
	r.reindex()
	return r.Add(moved)
}

// AddAlias maps alias to an existing canonical name. A later mapping for the same alias
// replaces the earlier one. Aliasing a name to itself is a no-op.
func (r *Registry) AddAlias(alias, canonical string) error {
	if r.byName[canonical] == 0 {
		return errors.Wrapf(ErrUnknownInstitution, "alias %q -> %q", alias, canonical)
	}
	if alias == canonical || r.aliases[alias] == canonical {
		return nil
	}
	r.putAlias(alias, canonical)
	r.added[alias] = struct{}{}
	r.aliasesDirty = true
	return nil
}

// AddIgnore records a (name, country) pair to skip. Repeats are ignored.
func (r *Registry) AddIgnore(name, country string) {
	if r.putIgnore(institution.IgnoreEntry{Name: name, Country: country}) {
		r.aliasesDirty = true
	}
}

func (r *Registry) IsIgnored(name, country string) bool {
	_, ok := r.ignoreSet[institution.Key{Name: name, Country: country}]
	return ok
}

func (r *Registry) Find(name, country string) (institution.Institution, bool) {
	i, ok := r.byKey[institution.Key{Name: name, Country: country}]
	if !ok {
		return institution.Institution{}, false
	}
	return r.institutions[i], true
}

// HasName reports whether any country registers name.
func (r *Registry) HasName(name string) bool {
	return r.byName[name] > 0
}

// ResolveAlias follows one alias hop. Chains are never followed.
func (r *Registry) ResolveAlias(alias string) (string, bool) {
	c, ok := r.aliases[alias]
	return c, ok
}

// IsKnown reports whether name is a canonical name or an alias, in any country.
func (r *Registry) IsKnown(name string) bool {
	if r.HasName(name) {
		return true
	}
	_, ok := r.aliases[name]
	return ok
}

func (r *Registry) HasCountry(country string) bool {
	for _, inst := range r.institutions {
		if inst.Country() == country {
			return true
		}
	}
	return false
}

// NamesIn lists canonical names registered for country in rank order.
func (r *Registry) NamesIn(country string) []string {
	var names []string
	for _, inst := range r.institutions {
		if inst.Country() == country {
			names = append(names, inst.Name())
		}
	}
	return names
}

// Lookup finds the best-ranked institution for name after one alias hop. When country is
// not empty it must match.
func (r *Registry) Lookup(name, country string) (institution.Institution, bool) {
	if c, ok := r.aliases[name]; ok {
		name = c
	}
	if country != "" {
		return r.Find(name, country)
	}
	for _, inst := range r.institutions {
		if inst.Name() == name {
			return inst, true
		}
	}
	return institution.Institution{}, false
}

func (r *Registry) Institutions() []institution.Institution {
	return append([]institution.Institution(nil), r.institutions...)
}

// Aliases returns the alias table ordered by canonical name, then by registration order.
func (r *Registry) Aliases() []institution.Alias {
	out := make([]institution.Alias, 0, len(r.aliasOrder))
	for _, a := range r.aliasOrder {
		out = append(out, institution.Alias{Alias: a, Canonical: r.aliases[a]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Canonical < out[j].Canonical })
	return out
}

func (r *Registry) Ignores() []institution.IgnoreEntry {
	return append([]institution.IgnoreEntry(nil), r.ignores...)
}

func (r *Registry) RankingsDirty() bool { return r.rankingsDirty }
func (r *Registry) AliasesDirty() bool  { return r.aliasesDirty }

func (r *Registry) MarkClean() {
	r.rankingsDirty = false
	r.aliasesDirty = false
}

// Validate checks the invariants that this session could have broken: aliases registered
// during the session must point at a registered institution.
func (r *Registry) Validate() error {
	var bad []string
	for _, a := range r.aliasOrder {
		if _, ok := r.added[a]; !ok {
			continue
		}
		if c := r.aliases[a]; !r.HasName(c) {
			bad = append(bad, fmt.Sprintf("%s -> %s", a, c))
		}
	}
	if len(bad) > 0 {
		return &IntegrityError{Subject: "aliases reference unknown institutions", Items: bad}
	}
	return nil
}

// Audit reports every inconsistency in the tables, including ones loaded from disk.
func (r *Registry) Audit() []string {
	var findings []string
	for _, a := range r.Aliases() {
		if !r.HasName(a.Canonical) {
			findings = append(findings, fmt.Sprintf("alias %q points at unknown institution %q", a.Alias, a.Canonical))
		}
		if r.HasName(a.Alias) && a.Alias != a.Canonical {
			findings = append(findings, fmt.Sprintf("alias %q shadows a canonical name", a.Alias))
		}
	}
	for _, e := range r.ignores {
		if _, ok := r.byKey[e.Key()]; ok {
			findings = append(findings, fmt.Sprintf("ignored name %q (%s) is also registered", e.Name, e.Country))
		}
	}
	return findings
}

func (r *Registry) putAlias(alias, canonical string) {
	if _, ok := r.aliases[alias]; ok {
		for i, a := range r.aliasOrder {
			if a == alias {
				r.aliasOrder = append(r.aliasOrder[:i], r.aliasOrder[i+1:]...)
				break
			}
		}
	}
	r.aliases[alias] = canonical
	r.aliasOrder = append(r.aliasOrder, alias)
}

func (r *Registry) putIgnore(e institution.IgnoreEntry) bool {
	if _, ok := r.ignoreSet[e.Key()]; ok {
		return false
	}
	r.ignoreSet[e.Key()] = struct{}{}
	r.ignores = append(r.ignores, e)
	return true
}

func (r *Registry) reindex() {
	clear(r.byKey)
	for i, inst := range r.institutions {
		r.byKey[inst.Key()] = i
	}
}
