package institution

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

const (
	TopRank     = 1
	DefaultRank = 200
)

var validate = validator.New()

// Institution is a canonical, ranked school. (Name, Country) is unique within a registry.
type Institution struct {
	name    string
	country string
	rank    int
}

type fields struct {
	Name    string `validate:"required"`
	Country string `validate:"required"`
	Rank    int    `validate:"min=1,max=200"`
}

// New builds a validated institution; a zero rank means DefaultRank.
func New(name, country string, rank int) (Institution, error) {
	if rank == 0 {
		rank = DefaultRank
	}
	inst := Institution{
		name:    strings.TrimSpace(name),
		country: strings.TrimSpace(country),
		rank:    rank,
	}
	if err := inst.Validate(); err != nil {
		return Institution{}, err
	}
	return inst, nil
}

func (i Institution) Validate() error {
	err := validate.Struct(fields{Name: i.name, Country: i.country, Rank: i.rank})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.Errorf("institution %q: %s failed %s %s (got %v)", i.name, strings.ToLower(fe.Field()), fe.Tag(), fe.Param(), fe.Value())
	}
	return errors.Wrap(err, "validate institution")
}

func (i Institution) Name() string    { return i.name }
func (i Institution) Country() string { return i.country }
func (i Institution) Rank() int       { return i.rank }
func (i Institution) Key() Key        { return Key{Name: i.name, Country: i.country} }

// WithRank returns a copy with a new rank. Callers validate the result.
func (i Institution) WithRank(rank int) Institution {
	i.rank = rank
	return i
}

type Key struct {
	Name    string
	Country string
}

// Alias maps a variant spelling to a canonical name, independent of country.
type Alias struct {
	Alias     string
	Canonical string
}

// IgnoreEntry marks a raw (name, country) pair that resolution must skip.
type IgnoreEntry struct {
	Name    string
	Country string
}

func (e IgnoreEntry) Key() Key { return Key{Name: e.Name, Country: e.Country} }
