package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/modules/admissions/domain/institution"
	"github.com/iota-uz/admissions/pkg/metrics"
	"github.com/iota-uz/admissions/pkg/prompt"
	"github.com/iota-uz/admissions/pkg/similarity"
)

const (
	KindNewCountry   prompt.Kind = "new_country"
	KindFuzzy        prompt.Kind = "fuzzy"
	KindOfficialName prompt.Kind = "official_name"
	KindRank         prompt.Kind = "rank"
)

type OutcomeKind int

const (
	OutcomeSkip OutcomeKind = iota
	OutcomeCanonical
	// OutcomeRename asks the caller to persist a correction of the raw source field.
	OutcomeRename
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkip:
		return "skip"
	case OutcomeCanonical:
		return "canonical"
	case OutcomeRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Source names the resolution step that produced an outcome.
type Source string

const (
	SourceIgnored       Source = "ignored"
	SourceExact         Source = "exact"
	SourceAlias         Source = "alias"
	SourceNewCountry    Source = "new_country"
	SourceAutoAccepted  Source = "auto_accepted"
	SourceAccepted      Source = "accepted"
	SourceOperatorAlias Source = "operator_alias"
	SourceNew           Source = "new"
	SourceRename        Source = "rename"
	SourceSkipped       Source = "skipped"
)

type Outcome struct {
	Kind   OutcomeKind
	Name   string
	Source Source
	// Score is the fuzzy score of the suggestion, when one was computed.
	Score int
}

type Scorer interface {
	BestMatch(query string, candidates []string) (similarity.Match, bool)
}

type ResolverOptions struct {
	// AutoAcceptScore is the fuzzy score at or above which a suggestion is aliased
	// without asking. Scores of 100 only occur for case and punctuation-insensitive equality.
	AutoAcceptScore int
	DefaultRank     int

	Scorer  Scorer
	Logger  *logrus.Entry
	Metrics *metrics.Recorder
}

func (o *ResolverOptions) setDefaults() {
	if o.AutoAcceptScore == 0 {
		o.AutoAcceptScore = 100
	}
	if o.DefaultRank == 0 {
		o.DefaultRank = institution.DefaultRank
	}
	if o.Scorer == nil {
		o.Scorer = similarity.Scorer{}
	}
}

// Resolver maps raw institution names onto the registry, asking the operator when
// it cannot decide. Every registry mutation happens at the moment of a decision.
type Resolver struct {
	registry *Registry
	asker    prompt.Asker
	opts     ResolverOptions
}

func NewResolver(registry *Registry, asker prompt.Asker, opts ResolverOptions) *Resolver {
	opts.setDefaults()
	return &Resolver{registry: registry, asker: asker, opts: opts}
}

func (r *Resolver) Registry() *Registry { return r.registry }

// Resolve returns the canonical name for raw in country. Country must already be
// canonicalized. City only decorates prompts.
func (r *Resolver) Resolve(ctx context.Context, raw, country, city string) (Outcome, error) {
	name := institution.StripVariant(raw)
	if name == "" {
		return Outcome{}, errors.New("empty institution name")
	}
	out, err := r.resolve(ctx, name, country, city)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "resolve %q (%s)", name, country)
	}
	r.opts.Metrics.Resolution(string(out.Source))
	logWithFields(ctx, r.opts.Logger, logrus.DebugLevel, "institution resolved", logrus.Fields{
		"raw_name":  raw,
		"country":   country,
		"canonical": out.Name,
		"outcome":   out.Kind.String(),
		"source":    string(out.Source),
		"score":     out.Score,
	})
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, name, country, city string) (Outcome, error) {
	reg := r.registry
	if reg.IsIgnored(name, country) {
		return Outcome{Kind: OutcomeSkip, Source: SourceIgnored}, nil
	}
	if _, ok := reg.Find(name, country); ok {
		return Outcome{Kind: OutcomeCanonical, Name: name, Source: SourceExact}, nil
	}
	if canonical, ok := reg.ResolveAlias(name); ok {
		return Outcome{Kind: OutcomeCanonical, Name: canonical, Source: SourceAlias}, nil
	}
	if !reg.HasCountry(country) {
		return r.resolveNewCountry(ctx, name, country)
	}

	match, ok := r.opts.Scorer.BestMatch(name, reg.NamesIn(country))
	if !ok {
		return Outcome{}, errors.Errorf("no candidates in %s", country)
	}
	if match.Score >= r.opts.AutoAcceptScore {
		if err := reg.AddAlias(name, match.Candidate); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeCanonical, Name: match.Candidate, Source: SourceAutoAccepted, Score: match.Score}, nil
	}
	return r.askFuzzy(ctx, name, country, city, match)
}

func (r *Resolver) resolveNewCountry(ctx context.Context, name, country string) (Outcome, error) {
	text := fmt.Sprintf("%s: I don't know any schools in %s. [new]/[s]kip ", name, country)
	for {
		answer, err := r.ask(ctx, KindNewCountry, text, "")
		if err != nil {
			return Outcome{}, err
		}
		switch strings.ToLower(answer) {
		case "", "n":
			official, err := r.registerNew(ctx, name, country)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Kind: OutcomeCanonical, Name: official, Source: SourceNewCountry}, nil
		case "s":
			r.registry.AddIgnore(name, country)
			return Outcome{Kind: OutcomeSkip, Source: SourceSkipped}, nil
		default:
			prompt.Notify(r.asker, "Answer with enter for a new school or s to skip.")
		}
	}
}

func (r *Resolver) askFuzzy(ctx context.Context, name, country, city string, match similarity.Match) (Outcome, error) {
	where := country
	if city != "" {
		where = city + ", " + country
	}
	text := fmt.Sprintf("I think %s in %s is %s. [accept]/enter alias/[r]ename/[n]ew/[s]kip ", name, where, match.Candidate)
	reg := r.registry

	for {
		answer, err := r.ask(ctx, KindFuzzy, text, match.Candidate)
		if err != nil {
			return Outcome{}, err
		}
		switch answer {
		case "":
			if err := reg.AddAlias(name, match.Candidate); err != nil {
				return Outcome{}, err
			}
			return Outcome{Kind: OutcomeCanonical, Name: match.Candidate, Source: SourceAccepted, Score: match.Score}, nil
		case "r":
			official, err := r.askRequired(ctx, KindOfficialName, "Official Name: ")
			if err != nil {
				return Outcome{}, err
			}
			if !reg.HasName(official) {
				prompt.Notify(r.asker, "This is a new school.")
				if err := r.addWithRank(ctx, official, country); err != nil {
					return Outcome{}, err
				}
			}
			return Outcome{Kind: OutcomeRename, Name: official, Source: SourceRename, Score: match.Score}, nil
		case "n":
			official, err := r.registerNew(ctx, name, country)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Kind: OutcomeCanonical, Name: official, Source: SourceNew, Score: match.Score}, nil
		case "s":
			reg.AddIgnore(name, country)
			return Outcome{Kind: OutcomeSkip, Source: SourceSkipped, Score: match.Score}, nil
		default:
			if !reg.HasName(answer) {
				prompt.Notify(r.asker, "I don't know the school you just entered. Trying again.")
				continue
			}
			if err := reg.AddAlias(name, answer); err != nil {
				return Outcome{}, err
			}
			return Outcome{Kind: OutcomeCanonical, Name: answer, Source: SourceOperatorAlias, Score: match.Score}, nil
		}
	}
}

// registerNew asks for the official name and rank of an unseen institution, registers it
// and aliases the raw spelling to it so the next lookup is silent.
func (r *Resolver) registerNew(ctx context.Context, name, country string) (string, error) {
	official, err := r.ask(ctx, KindOfficialName, fmt.Sprintf("Official Name: [%s] ", name), name)
	if err != nil {
		return "", err
	}
	if official == "" {
		official = name
	}
	if _, exists := r.registry.Find(official, country); !exists {
		if err := r.addWithRank(ctx, official, country); err != nil {
			return "", err
		}
	}
	if err := r.registry.AddAlias(name, official); err != nil {
		return "", err
	}
	return official, nil
}

func (r *Resolver) addWithRank(ctx context.Context, name, country string) error {
	rank, err := r.askRank(ctx)
	if err != nil {
		return err
	}
	inst, err := institution.New(name, country, rank)
	if err != nil {
		return err
	}
	if err := r.registry.Add(inst); err != nil {
		return err
	}
	logWithFields(ctx, r.opts.Logger, logrus.InfoLevel, "institution registered", logrus.Fields{
		"canonical": name,
		"country":   country,
		"rank":      rank,
	})
	return nil
}

func (r *Resolver) askRank(ctx context.Context) (int, error) {
	def := strconv.Itoa(r.opts.DefaultRank)
	for {
		answer, err := r.ask(ctx, KindRank, fmt.Sprintf("Rank: [%s] ", def), def)
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return r.opts.DefaultRank, nil
		}
		rank, err := strconv.Atoi(answer)
		if err == nil && rank >= institution.TopRank && rank <= institution.DefaultRank {
			return rank, nil
		}
		prompt.Notify(r.asker, "Rank must be a whole number from %d to %d.", institution.TopRank, institution.DefaultRank)
	}
}

func (r *Resolver) askRequired(ctx context.Context, kind prompt.Kind, text string) (string, error) {
	for {
		answer, err := r.ask(ctx, kind, text, "")
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
	}
}

func (r *Resolver) ask(ctx context.Context, kind prompt.Kind, text, def string) (string, error) {
	r.opts.Metrics.Prompt(string(kind))
	answer, err := r.asker.Ask(ctx, prompt.Question{Kind: kind, Text: text, Default: def})
	if err != nil {
		return "", errors.Wrapf(err, "ask %s", kind)
	}
	return strings.TrimSpace(answer), nil
}
