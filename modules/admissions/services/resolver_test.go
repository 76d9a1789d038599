package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admissions/pkg/prompt"
	"github.com/iota-uz/admissions/pkg/similarity"
)

type fixedScorer struct {
	match similarity.Match
}

func (s fixedScorer) BestMatch(string, []string) (similarity.Match, bool) {
	return s.match, true
}

func seededRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Add(mustInstitution(t, "Massachusetts Institute of Technology", "United States", 1)))
	require.NoError(t, r.Add(mustInstitution(t, "University of Tokyo", "Japan", 20)))
	require.NoError(t, r.Add(mustInstitution(t, "Kyoto University", "Japan", 30)))
	r.MarkClean()
	return r
}

func TestResolve_ExactAliasAndIgnore(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	require.NoError(t, reg.AddAlias("Todai", "University of Tokyo"))
	reg.AddIgnore("Scraper Junk", "Japan")
	script := prompt.Values()
	res := NewResolver(reg, script, ResolverOptions{})
	ctx := context.Background()

	out, err := res.Resolve(ctx, "Kyoto University", "Japan", "")
	require.NoError(t, err)
	require.Equal(t, Outcome{Kind: OutcomeCanonical, Name: "Kyoto University", Source: SourceExact}, out)

	out, err = res.Resolve(ctx, "Kyoto University - Before 2004", "Japan", "")
	require.NoError(t, err)
	require.Equal(t, "Kyoto University", out.Name)

	// Alias lookup is country independent.
	out, err = res.Resolve(ctx, "Todai", "Narnia", "")
	require.NoError(t, err)
	require.Equal(t, Outcome{Kind: OutcomeCanonical, Name: "University of Tokyo", Source: SourceAlias}, out)

	out, err = res.Resolve(ctx, "Scraper Junk", "Japan", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeSkip, out.Kind)
	require.Empty(t, script.Asked())

	// Exact match requires the same country.
	_, err = res.Resolve(ctx, "Kyoto University", "China", "")
	require.ErrorIs(t, err, prompt.ErrNoInput)
}

func TestResolve_AcceptSuggestionRegistersAlias(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	script := prompt.Values("")
	res := NewResolver(reg, script, ResolverOptions{})
	ctx := context.Background()

	out, err := res.Resolve(ctx, "MIT", "United States", "Cambridge")
	require.NoError(t, err)
	require.Equal(t, OutcomeCanonical, out.Kind)
	require.Equal(t, "Massachusetts Institute of Technology", out.Name)
	require.Equal(t, SourceAccepted, out.Source)
	require.Less(t, out.Score, 100)
	require.Contains(t, script.Asked()[0].Text, "MIT in Cambridge, United States")

	c, ok := reg.ResolveAlias("MIT")
	require.True(t, ok)
	require.Equal(t, "Massachusetts Institute of Technology", c)

	// Second resolution is silent.
	out, err = res.Resolve(ctx, "MIT", "United States", "")
	require.NoError(t, err)
	require.Equal(t, SourceAlias, out.Source)
	require.Len(t, script.Asked(), 1)
}

func TestResolve_AutoAcceptNormalisedEquality(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	script := prompt.Values()
	res := NewResolver(reg, script, ResolverOptions{})

	out, err := res.Resolve(context.Background(), "university of tokyo.", "Japan", "")
	require.NoError(t, err)
	require.Equal(t, SourceAutoAccepted, out.Source)
	require.Equal(t, 100, out.Score)
	require.Equal(t, "University of Tokyo", out.Name)
	require.True(t, reg.AliasesDirty())
	require.Empty(t, script.Asked())
}

func TestResolve_ConfigurableThreshold(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	scorer := fixedScorer{match: similarity.Match{Candidate: "Kyoto University", Score: 97}}

	res := NewResolver(reg, prompt.Values(), ResolverOptions{AutoAcceptScore: 95, Scorer: scorer})
	out, err := res.Resolve(context.Background(), "Kyoto Univ", "Japan", "")
	require.NoError(t, err)
	require.Equal(t, SourceAutoAccepted, out.Source)

	strict := NewResolver(seededRegistry(t), prompt.Values(), ResolverOptions{Scorer: scorer})
	_, err = strict.Resolve(context.Background(), "Kyoto Univ", "Japan", "")
	require.ErrorIs(t, err, prompt.ErrNoInput)
}

func TestResolve_UnknownCountryNeverFuzzyMatches(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	script := prompt.NewScript(
		prompt.Answer{Kind: KindNewCountry, Value: "what"},
		prompt.Answer{Kind: KindNewCountry, Value: ""},
		prompt.Answer{Kind: KindOfficialName, Value: ""},
		prompt.Answer{Kind: KindRank, Value: "abc"},
		prompt.Answer{Kind: KindRank, Value: "500"},
		prompt.Answer{Kind: KindRank, Value: ""},
	)
	res := NewResolver(reg, script, ResolverOptions{Scorer: fixedScorer{}})

	out, err := res.Resolve(context.Background(), "Acme College", "Narnia", "")
	require.NoError(t, err)
	require.Equal(t, Outcome{Kind: OutcomeCanonical, Name: "Acme College", Source: SourceNewCountry}, out)
	require.Zero(t, script.Remaining())
	require.Len(t, script.Notes(), 3)

	inst, ok := reg.Find("Acme College", "Narnia")
	require.True(t, ok)
	require.Equal(t, 200, inst.Rank())
}

func TestResolve_UnknownCountrySkip(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	res := NewResolver(reg, prompt.Values("s"), ResolverOptions{})
	out, err := res.Resolve(context.Background(), "Acme College", "Narnia", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeSkip, out.Kind)
	require.True(t, reg.IsIgnored("Acme College", "Narnia"))
	require.False(t, reg.HasCountry("Narnia"))
}

func TestResolve_NewCountryWithOfficialName(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	res := NewResolver(reg, prompt.Values("n", "Acme College of Narnia", "150"), ResolverOptions{})
	ctx := context.Background()

	out, err := res.Resolve(ctx, "Acme Coll.", "Narnia", "")
	require.NoError(t, err)
	require.Equal(t, "Acme College of Narnia", out.Name)

	out, err = res.Resolve(ctx, "Acme Coll.", "Narnia", "")
	require.NoError(t, err)
	require.Equal(t, SourceAlias, out.Source)
	require.Equal(t, "Acme College of Narnia", out.Name)
}

func TestResolve_FuzzyDecisions(t *testing.T) {
	t.Parallel()

	suggestion := similarity.Match{Candidate: "Kyoto University", Score: 60}
	ctx := context.Background()

	t.Run("operator alias retries unknown names", func(t *testing.T) {
		t.Parallel()
		reg := seededRegistry(t)
		script := prompt.Values("Tokyo Uni", "University of Tokyo")
		res := NewResolver(reg, script, ResolverOptions{Scorer: fixedScorer{match: suggestion}})

		out, err := res.Resolve(ctx, "U Tokyo", "Japan", "")
		require.NoError(t, err)
		require.Equal(t, SourceOperatorAlias, out.Source)
		require.Equal(t, "University of Tokyo", out.Name)
		require.Len(t, script.Asked(), 2)
		require.Len(t, script.Notes(), 1)
		c, _ := reg.ResolveAlias("U Tokyo")
		require.Equal(t, "University of Tokyo", c)
	})

	t.Run("rename to known name adds no alias", func(t *testing.T) {
		t.Parallel()
		reg := seededRegistry(t)
		res := NewResolver(reg, prompt.Values("r", "University of Tokyo"), ResolverOptions{Scorer: fixedScorer{match: suggestion}})

		out, err := res.Resolve(ctx, "Tokyo Typo", "Japan", "")
		require.NoError(t, err)
		require.Equal(t, Outcome{Kind: OutcomeRename, Name: "University of Tokyo", Source: SourceRename, Score: 60}, out)
		require.False(t, reg.IsKnown("Tokyo Typo"))
		require.False(t, reg.RankingsDirty())
	})

	t.Run("rename to new name registers it", func(t *testing.T) {
		t.Parallel()
		reg := seededRegistry(t)
		res := NewResolver(reg, prompt.Values("r", "", "Osaka University", "45"), ResolverOptions{Scorer: fixedScorer{match: suggestion}})

		out, err := res.Resolve(ctx, "Osaka Typo", "Japan", "")
		require.NoError(t, err)
		require.Equal(t, OutcomeRename, out.Kind)
		inst, ok := reg.Find("Osaka University", "Japan")
		require.True(t, ok)
		require.Equal(t, 45, inst.Rank())
		require.False(t, reg.IsKnown("Osaka Typo"))
	})

	t.Run("new institution aliases the raw spelling", func(t *testing.T) {
		t.Parallel()
		reg := seededRegistry(t)
		res := NewResolver(reg, prompt.Values("n", "Hokkaido University", ""), ResolverOptions{Scorer: fixedScorer{match: suggestion}})

		out, err := res.Resolve(ctx, "Hokudai", "Japan", "")
		require.NoError(t, err)
		require.Equal(t, SourceNew, out.Source)
		require.Equal(t, "Hokkaido University", out.Name)
		c, ok := reg.ResolveAlias("Hokudai")
		require.True(t, ok)
		require.Equal(t, "Hokkaido University", c)
	})

	t.Run("skip ignores", func(t *testing.T) {
		t.Parallel()
		reg := seededRegistry(t)
		res := NewResolver(reg, prompt.Values("s"), ResolverOptions{Scorer: fixedScorer{match: suggestion}})

		out, err := res.Resolve(ctx, "Garbage", "Japan", "")
		require.NoError(t, err)
		require.Equal(t, OutcomeSkip, out.Kind)
		require.True(t, reg.IsIgnored("Garbage", "Japan"))

		out, err = res.Resolve(ctx, "Garbage", "Japan", "")
		require.NoError(t, err)
		require.Equal(t, SourceIgnored, out.Source)
	})
}

func TestResolve_NoTransitiveAliases(t *testing.T) {
	t.Parallel()

	reg := seededRegistry(t)
	require.NoError(t, reg.AddAlias("Tokyo U", "University of Tokyo"))

	script := prompt.Values("s")
	res := NewResolver(reg, script, ResolverOptions{Scorer: fixedScorer{match: similarity.Match{Candidate: "University of Tokyo", Score: 80}}})
	out, err := res.Resolve(context.Background(), "Tokyo Uni", "Japan", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeSkip, out.Kind)
	require.Len(t, script.Asked(), 1)
}

func TestResolve_EmptyName(t *testing.T) {
	t.Parallel()

	res := NewResolver(seededRegistry(t), prompt.Values(), ResolverOptions{})
	_, err := res.Resolve(context.Background(), "   ", "Japan", "")
	require.Error(t, err)
}
