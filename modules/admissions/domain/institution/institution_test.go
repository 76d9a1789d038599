package institution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	inst, err := New("  University of Tokyo ", "Japan", 0)
	require.NoError(t, err)
	require.Equal(t, "University of Tokyo", inst.Name())
	require.Equal(t, "Japan", inst.Country())
	require.Equal(t, DefaultRank, inst.Rank())
	require.Equal(t, Key{Name: "University of Tokyo", Country: "Japan"}, inst.Key())

	_, err = New("X", "Japan", 201)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rank")

	_, err = New("X", "Japan", -3)
	require.Error(t, err)

	_, err = New("", "Japan", 10)
	require.Error(t, err)

	_, err = New("X", " ", 10)
	require.Error(t, err)
}

func TestWithRank(t *testing.T) {
	t.Parallel()

	inst, err := New("MIT", "United States", 3)
	require.NoError(t, err)
	moved := inst.WithRank(1)
	require.Equal(t, 1, moved.Rank())
	require.Equal(t, 3, inst.Rank())
	require.Error(t, inst.WithRank(500).Validate())
}

func TestStripVariant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Seoul National University", "Seoul National University"},
		{"Seoul National University - Before 2004", "Seoul National University"},
		{"Seoul National University - After 2013", "Seoul National University"},
		{"Tsinghua University - Percent Scale", "Tsinghua University"},
		{"Tsinghua University - 10 Scale", "Tsinghua University"},
		{"Tsinghua University - 4.3 scale", "Tsinghua University"},
		{"University of Delhi - 0-10 Scale", "University of Delhi"},
		{"Korea University - Between 2004 and 2013 - 4.5 Scale", "Korea University"},
		{"Korea University - After 2013 - 4.5 Scale", "Korea University"},
		{"Institut Teknologi - Bandung", "Institut Teknologi - Bandung"},
		{"  Padded Name  ", "Padded Name"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, StripVariant(tc.in), tc.in)
		require.Equal(t, tc.want, StripVariant(StripVariant(tc.in)), "idempotent: %s", tc.in)
	}
}
