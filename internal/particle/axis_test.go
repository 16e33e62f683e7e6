package particle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"2d", Mode2D, false},
		{"3D", Mode3D, false},
		{" 3 ", Mode3D, false},
		{"4d", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) Mode {
	t.Helper()
	m, err := ParseMode(s)
	require.NoError(t, err)
	return m
}

func TestAxisNames(t *testing.T) {
	t.Parallel()

	var names []string
	for _, a := range Axes {
		names = append(names, a.String())
	}
	assert.Equal(t, []string{"class", "rotation", "translation", "defocus"}, names)
	assert.Equal(t, "axis(9)", Axis(9).String())
	requirePanicsIs(t, ErrInvalidParameter, func() { Counts{}.Of(Axis(-1)) })
}

func TestCountsOf(t *testing.T) {
	t.Parallel()

	c := Counts{C: 1, R: 2, T: 3, D: 4}
	for i, a := range Axes {
		assert.Equal(t, i+1, c.Of(a))
	}
}
