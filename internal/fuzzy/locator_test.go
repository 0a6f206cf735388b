// v0
// internal/fuzzy/locator_test.go
package fuzzy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integerDomain(t *testing.T, from, to int) Domain {
	t.Helper()
	values := make([]float64, 0, to-from+1)
	for v := from; v <= to; v++ {
		values = append(values, float64(v))
	}
	d, err := NewDomain(values)
	require.NoError(t, err)
	return d
}

func TestNearestIndex(t *testing.T) {
	d := integerDomain(t, -12, 12)

	cases := []struct {
		name  string
		value float64
		want  int
	}{
		{name: "closer to lower sample", value: -11.6, want: 0},
		{name: "closer to upper sample", value: -11.4, want: 1},
		{name: "exact tie keeps lower index", value: -11.5, want: 0},
		{name: "far above", value: 1000, want: 24},
		{name: "far below", value: -1000, want: 0},
		{name: "exact sample", value: 3, want: 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NearestIndex(d, tc.value))
		})
	}

	assert.Equal(t, -1, NearestIndex(d, math.NaN()))
	assert.Equal(t, -1, NearestIndex(Domain{}, 1))
}

func TestLocatePeak(t *testing.T) {
	set := DefaultSet()
	erro, ok := set.Get(VarError)
	require.True(t, ok)

	op, ok := Locate(erro, 0.02)
	require.True(t, ok)
	assert.Equal(t, 120, op.Index)
	assert.InDelta(t, 0.0, op.Sample, 1e-9)
	assert.Equal(t, 1.0, op.Peak)
	assert.Equal(t, "ZE", op.Label)

	op, ok = Locate(erro, -4.81)
	require.True(t, ok)
	assert.Equal(t, 72, op.Index)
	assert.InDelta(t, 0.52, op.Peak, 1e-9)
	assert.Equal(t, "MN", op.Label)
}

func TestLocateAtUniverseEdges(t *testing.T) {
	set := DefaultSet()
	cases := []struct {
		variable string
		x        float64
		label    string
	}{
		{VarError, -12, "MN"},
		{VarError, 12, "MP"},
		{VarDelta, -6, "MN"},
		{VarDelta, 6, "MP"},
	}
	for _, tc := range cases {
		v, ok := set.Get(tc.variable)
		require.True(t, ok)
		op, ok := Locate(v, tc.x)
		require.True(t, ok, "%s at %v", tc.variable, tc.x)
		assert.Equal(t, 1.0, op.Peak, "%s at %v", tc.variable, tc.x)
		assert.Equal(t, tc.label, op.Label, "%s at %v", tc.variable, tc.x)
	}
}

func TestLocateNoOperatingPoint(t *testing.T) {
	set := DefaultSet()
	erro, _ := set.Get(VarError)

	for _, raw := range []string{"", "  ", "abc", "NaN", "Inf", "1.2.3"} {
		_, ok := LocateRaw(erro, raw)
		assert.False(t, ok, "raw=%q", raw)
	}
	_, ok := Locate(erro, math.Inf(1))
	assert.False(t, ok)

	op, ok := LocateRaw(erro, " -2,5 ")
	require.True(t, ok)
	assert.InDelta(t, -2.5, op.Sample, 1e-9)
}

func TestArangeLengths(t *testing.T) {
	set := DefaultSet()
	want := map[string]int{VarError: 241, VarDelta: 1201, VarOutput: 101}
	for name, n := range want {
		v, ok := set.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, n, v.Domain.Len(), name)
	}
	erro, _ := set.Get(VarError)
	assert.Equal(t, -12.0, erro.Domain.Min())
	assert.Equal(t, 12.0, erro.Domain.Max())

	_, err := Arange(0, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidDomain)
	_, err = Arange(1, 0, 0.1)
	assert.ErrorIs(t, err, ErrInvalidDomain)
	_, err = NewDomain([]float64{0, 0})
	assert.ErrorIs(t, err, ErrInvalidDomain)
}
