package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"42", 42},
		{"-7", -7},
		{"0.5", 0.5},
		{"1e3", 1000},
		{" 2.25 ", 2.25},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseNumber(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseNumber_NaN(t *testing.T) {
	got, err := ParseNumber("nan")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))
}

func TestParseNumber_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "--1"} {
		_, err := ParseNumber(in)
		assert.Error(t, err, in)
	}
}
