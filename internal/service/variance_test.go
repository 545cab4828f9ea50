package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestVariancePct(t *testing.T) {
	tests := []struct {
		name string
		prev string
		curr string
		want string
	}{
		{"no change", "100", "100", "0"},
		{"thirty percent up", "100", "130", "30"},
		{"thirty percent down", "100", "70", "30"},
		{"halved", "200", "100", "50"},
		{"negative base", "-100", "-130", "30"},
		{"sign flip", "100", "-100", "200"},
		{"both zero", "0", "0", "0"},
		{"appears from zero", "0", "5000", "999999"},
		{"near-zero prior counts as zero", "0.0000000001", "5000", "999999"},
		{"vanishes to zero", "5000", "0", "100"},
		{"fractional", "100", "100.5", "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := decimal.RequireFromString(tt.prev)
			curr := decimal.RequireFromString(tt.curr)
			want := decimal.RequireFromString(tt.want)
			got := VariancePct(prev, curr)
			assert.True(t, got.Equal(want), "got %s, want %s", got, want)
		})
	}
}

func TestVariancePctIsSymmetricInSign(t *testing.T) {
	// The stored variance is a magnitude; direction never matters.
	prev := decimal.NewFromInt(100)
	up := VariancePct(prev, decimal.NewFromInt(140))
	down := VariancePct(prev, decimal.NewFromInt(60))
	assert.True(t, up.Equal(down))
}
