package datatype

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		name    string
		samples []any
		want    Kind
	}{
		{"integers", []any{"1", "2", "30"}, KindInteger},
		{"integers beat booleans", []any{"1", "0"}, KindInteger},
		{"mixed numbers are floats", []any{"1", "2.5"}, KindFloat},
		{"booleans", []any{"true", "False", "yes"}, KindBoolean},
		{"dates", []any{"2024-01-01", "2024-02-29T10:00:00Z"}, KindDateTime},
		{"guids", []any{uuid.NewString(), uuid.NewString()}, KindGuid},
		{"colors", []any{"#ff0000", "#0f0"}, KindColor},
		{"text fallback", []any{"sword", "1"}, KindText},
		{"blanks are ignored", []any{"", "4", "  "}, KindInteger},
		{"all blank is text", []any{"", nil}, KindText},
		{"typed booleans are high quality", []any{true, false}, KindBoolean},
		{"json numbers", []any{json.Number("3"), json.Number("4")}, KindInteger},
		{"json integers widen to float", []any{json.Number("1"), json.Number("2.5")}, KindFloat},
		{"integral json float stays float", []any{json.Number("3.0")}, KindFloat},
		{"typed values are not coerced", []any{json.Number("1"), true}, KindText},
		{"typed boolean is not a number", []any{true, json.Number("0")}, KindText},
		{"native integers", []any{3, int32(4)}, KindInteger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Infer(context.Background(), Env{}, tt.samples)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Kind())
		})
	}
}

func TestInfer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Infer(ctx, Env{}, []any{"1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreCandidate_JSONNumbersAreHighQuality(t *testing.T) {
	ctx := context.Background()
	hq, ok, err := scoreCandidate(ctx, Env{}, Integer(), []any{json.Number("3"), json.Number("-4")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, hq)

	hq, ok, err = scoreCandidate(ctx, Env{}, Float(), []any{json.Number("3"), json.Number("0.5")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, hq, "the integer sample only widens")

	_, ok, err = scoreCandidate(ctx, Env{}, Integer(), []any{json.Number("1"), true})
	require.NoError(t, err)
	assert.False(t, ok)
}
