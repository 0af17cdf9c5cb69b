package datatype

import (
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
)

func TestValuesEqual(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal ints", int64(1), int64(1), true},
		{"int vs float", int64(1), float64(1), false},
		{"same instant different zone", now, now.In(time.FixedZone("x", 3600)), true},
		{"lists", []any{int64(1), "a"}, []any{int64(1), "a"}, true},
		{"list order matters", []any{int64(1), int64(2)}, []any{int64(2), int64(1)}, false},
		{"colors by hex", colorful.Color{R: 1}, colorful.Color{R: 0.9999999}, true},
		{"nil", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValuesEqual(tt.a, tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	assert.Equal(t, -1, Compare(int64(1), int64(2)))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, 0, Compare(2.5, 2.5))
	assert.Equal(t, -1, Compare(false, true))
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, -1, Compare(nil, int64(0)))
	assert.Equal(t, -1, Compare([]any{int64(1)}, []any{int64(1), int64(0)}))
	assert.Equal(t, 1, Compare(time.Unix(10, 0), time.Unix(5, 0)))

	values := []any{int64(3), nil, int64(1), int64(2)}
	slices.SortStableFunc(values, Compare)
	assert.Equal(t, []any{nil, int64(1), int64(2), int64(3)}, values)
}

func TestEncode(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	got := Encode([]any{id, ts, colorful.Color{B: 1}, int64(4)})
	assert.Equal(t, []any{id.String(), "2024-05-06T07:08:09Z", "#0000ff", int64(4)}, got)
}

func TestCloneValue(t *testing.T) {
	orig := []any{[]any{"a"}, map[string]any{"k": []any{int64(1)}}}
	clone := CloneValue(orig).([]any)
	clone[0].([]any)[0] = "changed"
	clone[1].(map[string]any)["k"] = nil
	assert.Equal(t, "a", orig[0].([]any)[0])
	assert.NotNil(t, orig[1].(map[string]any)["k"])
}
