package datatype

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// inferenceCandidates lists the kinds Infer tries, in preference order.
// Integer precedes Float and Boolean so "1" is read as a number.
func inferenceCandidates() []*DataType {
	return []*DataType{Integer(), Float(), Boolean(), DateTime(), Guid(), Color(), Text()}
}

type candidateScore struct {
	t           *DataType
	highQuality bool
}

// Infer picks a type for a column of samples. A sample is a
// high-quality match for a non-Text type when it is already valid for it
// (json.Number samples are read as int64 or float64 first); otherwise a
// text sample must survive convert-then-revalidate. Only types that
// accept every sample are kept. A type whose every sample was high
// quality wins, then any other non-Text type, then Text. Blank samples
// are accepted by every type; an all-blank column is Text.
func Infer(ctx context.Context, env Env, samples []any) (*DataType, error) {
	blank := true
	for _, sample := range samples {
		if !isBlank(sample) {
			blank = false
			break
		}
	}
	if blank {
		return Text(), nil
	}

	var survivors []candidateScore
	for _, candidate := range inferenceCandidates() {
		score, ok, err := scoreCandidate(ctx, env, candidate, samples)
		if err != nil {
			return nil, err
		}
		if ok {
			survivors = append(survivors, candidateScore{t: candidate, highQuality: score})
		}
	}

	for _, s := range survivors {
		if s.highQuality && s.t.kind != KindText {
			return s.t, nil
		}
	}
	for _, s := range survivors {
		if s.t.kind != KindText {
			return s.t, nil
		}
	}
	for _, s := range survivors {
		if s.t.kind == KindText {
			return s.t, nil
		}
	}
	return nil, fmt.Errorf("%w: %d samples", types.ErrNoTypeFits, len(samples))
}

// scoreCandidate reports whether candidate accepts every sample, and
// whether every non-blank sample was already valid for it. Only raw text
// goes through convert-then-revalidate; a typed sample must already be
// valid, except that integers widen to Float.
func scoreCandidate(ctx context.Context, env Env, candidate *DataType, samples []any) (allHighQuality, accepted bool, err error) {
	allHighQuality = candidate.kind != KindText
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return false, false, err
		}
		if isBlank(sample) {
			continue
		}
		sample = normalizeSample(sample)
		if candidate.kind != KindText && candidate.Validate(ctx, env, sample) == nil {
			continue
		}
		allHighQuality = false
		if _, raw := sample.(string); !raw && candidate.kind != KindText && !widens(candidate, sample) {
			return false, false, nil
		}
		converted, cerr := candidate.Convert(ctx, env, sample)
		if cerr != nil {
			return false, false, nil
		}
		if candidate.Validate(ctx, env, converted) != nil {
			return false, false, nil
		}
	}
	return allHighQuality, true, nil
}

// normalizeSample reads a json.Number or native Go number as the int64
// or float64 the catalog stores.
func normalizeSample(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int, int8, int16, int32, uint8, uint16, uint32:
		return cast.ToInt64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func widens(candidate *DataType, sample any) bool {
	_, isInt := sample.(int64)
	return candidate.kind == KindFloat && isInt
}
