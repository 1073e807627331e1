package qdrant

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
)

// buildFilter translates a metadata clause into a Qdrant filter. Returns nil
// for an empty clause. A clause this backend cannot express is rejected with
// domain.ErrQueryRejected.
func buildFilter(c filter.Clause) (*qdrant.Filter, error) {
	if c.IsZero() {
		return nil, nil
	}
	if c.IsUnparseable() {
		return nil, fmt.Errorf("%w: only flat conjunctions of field predicates are supported", domain.ErrQueryRejected)
	}

	conditions := make([]*qdrant.Condition, 0, len(c.Predicates()))
	for _, p := range c.Predicates() {
		cond, err := buildCondition(p)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return &qdrant.Filter{Must: conditions}, nil
}

func buildCondition(p filter.Predicate) (*qdrant.Condition, error) {
	switch p.Op() {
	case filter.Eq, filter.Ne:
		cond, err := matchCondition(p.Field(), p.Value())
		if err != nil {
			return nil, err
		}
		if p.Op() == filter.Ne {
			cond = negated(cond)
		}
		return cond, nil

	case filter.Gt, filter.Lt:
		v, ok := p.Value().(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s supports only numeric values", domain.ErrQueryRejected, p.Op())
		}
		r := &qdrant.Range{}
		if p.Op() == filter.Gt {
			r.Gt = &v
		} else {
			r.Lt = &v
		}
		return fieldCondition(&qdrant.FieldCondition{Key: p.Field(), Range: r}), nil

	case filter.In:
		vals, ok := p.Value().([]string)
		if !ok || len(vals) == 0 {
			return nil, fmt.Errorf("%w: in requires a non-empty string list", domain.ErrQueryRejected)
		}
		keywords := make([]string, len(vals))
		copy(keywords, vals)
		return fieldCondition(&qdrant.FieldCondition{
			Key: p.Field(),
			Match: &qdrant.Match{
				MatchValue: &qdrant.Match_Keywords{
					Keywords: &qdrant.RepeatedStrings{Strings: keywords},
				},
			},
		}), nil

	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrQueryRejected, p.Op())
	}
}

// matchCondition builds an equality condition. String values match as
// keywords; numeric values match as a degenerate range since payload numbers
// may be floats.
func matchCondition(key string, value any) (*qdrant.Condition, error) {
	switch v := value.(type) {
	case string:
		return fieldCondition(&qdrant.FieldCondition{
			Key:   key,
			Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}},
		}), nil
	case float64:
		return fieldCondition(&qdrant.FieldCondition{
			Key:   key,
			Range: &qdrant.Range{Gte: &v, Lte: &v},
		}), nil
	default:
		return nil, fmt.Errorf("%w: equality requires a string or number value", domain.ErrQueryRejected)
	}
}

func fieldCondition(fc *qdrant.FieldCondition) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{Field: fc},
	}
}

// negated wraps a condition in a must_not sub-filter.
func negated(cond *qdrant.Condition) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Filter{
			Filter: &qdrant.Filter{MustNot: []*qdrant.Condition{cond}},
		},
	}
}
