package store

import (
	"encoding/json"

	"github.com/dmitrijs2005/peerlink/internal/models"
)

// Op is a filter comparison operator. Only equality and membership are
// supported; that is all the sync layer needs (username lookup, pending
// request lookup, either-slot friendship match, id-set membership,
// conversation pairs).
type Op string

const (
	// OpEq matches when the field equals the condition value.
	OpEq Op = "eq"
	// OpIn matches when the field value is a member of the condition's
	// list value.
	OpIn Op = "in"
)

// Cond is a single field comparison.
type Cond struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Filter selects records from a collection. All conditions are AND-ed;
// Any conditions are OR-ed. A record matches when every All condition holds
// and, if Any is non-empty, at least one Any condition holds. The zero
// Filter matches everything.
//
// Filters are evaluated in-memory by the local store and shipped verbatim
// as JSON to the remote store, which evaluates them server-side.
type Filter struct {
	All []Cond `json:"all,omitempty"`
	Any []Cond `json:"any,omitempty"`
}

// Eq builds an equality condition.
func Eq(field string, value any) Cond {
	return Cond{Field: field, Op: OpEq, Value: value}
}

// In builds a membership condition.
func In(field string, values []string) Cond {
	return Cond{Field: field, Op: OpIn, Value: values}
}

// Where builds a filter AND-ing the given conditions.
func Where(conds ...Cond) Filter {
	return Filter{All: conds}
}

// AnyOf builds a filter OR-ing the given conditions.
func AnyOf(conds ...Cond) Filter {
	return Filter{Any: conds}
}

// Matches reports whether rec satisfies the filter.
func (f Filter) Matches(rec models.Record) bool {
	for _, c := range f.All {
		if !c.matches(rec) {
			return false
		}
	}
	if len(f.Any) == 0 {
		return true
	}
	for _, c := range f.Any {
		if c.matches(rec) {
			return true
		}
	}
	return false
}

func (c Cond) matches(rec models.Record) bool {
	got, ok := rec[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return canon(got) == canon(c.Value)
	case OpIn:
		for _, want := range asList(c.Value) {
			if canon(got) == canon(want) {
				return true
			}
		}
	}
	return false
}

// canon renders a value in a representation-independent form. Records pass
// through JSON, so the same logical value may arrive as string, float64 or
// bool depending on the path it took.
func canon(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func asList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return nil
}
