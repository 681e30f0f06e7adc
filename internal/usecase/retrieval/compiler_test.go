package retrieval

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/schema"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
	"github.com/kailas-cloud/panelscope/internal/domain/search/predicate"
)

func newTestCompiler() *Compiler {
	return NewCompiler(schema.Default(), WithClock(testNow))
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name   string
		conds  func(t *testing.T) []filter.Condition
		clause string
		args   string
	}{
		{
			name:   "alias to single value",
			conds:  func(t *testing.T) []filter.Condition { return []filter.Condition{mustMatch(t, "gender", "남성")} },
			clause: "gender = $1",
			args:   "M",
		},
		{
			name:   "alias to several values",
			conds:  func(t *testing.T) []filter.Condition { return []filter.Condition{mustMatch(t, "region", "수도권")} },
			clause: "region_major IN ($1, $2, $3)",
			args:   "Seoul,Gyeonggi,Incheon",
		},
		{
			name: "any-of collapses duplicates after aliasing",
			conds: func(t *testing.T) []filter.Condition {
				return []filter.Condition{mustAnyOf(t, "region", "서울", "Seoul", "busan")}
			},
			clause: "region_major IN ($1, $2)",
			args:   "Seoul,Busan",
		},
		{
			name:   "age band",
			conds:  func(t *testing.T) []filter.Condition { return []filter.Condition{mustMatch(t, "age_band", "30s")} },
			clause: "birth_year BETWEEN $1 AND $2",
			args:   "1986,1995",
		},
		{
			name: "age bands OR together with open band",
			conds: func(t *testing.T) []filter.Condition {
				return []filter.Condition{mustAnyOf(t, "age_band", "30대", "60s+")}
			},
			clause: "birth_year BETWEEN $1 AND $2 OR birth_year <= $3",
			args:   "1986,1995,1965",
		},
		{
			name:   "age band alias",
			conds:  func(t *testing.T) []filter.Condition { return []filter.Condition{mustMatch(t, "age_band", "young")} },
			clause: "birth_year BETWEEN $1 AND $2 OR birth_year BETWEEN $3 AND $4",
			args:   "1996,2005,1986,1995",
		},
		{
			name: "age range flips onto birth year",
			conds: func(t *testing.T) []filter.Condition {
				return []filter.Condition{mustRange(t, "age_band", nil, f64(30), f64(40), nil)}
			},
			clause: "birth_year <= $1 AND birth_year > $2",
			args:   "1995,1985",
		},
		{
			name:   "integer match",
			conds:  func(t *testing.T) []filter.Condition { return []filter.Condition{mustMatch(t, "children_count", "2")} },
			clause: "children_count = $1",
			args:   "2",
		},
		{
			name: "integer range",
			conds: func(t *testing.T) []filter.Condition {
				return []filter.Condition{mustRange(t, "family_size", f64(1), nil, nil, f64(4))}
			},
			clause: "family_size > $1 AND family_size <= $2",
			args:   "1,4",
		},
		{
			name: "list membership",
			conds: func(t *testing.T) []filter.Condition {
				return []filter.Condition{mustAnyOf(t, "owned_electronics", "tablet", "smart_watch")}
			},
			clause: `(',' || owned_electronics || ',') LIKE $1 ESCAPE '\' OR (',' || owned_electronics || ',') LIKE $2 ESCAPE '\'`,
			args:   `%,tablet,%,%,smart\_watch,%`,
		},
		{
			name: "conditions in field order",
			conds: func(t *testing.T) []filter.Condition {
				return []filter.Condition{mustMatch(t, "region", "Seoul"), mustMatch(t, "age_band", "30s")}
			},
			clause: "(birth_year BETWEEN $1 AND $2) AND (region_major = $3)",
			args:   "1986,1995,Seoul",
		},
	}

	c := newTestCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := c.Compile(mustSet(t, tt.conds(t)...), predicate.Postgres)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if pred.Clause != tt.clause {
				t.Errorf("clause = %q\nwant      %q", pred.Clause, tt.clause)
			}
			if got := joinArgs(pred.Args); got != tt.args {
				t.Errorf("args = %q, want %q", got, tt.args)
			}
		})
	}
}

func TestCompile_SQLitePlaceholders(t *testing.T) {
	c := newTestCompiler()
	pred, err := c.Compile(mustSet(t, mustMatch(t, "gender", "F"), mustMatch(t, "region", "Seoul")), predicate.SQLite)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if want := "(gender = ?) AND (region_major = ?)"; pred.Clause != want {
		t.Errorf("clause = %q, want %q", pred.Clause, want)
	}
}

func TestCompile_ValuesNeverInClause(t *testing.T) {
	c := newTestCompiler()
	pred, err := c.Compile(mustSet(t, mustMatch(t, "job_duty", "x'; DROP TABLE panels; --")), predicate.Postgres)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if pred.Clause != "job_duty_raw = $1" {
		t.Errorf("clause = %q", pred.Clause)
	}
	if pred.Args[0] != "x'; DROP TABLE panels; --" {
		t.Errorf("args = %v", pred.Args)
	}
}

func TestCompile_Empty(t *testing.T) {
	pred, err := newTestCompiler().Compile(filter.Set{}, predicate.Postgres)
	if err != nil || !pred.IsEmpty() {
		t.Fatalf("Compile(empty) = %+v, %v", pred, err)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cond  func(t *testing.T) filter.Condition
		want  error
		field string
	}{
		{"unknown field", func(t *testing.T) filter.Condition { return mustMatch(t, "shoe_size", "42") },
			domain.ErrInvalidFilterField, "shoe_size"},
		{"vector field", func(t *testing.T) filter.Condition { return mustMatch(t, "ott_count", "3") },
			domain.ErrInvalidFilterField, "ott_count"},
		{"value outside domain", func(t *testing.T) filter.Condition { return mustMatch(t, "gender", "robot") },
			domain.ErrInvalidFilterValue, "gender"},
		{"bad age band", func(t *testing.T) filter.Condition { return mustMatch(t, "age_band", "35") },
			domain.ErrInvalidFilterValue, "age_band"},
		{"non-integer", func(t *testing.T) filter.Condition { return mustMatch(t, "children_count", "two") },
			domain.ErrInvalidFilterValue, "children_count"},
		{"range on text", func(t *testing.T) filter.Condition {
			return mustRange(t, "region", f64(1), nil, nil, nil)
		}, domain.ErrInvalidFilterValue, "region"},
		{"range on list", func(t *testing.T) filter.Condition {
			return mustRange(t, "owned_electronics", f64(1), nil, nil, nil)
		}, domain.ErrInvalidFilterValue, "owned_electronics"},
	}

	c := newTestCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(mustSet(t, tt.cond(t)), predicate.Postgres)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var fe *domain.FilterError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("FilterError field = %+v, want %q", fe, tt.field)
			}
		})
	}
}
