package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
	domusage "github.com/kailas-cloud/panelscope/internal/domain/usage"
)

// ErrorCode is the machine-readable error class in error responses.
type ErrorCode string

const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeInvalidFilterField ErrorCode = "invalid_filter_field"
	ErrorCodeInvalidFilterValue ErrorCode = "invalid_filter_value"
	ErrorCodeInvalidIntent      ErrorCode = "invalid_intent"
	ErrorCodeStoreUnavailable   ErrorCode = "store_unavailable"
	ErrorCodeEmbeddingFailure   ErrorCode = "embedding_failure"
	ErrorCodeEmbeddingQuota     ErrorCode = "embedding_quota_exceeded"
	ErrorCodeReloadFailed       ErrorCode = "reload_failed"
	ErrorCodeInternal           ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Value   string    `json:"value,omitempty"`
}

// RangeDTO is a numeric range condition.
type RangeDTO struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// IntentRequest is the JSON form of a query intent.
//
// Filter values are a string (match), an array of strings (any-of), a number
// (match), or a range object.
type IntentRequest struct {
	Filter   map[string]json.RawMessage `json:"filter"`
	Positive []string                   `json:"positive"`
	Negative []string                   `json:"negative"`
	Target   string                     `json:"target"`
	Query    string                     `json:"query"`
	Limit    int                        `json:"limit"`
}

// InsightsRequest asks for the records of an intent and their charts.
type InsightsRequest struct {
	Intent    IntentRequest `json:"intent"`
	MinCharts int           `json:"min_charts"`
}

// AnswerDTO is one survey answer of a record.
type AnswerDTO struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

// RecordDTO is one panel in a result.
type RecordDTO struct {
	ID         string            `json:"id"`
	Score      *float64          `json:"score,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Answers    []AnswerDTO       `json:"answers,omitempty"`
}

// ResolveResponse is the body of POST /v1/resolve.
type ResolveResponse struct {
	Case    string      `json:"case"`
	Count   int         `json:"count"`
	Columns []string    `json:"columns"`
	Records []RecordDTO `json:"records"`
	Dropped []string    `json:"dropped,omitempty"`
}

// BucketDTO is one bar of a distribution.
type BucketDTO struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// RowDTO is one crosstab row.
type RowDTO struct {
	Label   string      `json:"label"`
	Total   int         `json:"total"`
	Buckets []BucketDTO `json:"buckets"`
}

// ChartDTO is one prioritized chart.
type ChartDTO struct {
	Tier    int         `json:"tier"`
	Fields  []string    `json:"fields"`
	Kind    string      `json:"kind"`
	Score   float64     `json:"score"`
	Reason  string      `json:"reason"`
	Total   int         `json:"total"`
	Buckets []BucketDTO `json:"buckets,omitempty"`
	Rows    []RowDTO    `json:"rows,omitempty"`
}

// InsightsResponse is the body of POST /v1/insights.
type InsightsResponse struct {
	Result ResolveResponse `json:"result"`
	Charts []ChartDTO      `json:"charts"`
}

// ReloadResponse is the body of POST /admin/reload.
type ReloadResponse struct {
	Version uint64    `json:"version"`
	ID      string    `json:"id"`
	BuiltAt time.Time `json:"built_at"`
}

// UsageResponse is the body of GET /v1/usage.
type UsageResponse struct {
	Provider    string    `json:"provider"`
	Period      string    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Calls       int64     `json:"calls"`
	Tokens      int64     `json:"tokens"`
	Budget      BudgetDTO `json:"budget"`
}

// BudgetDTO is the token quota state. Limit and Remaining are omitted when unlimited.
type BudgetDTO struct {
	Unlimited bool      `json:"unlimited"`
	Limit     *int64    `json:"limit,omitempty"`
	Remaining *int64    `json:"remaining,omitempty"`
	Exhausted bool      `json:"exhausted"`
	ResetsAt  time.Time `json:"resets_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func intentFromDTO(req IntentRequest) (intent.QueryIntent, error) {
	conds := make([]filter.Condition, 0, len(req.Filter))
	for key, raw := range req.Filter {
		c, err := conditionFromDTO(key, raw)
		if err != nil {
			return intent.QueryIntent{}, err
		}
		conds = append(conds, c)
	}
	fs, err := filter.NewSet(conds...)
	if err != nil {
		return intent.QueryIntent{}, fmt.Errorf("%w: %w", domain.ErrInvalidIntent, err)
	}

	var opts []intent.Option
	if req.Target != "" {
		opts = append(opts, intent.WithTarget(req.Target))
	}
	if req.Query != "" {
		opts = append(opts, intent.WithQuery(req.Query))
	}
	if req.Limit != 0 {
		opts = append(opts, intent.WithLimit(req.Limit))
	}
	in, err := intent.New(fs, req.Positive, req.Negative, opts...)
	if err != nil {
		return intent.QueryIntent{}, fmt.Errorf("build intent: %w", err)
	}
	return in, nil
}

func conditionFromDTO(key string, raw json.RawMessage) (filter.Condition, error) {
	raw = bytes.TrimSpace(raw)
	invalid := func(reason string) error {
		return domain.NewInvalidValue(key, string(raw), reason)
	}
	if len(raw) == 0 {
		return filter.Condition{}, invalid("empty condition")
	}

	var (
		c   filter.Condition
		err error
	)
	switch raw[0] {
	case '"':
		var s string
		if err = json.Unmarshal(raw, &s); err != nil {
			return filter.Condition{}, invalid("malformed string")
		}
		c, err = filter.NewMatch(key, s)
	case '[':
		var vals []string
		if err = json.Unmarshal(raw, &vals); err != nil {
			return filter.Condition{}, invalid("expected an array of strings")
		}
		c, err = filter.NewAnyOf(key, vals)
	case '{':
		var r RangeDTO
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err = dec.Decode(&r); err != nil {
			return filter.Condition{}, invalid("expected a range with gt, gte, lt or lte")
		}
		var rf filter.Range
		if rf, err = filter.NewRangeFilter(r.GT, r.GTE, r.LT, r.LTE); err != nil {
			return filter.Condition{}, invalid(err.Error())
		}
		c, err = filter.NewRange(key, rf)
	default:
		var n float64
		if err = json.Unmarshal(raw, &n); err != nil {
			return filter.Condition{}, invalid("unsupported condition type")
		}
		c, err = filter.NewMatch(key, strconv.FormatFloat(n, 'f', -1, 64))
	}
	if err != nil {
		return filter.Condition{}, invalid(err.Error())
	}
	return c, nil
}

func resolveToDTO(s record.FinalRecordSet) ResolveResponse {
	out := ResolveResponse{
		Case:    string(s.Case),
		Count:   s.Len(),
		Columns: s.Columns,
		Records: make([]RecordDTO, len(s.Records)),
		Dropped: s.Dropped,
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for i, r := range s.Records {
		dto := RecordDTO{ID: r.ID, Attributes: r.Attributes}
		if r.Scored {
			score := r.Score
			dto.Score = &score
		}
		if dto.Attributes == nil {
			dto.Attributes = map[string]string{}
		}
		for _, a := range r.Answers {
			dto.Answers = append(dto.Answers, AnswerDTO{Field: a.Field, Text: a.Text})
		}
		out.Records[i] = dto
	}
	return out
}

func bucketsToDTO(bs []chart.Bucket) []BucketDTO {
	if len(bs) == 0 {
		return nil
	}
	out := make([]BucketDTO, len(bs))
	for i, b := range bs {
		out[i] = BucketDTO{Label: b.Label, Count: b.Count, Percent: b.Percent}
	}
	return out
}

func chartsToDTO(specs []chart.Spec) []ChartDTO {
	out := make([]ChartDTO, len(specs))
	for i, s := range specs {
		dto := ChartDTO{
			Tier:    s.Tier,
			Fields:  s.Fields,
			Kind:    string(s.Kind),
			Score:   s.Score,
			Reason:  s.Reason,
			Total:   s.Total,
			Buckets: bucketsToDTO(s.Buckets),
		}
		for _, r := range s.Rows {
			dto.Rows = append(dto.Rows, RowDTO{Label: r.Label, Total: r.Total, Buckets: bucketsToDTO(r.Buckets)})
		}
		out[i] = dto
	}
	return out
}

func usageToDTO(r domusage.Report) UsageResponse {
	b := BudgetDTO{
		Unlimited: r.Quota.Unlimited(),
		Exhausted: r.Quota.Exhausted(),
		ResetsAt:  r.Quota.ResetsAt,
	}
	if !b.Unlimited {
		limit, left := r.Quota.Limit, r.Quota.Remaining
		b.Limit, b.Remaining = &limit, &left
	}
	return UsageResponse{
		Provider:    r.Provider,
		Period:      string(r.Period),
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		Calls:       r.Consumption.Calls,
		Tokens:      r.Consumption.Tokens,
		Budget:      b,
	}
}
