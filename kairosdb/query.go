package kairosdb

import "encoding/json"

const (
	defaultStart    = -5
	defaultTimeUnit = "seconds"
)

// Aggregator describes a server side aggregation such as {"name": "sum"}.
// Its contents are passed through untouched.
type Aggregator map[string]interface{}

// QueryRequest describes a single metric query.
// A nil Start means -5 and an empty TimeUnit means "seconds".
type QueryRequest struct {
	Name        string
	Tags        map[string][]string
	Aggregators []Aggregator
	Start       *int
	TimeUnit    string
}

// QueryOption sets an optional field of a QueryRequest.
type QueryOption func(*QueryRequest)

// WithTags filters the metric by tag values.
func WithTags(tags map[string][]string) QueryOption {
	return func(r *QueryRequest) { r.Tags = tags }
}

// WithAggregators sets the aggregators, in order. Calling it with no
// aggregators still sends an empty list.
func WithAggregators(aggregators ...Aggregator) QueryOption {
	if aggregators == nil {
		aggregators = []Aggregator{}
	}
	return func(r *QueryRequest) { r.Aggregators = aggregators }
}

// WithStart sets the relative start value.
func WithStart(start int) QueryOption {
	return func(r *QueryRequest) { r.Start = &start }
}

// WithTimeUnit sets the unit of the relative start. An empty unit is the
// same as not setting one and falls back to "seconds".
func WithTimeUnit(unit string) QueryOption {
	return func(r *QueryRequest) { r.TimeUnit = unit }
}

// NewQueryRequest returns a request for the named metric.
func NewQueryRequest(name string, opts ...QueryOption) QueryRequest {
	r := QueryRequest{Name: name}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// StartRelative is the relative time window of a query.
type StartRelative struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// QueryMetric is the metric object of a query document. Tags and
// Aggregators are only serialized when non-nil.
type QueryMetric struct {
	Name        string
	Tags        map[string][]string
	Aggregators []Aggregator
}

// MarshalJSON implements json.Marshaler.
func (m QueryMetric) MarshalJSON() ([]byte, error) {
	doc := map[string]interface{}{"name": m.Name}
	if m.Aggregators != nil {
		doc["aggregators"] = m.Aggregators
	}
	if m.Tags != nil {
		doc["tags"] = m.Tags
	}
	return json.Marshal(doc)
}

// QueryDocument is the body POSTed to the datapoints query endpoint.
type QueryDocument struct {
	StartRelative StartRelative `json:"start_relative"`
	Metrics       []QueryMetric `json:"metrics"`
}

// BuildQuery converts a request into its wire document.
func BuildQuery(req QueryRequest) QueryDocument {
	start := defaultStart
	if req.Start != nil {
		start = *req.Start
	}
	unit := req.TimeUnit
	if unit == "" {
		unit = defaultTimeUnit
	}

	return QueryDocument{
		StartRelative: StartRelative{Value: start, Unit: unit},
		Metrics: []QueryMetric{{
			Name:        req.Name,
			Tags:        req.Tags,
			Aggregators: req.Aggregators,
		}},
	}
}
