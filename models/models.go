package models

// DataPoint is a single sample. Timestamp is milliseconds since the epoch,
// the unit KairosDB reports.
type DataPoint struct {
	Timestamp int64
	Value     float64
}

// Tag is a single label of a series.
type Tag struct {
	Key   string
	Value string
}

// TimeSeries is one group of a KairosDB query result.
type TimeSeries struct {
	Name       string
	Tags       []Tag
	DataPoints []DataPoint
}
