package model

import "time"

// Granularity selects the time bucket an aggregate belongs to. Each
// granularity maps to its own reporting table.
type Granularity int

const (
	Minute Granularity = iota
	Hourly
	Daily
)

// Table returns the reporting table name for the granularity.
func (g Granularity) Table() string {
	switch g {
	case Minute:
		return "reporting_average_minute"
	case Hourly:
		return "reporting_average_hourly"
	default:
		return "reporting_average_daily"
	}
}

func (g Granularity) String() string {
	switch g {
	case Minute:
		return "minute"
	case Hourly:
		return "hourly"
	default:
		return "daily"
	}
}

// AggregationKey identifies one metric series within one time bucket:
// a device pin owned by a user, at a bucket timestamp (unix millis,
// truncated to the bucket boundary).
type AggregationKey struct {
	Username string
	DeviceID int
	Pin      int
	PinType  string
	Ts       int64
}

// AggregationValue accumulates samples for one key. The persisted
// value is the running average.
type AggregationValue struct {
	Sum   float64
	Count int64
}

// Add folds one sample into the accumulator.
func (v *AggregationValue) Add(sample float64) {
	v.Sum += sample
	v.Count++
}

// Average returns the accumulated mean, or 0 for an empty accumulator.
func (v *AggregationValue) Average() float64 {
	if v.Count == 0 {
		return 0
	}
	return v.Sum / float64(v.Count)
}

// ReportingBatch is the payload of one reporting flush: accumulated
// values keyed by metric identity.
type ReportingBatch map[AggregationKey]*AggregationValue

// User is a backend account record. The persistence layer treats the
// profile as an opaque payload and upserts the whole record by email.
type User struct {
	Email        string    `json:"email"`
	AppName      string    `json:"app_name"`
	Region       string    `json:"region"`
	LastModified time.Time `json:"last_modified"`
	Profile      []byte    `json:"profile"`
}
