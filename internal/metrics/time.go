package metrics

import (
	"encoding/json"
	"time"
)

// fallbackTime is what a persisted timestamp revives to when it cannot
// be parsed; hydration must not fail over a single bad field.
var fallbackTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Time is a timestamp that serializes as an RFC3339 string and revives
// defensively on load: a value that fails to parse resolves to a fixed
// fallback date instead of failing the whole snapshot.
type Time struct {
	time.Time
}

// NewTime wraps a time.Time.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = fallbackTime
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		parsed, err = time.Parse("2006-01-02 15:04:05", s)
	}
	if err != nil {
		parsed, err = time.Parse("2006-01-02", s)
	}
	if err != nil {
		t.Time = fallbackTime
		return nil
	}
	t.Time = parsed
	return nil
}
