package syncqueue

import (
	"encoding/json"
	"fmt"
	"time"
)

// localLayout is how the backend serialises zone-less LocalDateTime values.
const localLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time.Time that decodes both RFC 3339 and zone-less values.
// Zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// At returns a pointer, handy for the optional syncedAt/lastSyncTime fields.
func At(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	t, err := time.ParseInLocation(localLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: bad timestamp %q", ErrInvalidItem, s)
	}
	return Timestamp{Time: t}, nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON leaves t untouched for null, like encoding/json does for
// built-in types.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: timestamp: %v", ErrInvalidItem, err)
	}
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}
