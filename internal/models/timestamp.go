package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts are tried in order. Timestamps without an offset are
// taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts RFC 3339 as well as ISO 8601 date-times without an
// offset, the way Python's isoformat() writes them.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func parseOptionalTimestamp(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		CreatedAt *string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	created, err := parseOptionalTimestamp(aux.CreatedAt)
	if err != nil {
		return err
	}
	*u = User(aux.plain)
	u.CreatedAt = created
	return nil
}

// UnmarshalJSON leaves StartedAt zero when the server sends null.
func (c *Call) UnmarshalJSON(data []byte) error {
	type plain Call
	var aux struct {
		plain
		StartedAt *string `json:"started_at"`
		EndedAt   *string `json:"ended_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	started, err := parseOptionalTimestamp(aux.StartedAt)
	if err != nil {
		return err
	}
	ended, err := parseOptionalTimestamp(aux.EndedAt)
	if err != nil {
		return err
	}
	*c = Call(aux.plain)
	if started != nil {
		c.StartedAt = *started
	}
	c.EndedAt = ended
	return nil
}
