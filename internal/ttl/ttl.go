// Package ttl wraps persisted payloads with the time they were written so
// that stale records can be treated as absent.
package ttl

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// DefaultTTL is how long drafts and open-card markers stay meaningful.
const DefaultTTL = 24 * time.Hour

var ErrNotObject = errors.New("ttl: payload must encode to a JSON object")

type Status int

const (
	Absent Status = iota
	Fresh
	Expired
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Expired:
		return "expired"
	case Corrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

// Record is a payload plus the epoch millis it was written at. On the wire
// the payload's fields and "timestamp" share one JSON object.
type Record[T any] struct {
	Payload   T
	Timestamp int64
}

func Wrap[T any](payload T, nowMillis int64) Record[T] {
	return Record[T]{Payload: payload, Timestamp: nowMillis}
}

// IsExpired is true once strictly more than ttl has passed since the record
// was written.
func IsExpired[T any](rec Record[T], ttl time.Duration, nowMillis int64) bool {
	return nowMillis-rec.Timestamp > ttl.Milliseconds()
}

func (r Record[T]) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}
	ts, _ := json.Marshal(r.Timestamp)
	fields["timestamp"] = ts
	return json.Marshal(fields)
}

func (r *Record[T]) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return ErrNotObject
	}
	var stamp struct {
		Timestamp *json.Number `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &stamp); err != nil {
		return err
	}
	if stamp.Timestamp == nil {
		return errors.New("ttl: missing timestamp")
	}
	ts, err := stamp.Timestamp.Int64()
	if err != nil {
		f, ferr := stamp.Timestamp.Float64()
		if ferr != nil {
			return err
		}
		ts = int64(f)
	}

	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	r.Payload = payload
	r.Timestamp = ts
	return nil
}

// Peek classifies raw without side effects. ok reports whether the key held
// a value at all.
func Peek[T any](raw string, ok bool, ttl time.Duration, nowMillis int64) (Record[T], Status) {
	if !ok {
		return Record[T]{}, Absent
	}
	var rec Record[T]
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record[T]{}, Corrupt
	}
	if IsExpired(rec, ttl, nowMillis) {
		return rec, Expired
	}
	return rec, Fresh
}

func Encode[T any](rec Record[T]) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
