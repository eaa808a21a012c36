package offer

import (
	"strconv"
	"time"
)

// Timestamp is a point in time carried on the wire as an integer count
// of milliseconds since the Unix epoch, the format StoreKit expects.
type Timestamp time.Time

// NewTimestamp truncates t to millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(time.UnixMilli(t.UnixMilli()).UTC())
}

// MarshalJSON implements the json.Marshaler interface for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	millisec, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*t = Timestamp(time.UnixMilli(millisec).UTC())
	return nil
}

// UnixMilli returns the timestamp in milliseconds since the Unix epoch.
func (t Timestamp) UnixMilli() int64 {
	return time.Time(t).UnixMilli()
}

// Time returns the Timestamp as a standard time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// String returns the decimal millisecond value, as used in the signed payload.
func (t Timestamp) String() string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
