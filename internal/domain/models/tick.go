package models

import (
	"bytes"
	"encoding/json"
	"strconv"

	"TickChart/pkg/util"
)

// Tick is a single normalized trade observation.
type Tick struct {
	Timestamp int64   `json:"timestamp"` // unix seconds
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
}

// RawTick is one item of a tick payload as delivered by the data source.
// Any field may be missing or null; normalization decides what survives.
type RawTick struct {
	Date             FlexString `json:"date"`
	TimeOfDay        FlexString `json:"timeOfDay"`
	Identifier       Identifier `json:"identifier"`
	Price            Decimal    `json:"price"`
	PercentageChange Decimal    `json:"percentageChange"`
	Volume           Decimal    `json:"volume"`
}

// RawPayload is the tick payload for one security.
type RawPayload struct {
	Identifier Identifier `json:"identifier"`
	Count      int        `json:"count"`
	Items      []*RawTick `json:"items"`
}

// FlexString decodes a JSON string or number into its string form. null decodes to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// Identifier names a security. Sources send it as a string ("005930") or a number.
type Identifier string

func (id *Identifier) UnmarshalJSON(b []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	*id = Identifier(s)
	return nil
}

func (id Identifier) String() string { return string(id) }

// Decimal is a nullable number that also accepts numeric strings.
// Values that cannot be read as a number decode as not Valid instead of failing
// the whole payload.
type Decimal struct {
	Value float64
	Valid bool
}

// NewDecimal returns a valid Decimal.
func NewDecimal(v float64) Decimal { return Decimal{Value: v, Valid: true} }

func (d *Decimal) UnmarshalJSON(b []byte) error {
	*d = Decimal{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if v, ok := util.ParseDecimal(s); ok {
			*d = NewDecimal(v)
		}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return nil
	}
	*d = NewDecimal(v)
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value)
}
