package model

import (
	"encoding/json"
	"fmt"
)

// ValueKind tags the shape held by a Value.
type ValueKind int

const (
	// KindText covers text, multiline, dropdown and image values: all are
	// strings on the wire, the owning field's type decides their meaning.
	KindText ValueKind = iota
	// KindLocation is a lon/lat coordinate pair.
	KindLocation
)

// Value is one entry of a record's value bag. The backend stores values as
// schema-free JSON; on this side each value is decoded into a closed set of
// shapes at the boundary where the owning Field's type is known.
type Value struct {
	Kind ValueKind
	Text string
	Lon  float64
	Lat  float64
}

// TextValue builds a string-shaped value.
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// LocationValue builds a coordinate value.
func LocationValue(lon, lat float64) Value {
	return Value{Kind: KindLocation, Lon: lon, Lat: lat}
}

// MarshalJSON writes the backend wire shape: a bare string for text-like
// values, a {"lon":..,"lat":..} object for locations.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindLocation:
		return json.Marshal(map[string]float64{"lon": v.Lon, "lat": v.Lat})
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON accepts either wire shape. Anything that is not a lon/lat
// object is kept as text; the backend does not enforce value shapes and
// neither does decoding. Numbers arrive as their literal text.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextValue(s)
		return nil
	}

	var loc struct {
		Lon *float64 `json:"lon"`
		Lat *float64 `json:"lat"`
	}
	if err := json.Unmarshal(data, &loc); err == nil && loc.Lon != nil && loc.Lat != nil {
		*v = LocationValue(*loc.Lon, *loc.Lat)
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("model: decode value: %w", err)
	}
	*v = TextValue(fmt.Sprintf("%v", raw))
	return nil
}

// Values is a record's value bag, keyed by field name. Keys are expected,
// but not enforced, to match the owning form's field names.
type Values map[string]Value

// Record is one data entry belonging to a Form.
type Record struct {
	ID     int    `json:"id"`
	FormID int    `json:"form_id"`
	Values Values `json:"values"`
}
