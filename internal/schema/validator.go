// Package schema validates record value bags against a form's field
// definitions and decodes raw wire values into typed ones at the boundary
// where the owning field's type is known.
package schema

import (
	"strconv"

	"github.com/formbase/formbase-go/model"
)

// Validation messages.
const (
	MsgRequired     = "Required"
	MsgMustBeNumber = "Must be a number"
	MsgMustBeOption = "Must be one of the options"
	MsgMustBeCoords = "Must be a location"
)

// Validate checks a raw values bag against a form's fields and returns a
// mapping from field name to error message for every violated constraint.
// An empty result signals success. Synchronous, no side effects.
func Validate(fields []model.Field, values map[string]any) map[string]string {
	errs := make(map[string]string)

	for _, f := range fields {
		v := values[f.Name]

		if isEmpty(v) {
			if f.Required {
				errs[f.Name] = MsgRequired
			}
			continue
		}

		if f.IsNum && !isNumeric(v) {
			errs[f.Name] = MsgMustBeNumber
			continue
		}

		switch f.Type {
		case model.FieldDropdown:
			if opts := f.DropdownOptions(); len(opts) > 0 && !contains(opts, asString(v)) {
				errs[f.Name] = MsgMustBeOption
			}
		case model.FieldLocation:
			if !isLocation(v) {
				errs[f.Name] = MsgMustBeCoords
			}
		}
	}

	return errs
}

// DecodeValues converts a raw values bag into the typed bag, using the field
// definitions to pick each value's shape. Keys without a matching field are
// kept as text; the backend does not enforce value shapes.
func DecodeValues(fields []model.Field, raw map[string]any) model.Values {
	types := make(map[string]model.FieldType, len(fields))
	for _, f := range fields {
		types[f.Name] = f.Type
	}

	values := make(model.Values, len(raw))
	for name, v := range raw {
		if types[name] == model.FieldLocation {
			if lon, lat, ok := asLocation(v); ok {
				values[name] = model.LocationValue(lon, lat)
				continue
			}
		}
		values[name] = model.TextValue(asString(v))
	}
	return values
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case model.Value:
		return x.Kind == model.KindText && x.Text == ""
	}
	return false
}

// isNumeric mirrors a loose numeric parse: strings must parse as a float,
// actual numbers always pass.
func isNumeric(v any) bool {
	switch x := v.(type) {
	case float64, float32, int, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(x, 64)
		return err == nil
	case model.Value:
		if x.Kind != model.KindText {
			return false
		}
		_, err := strconv.ParseFloat(x.Text, 64)
		return err == nil
	}
	return false
}

func isLocation(v any) bool {
	_, _, ok := asLocation(v)
	return ok
}

func asLocation(v any) (lon, lat float64, ok bool) {
	switch x := v.(type) {
	case map[string]any:
		lonV, lonOK := asFloat(x["lon"])
		latV, latOK := asFloat(x["lat"])
		if lonOK && latOK {
			return lonV, latV, true
		}
	case model.Value:
		if x.Kind == model.KindLocation {
			return x.Lon, x.Lat, true
		}
	}
	return 0, 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case model.Value:
		return x.Text
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
