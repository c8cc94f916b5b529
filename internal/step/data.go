package step

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DataPoint is a named slot in Data. Two data points are equal when
// their names are equal.
type DataPoint struct {
	Name string
}

// Point returns the DataPoint with the given name.
func Point(name string) DataPoint {
	return DataPoint{Name: name}
}

// placeholder returns the {{name}} token that Interpolate substitutes.
func (p DataPoint) placeholder() string {
	return "{{" + p.Name + "}}"
}

// String implements fmt.Stringer.
func (p DataPoint) String() string {
	return p.Name
}

// Data is the immutable key/value context threaded from a trigger into
// its action. The zero value is an empty Data.
//
// Data is never modified in place: With returns a new value, and the map
// handed to NewData is copied.
type Data struct {
	values map[DataPoint]string
}

// NewData builds Data from a map of values. The map is copied.
func NewData(values map[DataPoint]string) Data {
	cp := make(map[DataPoint]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Data{values: cp}
}

// DataOf builds Data from name/value pairs.
//
//	step.DataOf("sender", "+441234", "message", "hi")
func DataOf(pairs ...string) Data {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("step.DataOf: odd number of arguments (%d)", len(pairs)))
	}
	values := make(map[DataPoint]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		values[Point(pairs[i])] = pairs[i+1]
	}
	return Data{values: values}
}

// Get returns the value stored for p.
func (d Data) Get(p DataPoint) (string, bool) {
	v, ok := d.values[p]
	return v, ok
}

// With returns a copy of d with p set to value.
func (d Data) With(p DataPoint, value string) Data {
	cp := make(map[DataPoint]string, len(d.values)+1)
	for k, v := range d.values {
		cp[k] = v
	}
	cp[p] = value
	return Data{values: cp}
}

// Len returns the number of values.
func (d Data) Len() int {
	return len(d.values)
}

// Values returns a copy of the values keyed by data point name.
func (d Data) Values() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k.Name] = v
	}
	return out
}

// Equal reports whether d and other hold the same values.
func (d Data) Equal(other Data) bool {
	if len(d.values) != len(other.values) {
		return false
	}
	for k, v := range d.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Interpolate replaces every {{name}} token in pattern whose name is
// present in d with its value. Tokens naming absent data points are left
// untouched.
//
// Substitution is a single pass over the pattern, so the result does not
// depend on map iteration order and values containing {{...}} are never
// expanded a second time.
func (d Data) Interpolate(pattern string) string {
	if len(d.values) == 0 || !strings.Contains(pattern, "{{") {
		return pattern
	}

	// Longest token first so that a name which is a prefix of another
	// never shadows it.
	tokens := make([]string, 0, len(d.values))
	for k := range d.values {
		tokens = append(tokens, k.placeholder())
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	oldnew := make([]string, 0, len(tokens)*2)
	for _, tok := range tokens {
		name := tok[2 : len(tok)-2]
		oldnew = append(oldnew, tok, d.values[Point(name)])
	}
	return strings.NewReplacer(oldnew...).Replace(pattern)
}

// MarshalJSON encodes d as a JSON object of string to string.
func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Values())
}

// UnmarshalJSON decodes a JSON object of string to string.
func (d *Data) UnmarshalJSON(b []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decoding step data: %w", err)
	}
	values := make(map[DataPoint]string, len(raw))
	for k, v := range raw {
		values[Point(k)] = v
	}
	d.values = values
	return nil
}
