package xmlrpc

import (
	"errors"
	"fmt"
	"strconv"
)

// Query extracts typed values from a Value tree. The first error sticks and
// turns all following accesses into no-ops, so a whole struct can be read
// before checking Err once.
type Query struct {
	value *Value
	err   *error
	// lookup cache for structs
	lookup map[string]*Query
	// cache for arrays
	array []*Query
}

// Q creates a Query for a Value.
func Q(v *Value) *Query {
	var err error
	return &Query{value: v, err: &err}
}

// Err returns the first encountered error.
func (q *Query) Err() error {
	return *q.err
}

// Int reads an int or i4 value.
func (q *Query) Int() (i int) {
	if q.Err() != nil || q.value == nil {
		return
	}
	var s string
	switch {
	case q.value.I4 != "":
		s = q.value.I4
	case q.value.Int != "":
		s = q.value.Int
	default:
		*q.err = errors.New("Not an int")
		return
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		*q.err = fmt.Errorf("Invalid int: %s", s)
		return
	}
	return
}

// Bool reads a boolean value.
func (q *Query) Bool() bool {
	if q.Err() != nil || q.value == nil {
		return false
	}
	switch q.value.Boolean {
	case "0":
		return false
	case "1":
		return true
	default:
		*q.err = errors.New("Not a bool or invalid")
		return false
	}
}

// String reads a string value, in either the tagged or the bare variant.
func (q *Query) String() string {
	if q.Err() != nil || q.value == nil {
		return ""
	}
	if q.value.String != "" {
		return q.value.String
	}
	if q.value.Boolean != "" || q.value.I4 != "" || q.value.Int != "" || q.value.Double != "" ||
		q.value.Base64 != "" || q.value.DateTime != "" || q.value.Array != nil || q.value.Struct != nil {
		*q.err = errors.New("Not a string")
	}
	return q.value.FlatString
}

func (q *Query) allZero() bool {
	return q.value.Boolean == "" && q.value.I4 == "" && q.value.Int == "" && q.value.Double == "" &&
		q.value.String == "" && q.value.FlatString == "" && q.value.Base64 == "" &&
		q.value.DateTime == "" && q.value.Array == nil && q.value.Struct == nil
}

// IsEmpty reports whether there is no previous error and the value is empty.
// An empty value can also be read as an empty string.
func (q *Query) IsEmpty() bool {
	if q.Err() != nil {
		return false
	}
	if q.value == nil {
		return true
	}
	return q.allZero()
}

// IsNotEmpty reports whether there is no previous error and the value is not
// empty.
func (q *Query) IsNotEmpty() bool {
	if q.Err() != nil || q.value == nil {
		return false
	}
	return !q.allZero()
}

// Float64 reads a double value.
func (q *Query) Float64() float64 {
	if q.Err() != nil || q.value == nil {
		return 0
	}
	if q.value.Double == "" {
		*q.err = errors.New("Not a double")
		return 0
	}
	d, err := strconv.ParseFloat(q.value.Double, 64)
	if err != nil {
		*q.err = fmt.Errorf("Invalid double: %s", q.value.Double)
		return 0
	}
	return d
}

// Any returns an int, bool, float64, string or nil for an empty optional.
func (q *Query) Any() interface{} {
	if q.Err() != nil || q.value == nil {
		return nil
	}
	switch {
	case q.value.I4 != "" || q.value.Int != "":
		return q.Int()
	case q.value.Boolean != "":
		return q.Bool()
	case q.value.Double != "":
		return q.Float64()
	}
	return q.String()
}

// Map returns all members of a struct.
func (q *Query) Map() map[string]*Query {
	if q.Err() != nil || q.value == nil {
		return nil
	}
	if q.lookup != nil {
		return q.lookup
	}
	s := q.value.Struct
	if s == nil {
		*q.err = errors.New("Not a struct")
		return nil
	}
	q.lookup = make(map[string]*Query)
	for _, m := range s.Members {
		q.lookup[m.Name] = &Query{value: m.Value, err: q.err}
	}
	return q.lookup
}

func (q *Query) member(name string, must bool) *Query {
	m := q.Map()
	if q.Err() != nil {
		return &Query{err: q.err}
	}
	f, ok := m[name]
	if !ok {
		if must {
			*q.err = fmt.Errorf("Field not found: %s", name)
		}
		return &Query{err: q.err}
	}
	return f
}

// Key returns a struct member, a missing member is an error.
func (q *Query) Key(name string) *Query {
	return q.member(name, true)
}

// TryKey returns a struct member, a missing member stays empty.
func (q *Query) TryKey(name string) *Query {
	return q.member(name, false)
}

// Slice returns all array elements.
func (q *Query) Slice() []*Query {
	if q.Err() != nil || q.value == nil {
		return nil
	}
	if q.array != nil {
		return q.array
	}
	a := q.value.Array
	if a == nil {
		*q.err = errors.New("Not an array")
		return nil
	}
	q.array = make([]*Query, len(a.Data))
	for i, v := range a.Data {
		q.array[i] = &Query{value: v, err: q.err}
	}
	return q.array
}

// Strings returns a string array.
func (q *Query) Strings() []string {
	if q.Err() != nil || q.value == nil {
		return nil
	}
	var r []string
	for _, e := range q.Slice() {
		r = append(r, e.String())
	}
	if q.Err() != nil {
		return nil
	}
	return r
}

// Idx returns the array element at i.
func (q *Query) Idx(i int) *Query {
	s := q.Slice()
	if q.Err() != nil {
		return &Query{err: q.err}
	}
	if i < 0 || i >= len(s) {
		*q.err = fmt.Errorf("Index out of bounds (array length: %d): %d", len(s), i)
		return &Query{err: q.err}
	}
	return s[i]
}

// Value returns the wrapped Value.
func (q *Query) Value() *Value {
	return q.value
}
