package engine

import "fmt"

// Result is the optional value passed from the most recently executed operation
// to the next one. The zero Result is absent.
type Result struct {
	value Value
}

// None returns an absent Result.
func None() Result {
	return Result{}
}

// Some wraps v in a present Result. A nil v yields None.
func Some(v Value) Result {
	return Result{value: v}
}

// IsNone reports whether no value is present.
func (r Result) IsNone() bool {
	return r.value == nil
}

// Value returns the wrapped value, or nil if absent.
func (r Result) Value() Value {
	return r.value
}

// KitID returns the wrapped KitID, if that is what the result holds.
func (r Result) KitID() (KitID, bool) {
	id, ok := r.value.(KitID)
	return id, ok
}

// Fields returns the wrapped Fields, if that is what the result holds.
func (r Result) Fields() (Fields, bool) {
	f, ok := r.value.(Fields)
	return f, ok
}

// String implements fmt.Stringer.
func (r Result) String() string {
	switch v := r.value.(type) {
	case nil:
		return "none"
	case KitID:
		return "kit:" + string(v)
	case Fields:
		return "fields:" + v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// kind names the shape of the result for error messages.
func (r Result) kind() string {
	switch r.value.(type) {
	case nil:
		return "none"
	case KitID:
		return "kit id"
	case Fields:
		return "fields"
	default:
		return fmt.Sprintf("%T", r.value)
	}
}
