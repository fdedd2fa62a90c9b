// Package value implements the runtime value model: plain JSON-style Go data
// (string, float64, bool, map[string]any, []any) plus qualifier-path
// navigation into structured values.
package value

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Path is a qualifier path: an ordered list of segments, each either an
// object property name or a non-negative list index.
type Path []string

// String serializes the path into its canonical dotted representation.
func (p Path) String() string {
	out := ""
	for i, seg := range p {
		if i > 0 {
			out += "."
		}
		out += seg
	}
	return out
}

// ShapeOf describes a value's shape for diagnostics: "object", "list",
// "string", "number", "bool", or "null".
func ShapeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Navigate walks a qualifier path into a structured value. Object properties
// are walked by name, lists by index or by one of the collection qualifiers
// (sort, unique, sum, avg, min, max). The returned error names the failing
// path and the shape of the value the walk stopped at.
func Navigate(base any, path Path) (any, error) {
	current := base
	for i, seg := range path {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("qualifier '%s' has no segment '%s' in %s value", path.String(), seg, ShapeOf(v))
			}
			current = next
		case []any:
			if out, handled, err := applyListQualifier(seg, v); handled {
				if err != nil {
					return nil, fmt.Errorf("qualifier '%s': %v", path.String(), err)
				}
				current = out
				continue
			}
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("qualifier '%s' needs a numeric index or collection qualifier for a list value, got '%s'", path.String(), seg)
			}
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("qualifier '%s' index %d is out of range for a list of %d", path.String(), idx, len(v))
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("qualifier '%s' cannot descend into a %s value at segment %d", path.String(), ShapeOf(current), i)
		}
	}
	return current, nil
}

// applyListQualifier evaluates a collection qualifier segment on a list.
// The second return reports whether the segment named a qualifier at all.
func applyListQualifier(name string, list []any) (any, bool, error) {
	switch name {
	case "sort":
		out, err := sorted(list)
		return out, true, err
	case "unique":
		out := make([]any, 0, len(list))
		for _, item := range list {
			seen := false
			for _, kept := range out {
				if Equal(kept, item) {
					seen = true
					break
				}
			}
			if !seen {
				out = append(out, item)
			}
		}
		return out, true, nil
	case "sum", "avg":
		nums, err := numbers(list, name)
		if err != nil {
			return nil, true, err
		}
		total := 0.0
		for _, n := range nums {
			total += n
		}
		if name == "sum" {
			return total, true, nil
		}
		if len(nums) == 0 {
			return nil, true, fmt.Errorf("cannot take 'avg' of an empty list")
		}
		return total / float64(len(nums)), true, nil
	case "min", "max":
		if len(list) == 0 {
			return nil, true, fmt.Errorf("cannot take '%s' of an empty list", name)
		}
		out, err := sorted(list)
		if err != nil {
			return nil, true, err
		}
		ordered := out.([]any)
		if name == "min" {
			return ordered[0], true, nil
		}
		return ordered[len(ordered)-1], true, nil
	}
	return nil, false, nil
}

// sorted returns an ascending copy of the list. Numbers order numerically,
// strings lexically; mixed or unorderable lists error.
func sorted(list []any) (any, error) {
	out := make([]any, len(list))
	copy(out, list)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if a, ok := asFloat(out[i]); ok {
			if b, ok := asFloat(out[j]); ok {
				return a < b
			}
		}
		if a, ok := out[i].(string); ok {
			if b, ok := out[j].(string); ok {
				return a < b
			}
		}
		if sortErr == nil {
			sortErr = fmt.Errorf("cannot order %s and %s values", ShapeOf(out[i]), ShapeOf(out[j]))
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}

func numbers(list []any, qualifier string) ([]float64, error) {
	out := make([]float64, 0, len(list))
	for _, item := range list {
		n, ok := asFloat(item)
		if !ok {
			return nil, fmt.Errorf("'%s' needs a numeric list, found a %s element", qualifier, ShapeOf(item))
		}
		out = append(out, n)
	}
	return out, nil
}

// Equal reports observational equality between two runtime values. Numeric
// values compare by magnitude regardless of Go type.
func Equal(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// IdentityKey extracts the identity of an entity value: the "id" field of an
// object, rendered as a string. Values without an identity return ok=false.
func IdentityKey(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := obj["id"]
	if !ok {
		return "", false
	}
	switch k := id.(type) {
	case string:
		return k, true
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64), true
	case int:
		return strconv.Itoa(k), true
	default:
		return fmt.Sprintf("%v", k), true
	}
}

// CloneObject makes a shallow copy of an object value. Used by copy-on-write
// mutators so a failed transition leaves the original untouched.
func CloneObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}
