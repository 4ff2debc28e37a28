package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind is the dynamic type carried by an AnswerValue.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	default:
		return "absent"
	}
}

// AnswerValue is a string, number, boolean or list of strings.
// The zero value is absent.
type AnswerValue struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

// StringValue returns a string answer.
func StringValue(s string) AnswerValue { return AnswerValue{kind: KindString, str: s} }

// NumberValue returns a numeric answer.
func NumberValue(n float64) AnswerValue { return AnswerValue{kind: KindNumber, num: n} }

// BoolValue returns a boolean answer.
func BoolValue(b bool) AnswerValue { return AnswerValue{kind: KindBool, b: b} }

// ListValue returns a multiple-choice answer. The slice is copied.
func ListValue(items ...string) AnswerValue {
	return AnswerValue{kind: KindList, list: append([]string{}, items...)}
}

// Kind returns the dynamic type of v.
func (v AnswerValue) Kind() ValueKind { return v.kind }

// Str returns the string payload and whether v is a string.
func (v AnswerValue) Str() (string, bool) { return v.str, v.kind == KindString }

// Number returns the numeric payload and whether v is a number.
func (v AnswerValue) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean payload and whether v is a boolean.
func (v AnswerValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// List returns a copy of the list payload and whether v is a list.
func (v AnswerValue) List() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return append([]string{}, v.list...), true
}

// Len returns the number of items in a list answer, 0 otherwise.
func (v AnswerValue) Len() int {
	if v.kind != KindList {
		return 0
	}
	return len(v.list)
}

// IsPresent reports whether v counts as an answer for the required-field gate.
// Empty strings and empty lists are absent; false and 0 are legitimate answers.
func (v AnswerValue) IsPresent() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindList:
		return len(v.list) > 0
	case KindNumber, KindBool:
		return true
	default:
		return false
	}
}

// Equal reports whether two answers carry the same value.
func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Interface returns the value as a plain Go value (string, float64, bool, []string or nil).
func (v AnswerValue) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		return append([]string{}, v.list...)
	default:
		return nil
	}
}

// String renders the value for display.
func (v AnswerValue) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		if v.b {
			return "Yes"
		}
		return "No"
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its natural JSON type.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.kind == KindList && v.list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a JSON string, number, boolean, array of strings or null.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = AnswerValue{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("list answers must contain only strings: %w", err)
		}
		*v = ListValue(items...)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported answer value %s", string(data))
		}
		*v = NumberValue(n)
	}
	return nil
}

// Answer is one stored response, keyed by question id.
type Answer struct {
	QuestionID string      `json:"questionId" validate:"required"`
	Answer     AnswerValue `json:"answer"`
}
