package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Text is a string decoded from loosely typed JSON. Strings are kept as-is,
// numbers and booleans keep their literal text, objects contribute their
// "name", "text" or "@value" member and arrays are joined with ", ".
type Text string

// String returns the decoded text.
func (t Text) String() string {
	return string(t)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	s, err := textFromJSON(data)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

var textObjectKeys = []string{"name", "text", "@value"}

func textFromJSON(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("decode text: %w", err)
		}
		return s, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return "", fmt.Errorf("decode text list: %w", err)
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			s, err := textFromJSON(item)
			if err != nil {
				return "", err
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("decode text object: %w", err)
		}
		for _, key := range textObjectKeys {
			if raw, ok := obj[key]; ok {
				return textFromJSON(raw)
			}
		}
		return "", nil
	default:
		if !json.Valid(data) {
			return "", fmt.Errorf("decode text: invalid literal %q", data)
		}
		return string(data), nil
	}
}

// TextList decodes either a single loose value or an array of them.
type TextList []Text

// UnmarshalJSON implements json.Unmarshaler.
func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] != '[' {
		var single Text
		if err := single.UnmarshalJSON(data); err != nil {
			return err
		}
		*l = TextList{single}
		return nil
	}
	var items []Text
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode text list: %w", err)
	}
	*l = items
	return nil
}

// Documents keeps each element of a JSON array verbatim. A single non-array
// value becomes a one-element list.
type Documents []json.RawMessage

// UnmarshalJSON implements json.Unmarshaler.
func (d *Documents) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = nil
		return nil
	}
	if data[0] != '[' {
		*d = Documents{append(json.RawMessage(nil), data...)}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode documents: %w", err)
	}
	*d = items
	return nil
}

// TextMap decodes a JSON object of loose values. Any other JSON value,
// such as an empty string in place of the object, decodes to an empty map.
type TextMap map[string]Text

// UnmarshalJSON implements json.Unmarshaler.
func (m *TextMap) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*m = TextMap{}
		return nil
	}
	var values map[string]Text
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode text map: %w", err)
	}
	*m = values
	return nil
}
