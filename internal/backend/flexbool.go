package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexBool accepts the boolean encodings the backend has shipped over time:
// true/false, 0/1, "0"/"1", "true"/"false".
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*b = false
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ToLower(s))
		*b = FlexBool(s == "1" || s == "true" || s == "yes")
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*b = FlexBool(n != 0)
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// Bool returns the normalized value.
func (b FlexBool) Bool() bool { return bool(b) }
