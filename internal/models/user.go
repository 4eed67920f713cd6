package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserID identifies a user. The backend sends it as a JSON number or a string.
type UserID string

// UnmarshalJSON accepts both numeric and string ids
func (id *UserID) UnmarshalJSON(data []byte) error {
	var v flexibleID
	if err := v.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(v)
	return nil
}

// flexibleID is an id the backend may send as a JSON number or a string
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

// UserSummary is the display identity embedded in rooms and messages
type UserSummary struct {
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
