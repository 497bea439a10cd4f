// Package api реализует клиентов REST API трекера поверх net/http.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// tokenField принимает токен в каноническом виде {"token": "...", "expires": "..."}
// или старой строкой.
type tokenField struct {
	Token   string
	Expires time.Time
}

type tokenObject struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// UnmarshalJSON реализует json.Unmarshaler.
func (f *tokenField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.Token)
	}

	var obj tokenObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unsupported token format: %w", err)
	}
	f.Token = obj.Token
	f.Expires = obj.Expires
	return nil
}

// tokenResponse - тело ответа с токенами (вход, регистрация, обновление).
type tokenResponse struct {
	AccessToken  tokenField `json:"accessToken"`
	RefreshToken tokenField `json:"refreshToken"`
}
