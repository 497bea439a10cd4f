package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tracker/internal/client/domain"
	"tracker/internal/client/ports/api"
)

// Ограничение на размер читаемого тела ответа.
const maxBodySize = 1 << 20

// Константы ошибок.
const (
	ErrorFailedToEncode   = "failed to encode request body"
	ErrorFailedToBuild    = "failed to build request"
	ErrorFailedToSend     = "failed to send request"
	ErrorFailedToDecode   = "failed to decode response body"
	ErrorFailedToReadBody = "failed to read response body"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrorFailedToEncode, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrorFailedToBuild, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// call отправляет запрос и декодирует JSON-ответ в out (если out не nil).
// Ответ вне 2xx превращается в *domain.APIError.
func call(doer api.Doer, req *http.Request, endpoint string, out any) error {
	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrorFailedToSend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s: %w", ErrorFailedToReadBody, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", ErrorFailedToDecode, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
