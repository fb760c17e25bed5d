package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/8b-is/feedgate/internal/api/presenter"
)

// ErrInvalidSession is returned when the server rejects the session token as
// expired or invalid. Logging in again fixes it.
var ErrInvalidSession = errors.New("invalid session token")

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 16 << 10

// APIError is a non-2xx answer carrying the server's error body.
type APIError struct {
	StatusCode    int
	CorrelationID string
	Message       string

	// RetryAfter is set for rate limited responses.
	RetryAfter time.Duration
}

func (e APIError) Error() string {
	return fmt.Sprintf("api error: '%s' (status %d, correlation: %s)", e.Message, e.StatusCode, e.CorrelationID)
}

func (c *Client) get(ctx context.Context, url string, result any) (string, error) {
	return c.send(ctx, http.MethodGet, url, nil, result)
}

func (c *Client) post(ctx context.Context, url string, payload, result any) (string, error) {
	return c.send(ctx, http.MethodPost, url, payload, result)
}

func (c *Client) delete(ctx context.Context, url string, result any) (string, error) {
	return c.send(ctx, http.MethodDelete, url, nil, result)
}

// send performs the request and decodes a 2xx body into result (if non-nil).
// It returns the correlation id of the response even on failure.
func (c *Client) send(ctx context.Context, method, url string, payload, result any) (string, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshaling payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	correlation := resp.Header.Get("X-Correlation-ID")
	if resp.StatusCode >= http.StatusBadRequest {
		return correlation, decodeError(resp)
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return correlation, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return correlation, fmt.Errorf("decoding response: %w", err)
	}
	return correlation, nil
}

func decodeError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("request failed with status %d and unreadable body: %w", resp.StatusCode, err)
	}

	var body presenter.ErrorResponse
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		return fmt.Errorf("api error: *unparsed '%s' (status %d)", string(raw), resp.StatusCode)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		switch body.Error {
		case "token has expired", "invalid token":
			return fmt.Errorf("%w: %s", ErrInvalidSession, body.Error)
		}
	}

	apiErr := APIError{
		StatusCode:    resp.StatusCode,
		CorrelationID: body.CorrelationID,
		Message:       body.Error,
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}
