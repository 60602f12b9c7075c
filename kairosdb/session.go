package kairosdb

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "spcudata"
)

// session keeps the HTTP client and the headers sent with every request.
type session struct {
	httpClient *http.Client
	headers    http.Header
}

func newSession(httpClient *http.Client) *session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &session{
		httpClient: httpClient,
		headers:    http.Header{},
	}
}

// postJSON encodes v and POSTs it to url. The caller closes the response body.
func (s *session) postJSON(ctx context.Context, url string, v interface{}) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return s.httpClient.Do(req)
}
