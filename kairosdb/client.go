package kairosdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/buger/jsonparser"

	spculog "github.com/SPCU/Libraries/log"
)

// DatapointsEndpoint is the query path relative to the base URL.
const DatapointsEndpoint = "api/v1/datapoints/query"

var log, _ = spculog.NewLogger(spculog.SpcuLoggerConfig{})

// QueryResult is the raw JSON of the first element of a response's queries.
type QueryResult = json.RawMessage

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient    *http.Client
	tokenProvider TokenProvider
}

// WithHTTPClient sets the HTTP client used for requests. Timeouts and
// transport settings are taken from it as is.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithOAuth2 makes New fetch a token from p and send it as a bearer token.
func WithOAuth2(p TokenProvider) Option {
	return func(o *clientOptions) { o.tokenProvider = p }
}

// Client queries a KairosDB instance. It is meant for sequential use;
// concurrent callers should use one Client each.
type Client struct {
	url     string
	session *session
}

// New creates a Client for baseURL. The only network call it may make is
// the token fetch requested by WithOAuth2.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		url:     baseURL + "/" + DatapointsEndpoint,
		session: newSession(o.httpClient),
	}

	if o.tokenProvider != nil {
		token, err := o.tokenProvider.Token()
		if err != nil {
			return nil, fmt.Errorf("kairosdb: get token: %w", err)
		}
		c.session.headers.Set("Authorization", "Bearer "+token)
	}

	return c, nil
}

// URL returns the endpoint queries are POSTed to.
func (c *Client) URL() string {
	return c.url
}

// Header returns a copy of the headers sent with every request.
func (c *Client) Header() http.Header {
	return c.session.headers.Clone()
}

// Query runs req and returns the first query result verbatim. Every
// transport failure and every unsuccessful status is reported as *HttpError.
func (c *Client) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	doc := BuildQuery(req)

	resp, err := c.session.postJSON(ctx, c.url, doc)
	if err != nil {
		log.Warn(err)
		return nil, &HttpError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			log.Warn(err)
		}
		err := &HttpError{StatusCode: resp.StatusCode}
		log.Warn(err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn(err)
		return nil, &HttpError{StatusCode: resp.StatusCode, Err: err}
	}

	return firstQuery(body)
}

// firstQuery extracts queries[0] from a response body. The whole body
// must be valid JSON.
func firstQuery(body []byte) (QueryResult, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response body is not valid JSON", ErrNoQueries)
	}
	value, dataType, _, err := jsonparser.Get(body, "queries", "[0]")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoQueries, err)
	}
	if dataType == jsonparser.String {
		// jsonparser strips the quotes of string values
		value = append(append([]byte{'"'}, value...), '"')
	}
	return value, nil
}
