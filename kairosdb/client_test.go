package kairosdb_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"

	"github.com/SPCU/KairosDB/kairosdb"
	"github.com/SPCU/KairosDB/kairosdb/mock"
)

// recorder is a KairosDB stand-in that remembers the last request.
type recorder struct {
	status int
	body   string

	path   string
	header http.Header
	query  map[string]interface{}
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec.path = r.URL.Path
	rec.header = r.Header.Clone()

	data, _ := io.ReadAll(r.Body)
	rec.query = map[string]interface{}{}
	_ = json.Unmarshal(data, &rec.query)

	if rec.status != 0 {
		w.WriteHeader(rec.status)
	}
	_, _ = w.Write([]byte(rec.body))
}

func newServer(t *testing.T, rec *recorder) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return srv
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name     string
		req      kairosdb.QueryRequest
		response string
		want     string
		sent     string
	}{
		{
			name:     "name only",
			req:      kairosdb.NewQueryRequest("check1-metric"),
			response: `{"queries":[{"results":[1,2]}]}`,
			want:     `{"results":[1,2]}`,
			sent:     `{"start_relative":{"value":-5,"unit":"seconds"},"metrics":[{"name":"check1-metric"}]}`,
		},
		{
			name:     "tags",
			req:      kairosdb.NewQueryRequest("check1-metric", kairosdb.WithTags(map[string][]string{"application_id": {"my-app"}})),
			response: `{"queries":[{"results":[1,2,3]}]}`,
			want:     `{"results":[1,2,3]}`,
			sent:     `{"start_relative":{"value":-5,"unit":"seconds"},"metrics":[{"name":"check1-metric","tags":{"application_id":["my-app"]}}]}`,
		},
		{
			name:     "aggregators",
			req:      kairosdb.NewQueryRequest("check1-metric", kairosdb.WithAggregators(kairosdb.Aggregator{"name": "sum"})),
			response: `{"queries":[{"results":[1,2,3,4]}]}`,
			want:     `{"results":[1,2,3,4]}`,
			sent:     `{"start_relative":{"value":-5,"unit":"seconds"},"metrics":[{"name":"check1-metric","aggregators":[{"name":"sum"}]}]}`,
		},
		{
			name: "start and unit",
			req: kairosdb.NewQueryRequest("check1-metric",
				kairosdb.WithAggregators(kairosdb.Aggregator{"name": "sum"}),
				kairosdb.WithStart(1),
				kairosdb.WithTimeUnit("hours")),
			response: `{"queries":[{"results":[1,2,3,4,5,6,7,8]},{"results":[9]}]}`,
			want:     `{"results":[1,2,3,4,5,6,7,8]}`,
			sent:     `{"start_relative":{"value":1,"unit":"hours"},"metrics":[{"name":"check1-metric","aggregators":[{"name":"sum"}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{body: tt.response}
			srv := newServer(t, rec)

			cli, err := kairosdb.New(srv.URL)
			require.NoError(t, err)

			result, err := cli.Query(context.Background(), tt.req)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(result))

			sent, err := json.Marshal(rec.query)
			require.NoError(t, err)
			assert.JSONEq(t, tt.sent, string(sent))
			assert.Equal(t, "/"+kairosdb.DatapointsEndpoint, rec.path)
			assert.Equal(t, "application/json", rec.header.Get("Content-Type"))
			assert.Empty(t, rec.header.Get("Authorization"))
		})
	}
}

func TestURL(t *testing.T) {
	cli, err := kairosdb.New("http://kairosdb")
	require.NoError(t, err)
	assert.Equal(t, "http://kairosdb/api/v1/datapoints/query", cli.URL())
}

func TestQueryUnsuccessfulStatus(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		rec := &recorder{status: status, body: `{"queries":[{"results":[1,2]}]}`}
		srv := newServer(t, rec)

		cli, err := kairosdb.New(srv.URL)
		require.NoError(t, err)

		result, err := cli.Query(context.Background(), kairosdb.NewQueryRequest("check1-metric"))
		require.Error(t, err)
		assert.Nil(t, result)

		var httpErr *kairosdb.HttpError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, status, httpErr.StatusCode)
	}
}

func TestQueryConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cli, err := kairosdb.New(url)
	require.NoError(t, err)

	_, err = cli.Query(context.Background(), kairosdb.NewQueryRequest("check1-metric"))
	require.Error(t, err)
	assert.True(t, kairosdb.IsHttpError(err))
}

func TestQueryTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	cli, err := kairosdb.New(srv.URL, kairosdb.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	require.NoError(t, err)

	_, err = cli.Query(context.Background(), kairosdb.NewQueryRequest("check1-metric"))
	require.Error(t, err)
	assert.True(t, kairosdb.IsHttpError(err))
}

func TestQueryCanceledContext(t *testing.T) {
	srv := newServer(t, &recorder{body: `{"queries":[{}]}`})

	cli, err := kairosdb.New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = cli.Query(ctx, kairosdb.NewQueryRequest("check1-metric"))
	var httpErr *kairosdb.HttpError
	require.True(t, errors.As(err, &httpErr))
	assert.Zero(t, httpErr.StatusCode)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestQueryMissingQueries(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"queries":[]}`,
		`not json`,
		`{"queries":[{"results":[1,2]}]`,
		`{"queries":[{"results":[1,2]}]} trailing garbage`,
	}
	for _, body := range bodies {
		srv := newServer(t, &recorder{body: body})

		cli, err := kairosdb.New(srv.URL)
		require.NoError(t, err)

		_, err = cli.Query(context.Background(), kairosdb.NewQueryRequest("check1-metric"))
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, kairosdb.ErrNoQueries), body)
		assert.False(t, kairosdb.IsHttpError(err), body)
	}
}

func TestOAuth2(t *testing.T) {
	ctrl := gomock.NewController(t)

	tokens := mock.NewMockTokenProvider(ctrl)
	tokens.EXPECT().Token().Return("123", nil).Times(1)

	rec := &recorder{body: `{"queries":[{"results":[]}]}`}
	srv := newServer(t, rec)

	cli, err := kairosdb.New(srv.URL, kairosdb.WithOAuth2(tokens))
	require.NoError(t, err)
	assert.Equal(t, "Bearer 123", cli.Header().Get("Authorization"))

	// The token is fetched once and reused.
	for i := 0; i < 2; i++ {
		_, err = cli.Query(context.Background(), kairosdb.NewQueryRequest("check1-metric"))
		require.NoError(t, err)
		assert.Equal(t, "Bearer 123", rec.header.Get("Authorization"))
	}
}

func TestOAuth2TokenError(t *testing.T) {
	boom := errors.New("token service unavailable")

	cli, err := kairosdb.New("http://kairosdb", kairosdb.WithOAuth2(kairosdb.TokenProviderFunc(func() (string, error) {
		return "", boom
	})))
	require.Error(t, err)
	assert.Nil(t, cli)
	assert.True(t, errors.Is(err, boom))
	assert.False(t, kairosdb.IsHttpError(err))
}

func TestOAuth2TokenSource(t *testing.T) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})

	cli, err := kairosdb.New("http://kairosdb", kairosdb.WithOAuth2(kairosdb.OAuth2TokenProvider{Source: src}))
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", cli.Header().Get("Authorization"))
}

func TestHeaderIsCopy(t *testing.T) {
	cli, err := kairosdb.New("http://kairosdb", kairosdb.WithOAuth2(kairosdb.TokenProviderFunc(func() (string, error) {
		return "123", nil
	})))
	require.NoError(t, err)

	h := cli.Header()
	h.Set("Authorization", "Bearer other")
	assert.Equal(t, "Bearer 123", cli.Header().Get("Authorization"))
}
