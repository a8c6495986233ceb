package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, req gqlRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, req gqlRequest) {
		assert.Equal(t, "fullmetal", req.Variables["search"])
		assert.EqualValues(t, 1, req.Variables["page"])
		_, _ = w.Write([]byte(`{"data":{"Page":{
			"pageInfo":{"total":1,"currentPage":1,"lastPage":1,"hasNextPage":false,"perPage":20},
			"media":[{"id":5114,"title":{"romaji":"Hagane no Renkinjutsushi: FULLMETAL ALCHEMIST","english":"Fullmetal Alchemist: Brotherhood"},
				"coverImage":{"large":"https://img.example/5114.jpg"},"averageScore":90,"genres":["Action"],"status":"FINISHED","episodes":64}]
		}}}`))
	})

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	res, err := c.Search(context.Background(), "fullmetal", 0, 0)
	require.NoError(t, err)
	require.Len(t, res.Media, 1)

	a := res.Media[0]
	assert.EqualValues(t, 5114, a.ID)
	assert.Equal(t, "Fullmetal Alchemist: Brotherhood", a.Title)
	require.NotNil(t, a.Score)
	assert.Equal(t, 9.0, *a.Score)
	assert.Equal(t, 1, res.PageInfo.Total)
}

func TestGetFallsBackToRomajiTitle(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, req gqlRequest) {
		assert.EqualValues(t, 16498, req.Variables["id"])
		_, _ = w.Write([]byte(`{"data":{"Media":{"id":16498,"title":{"romaji":"Shingeki no Kyojin","english":""},"genres":null}}}`))
	})

	a, err := New(srv.URL, WithHTTPClient(srv.Client())).Get(context.Background(), 16498)
	require.NoError(t, err)
	assert.Equal(t, "Shingeki no Kyojin", a.Title)
	assert.Nil(t, a.Score)
	assert.Empty(t, a.Genres)
}

func TestGetNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, req gqlRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Not Found.","status":404}],"data":{"Media":null}}`))
	})

	_, err := New(srv.URL, WithHTTPClient(srv.Client()), WithRetry(3, time.Millisecond)).Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, calls.Load())
}

func TestTransientErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, req gqlRequest) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"errors":[{"message":"Too Many Requests.","status":429}],"data":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"Media":{"id":1,"title":{"romaji":"Cowboy Bebop"}}}}`))
	})

	a, err := New(srv.URL, WithHTTPClient(srv.Client()), WithRetry(3, time.Millisecond)).Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Cowboy Bebop", a.Title)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetriesGiveUp(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, req gqlRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	})

	_, err := New(srv.URL, WithHTTPClient(srv.Client()), WithRetry(3, time.Millisecond)).Search(context.Background(), "x", 1, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 3, calls.Load())
}

func TestEmptyQuery(t *testing.T) {
	_, err := New("http://unused.invalid").Search(context.Background(), "  ", 1, 10)
	assert.Error(t, err)
}
