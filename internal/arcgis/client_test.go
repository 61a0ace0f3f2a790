package arcgis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryPostsForm(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/layer/query", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "json", r.PostForm.Get("f"))
		assert.Equal(t, "1=1", r.PostForm.Get("where"))

		fmt.Fprint(w, `{"features":[{"attributes":{"lot":"2"},"geometry":{"rings":[[[152,-27],[153,-27],[153,-26],[152,-27]]]}}]}`)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	params := url.Values{}
	params.Set("where", "1=1")

	feats, exceeded, err := client.Query(context.Background(), srv.URL+"/layer", params)
	require.NoError(t, err)
	assert.False(t, exceeded)
	require.Len(t, feats, 1)
	assert.Equal(t, "2", feats[0].Attributes["lot"])
	require.NotNil(t, feats[0].Geometry)
	assert.Len(t, feats[0].Geometry.Rings, 1)
}

func TestQueryInBodyError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":400,"message":"Invalid query"}}`)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, _, err := client.Query(context.Background(), srv.URL, url.Values{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
}

func TestQueryRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream blew up", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"features":[]}`)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, _, err := client.Query(context.Background(), srv.URL, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueryDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such layer", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, _, err := client.Query(context.Background(), srv.URL, url.Values{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueryAllPaginates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("resultOffset") {
		case "0":
			fmt.Fprint(w, `{"features":[{"attributes":{"oid":1}},{"attributes":{"oid":2}}],"exceededTransferLimit":true}`)
		case "2":
			fmt.Fprint(w, `{"features":[{"attributes":{"oid":3}}]}`)
		default:
			t.Errorf("unexpected resultOffset %q", r.PostForm.Get("resultOffset"))
		}
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	feats, err := client.QueryAll(context.Background(), srv.URL, url.Values{})
	require.NoError(t, err)
	assert.Len(t, feats, 3)
}

func TestQueryContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(5 * time.Second)
	_, _, err := client.Query(ctx, srv.URL, url.Values{})
	require.Error(t, err)
}
