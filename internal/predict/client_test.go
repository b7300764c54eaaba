package predict

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/regional/status", r.URL.Path)
		w.Write([]byte(`{"regions":[{"id":"vancouver","delay":2}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL + "/").RegionalStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"regions":[{"id":"vancouver","delay":2}]}`, string(resp.Body))
	assert.Equal(t, srv.URL+"/api/v1/regional/status", resp.URL)
}

func TestStopPredictionsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stops/50001/predictions", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).StopPredictions(context.Background(), "50001")
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Bad Gateway", resp.StatusText())
	assert.Equal(t, "upstream down", string(resp.Body))
}

func TestGetFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	url := srv.URL
	_, err := NewClient(url).Get(context.Background(), "/x")
	assert.Error(t, err, "2xx body must be JSON")

	srv.Close()
	_, err = NewClient(url).Get(context.Background(), "/x")
	assert.Error(t, err)
}
