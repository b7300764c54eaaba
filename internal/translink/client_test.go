package translink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopsWithLocation(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`[{"StopNo":50001,"Name":"WB W HASTINGS ST FS SEYMOUR ST","Latitude":49.2856,"Longitude":-123.111,"Routes":"004, 007"}]`))
	}))
	defer srv.Close()

	lat, lng := 49.2827, -123.1207
	body, err := NewClient(srv.URL+"/", "secret").Stops(context.Background(), StopsQuery{Lat: &lat, Lng: &lng, Radius: 500})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"StopNo":50001`)

	require.NotNil(t, got)
	assert.Equal(t, "/stops", got.URL.Path)
	assert.Equal(t, "secret", got.URL.Query().Get("apikey"))
	assert.Equal(t, "49.2827", got.URL.Query().Get("lat"))
	assert.Equal(t, "-123.1207", got.URL.Query().Get("long"))
	assert.Equal(t, "500", got.URL.Query().Get("radius"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
}

func TestStopsWithoutLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("lat"))
		assert.Empty(t, r.URL.Query().Get("radius"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	body, err := NewClient(srv.URL, "secret").Stops(context.Background(), StopsQuery{Radius: 500})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestStopsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") == "bad" {
			http.Error(w, "invalid key", http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"Code":"1001"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Stops(context.Background(), StopsQuery{})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = NewClient(srv.URL, "bad").Stops(context.Background(), StopsQuery{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)

	_, err = NewClient(srv.URL, "good").Stops(context.Background(), StopsQuery{})
	assert.Error(t, err, "non-array payload is rejected")
}
