package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumifu/van-bus-cast/internal/regions"
)

func TestGetRegions(t *testing.T) {
	h := NewRegionHandler(regions.Default())

	rec := serve(http.HandlerFunc(h.GetRegions), "/api/regions")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RegionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, len(regions.Default().All()), resp.Count)
	assert.Empty(t, resp.Containing)

	rec = serve(http.HandlerFunc(h.GetRegions), "/api/regions?lat=49.2827&lng=-123.1207")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Containing, "downtown")

	rec = serve(http.HandlerFunc(h.GetRegions), "/api/regions?lat=abc&lng=-123.1207")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
