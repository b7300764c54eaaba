package regions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegions(t *testing.T) {
	set := Default()
	assert.Equal(t, []string{"vancouver", "downtown", "richmond", "burnaby", "surrey"}, set.IDs())

	r, err := set.Get("richmond")
	require.NoError(t, err)
	assert.Equal(t, "Richmond", r.Name)
	assert.Equal(t, [2]float64{-123.1336, 49.1631}, r.Center)
	assert.Equal(t, 12.0, r.Zoom)

	_, err = set.Get("whistler")
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestContaining(t *testing.T) {
	set := Default()
	// Waterfront Station sits inside both the downtown and the Vancouver radius.
	ids := set.Containing(49.2856, -123.1110)
	assert.Equal(t, []string{"vancouver", "downtown"}, ids[:2])
	assert.NotContains(t, ids, "surrey")
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "regions:\n  - name: Nowhere\n    center: [-123, 49]\n"},
		{"duplicate id", "regions:\n  - id: a\n    center: [-123, 49]\n  - id: a\n    center: [-123, 49]\n"},
		{"bad center", "regions:\n  - id: a\n    center: [200, 49]\n"},
		{"not yaml", "regions: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions:\n  - id: north-van\n    center: [-123.07, 49.32]\n    zoom: 13\n"), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	all := set.All()
	require.Len(t, all, 1)
	assert.Equal(t, "north-van", all[0].Name, "name defaults to id")

	set, err = Load("")
	require.NoError(t, err)
	assert.Len(t, set.All(), 5)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
