package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"elevation-api/internal/raster"
	"elevation-api/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"ADDR", "URL_ENDPOINT", "OPEN_INTERFACES", "ALWAYS_REBUILD_SUMMARY", "RATE_LIMIT_REDIS", "REDIS_ENABLED"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api/v1/lookup", c.Endpoint)
	assert.Equal(t, "/api/v1", c.BasePath())
	assert.Equal(t, 8, c.OpenInterfaces)
	assert.False(t, c.AlwaysRebuildSummary)
	assert.False(t, c.RedisEnabled)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("URL_ENDPOINT", "lookup/")
	t.Setenv("OPEN_INTERFACES", "3")
	t.Setenv("MAX_LOCATIONS", "-1")
	t.Setenv("ALWAYS_REBUILD_SUMMARY", "True")
	t.Setenv("RATE_LIMIT_QPS", "50")
	t.Setenv("RATE_LIMIT_BURST", "")
	t.Setenv("RATE_LIMIT_REDIS", "true")
	c := FromEnv()
	assert.Equal(t, "/lookup", c.Endpoint)
	assert.Equal(t, "", c.BasePath())
	assert.Equal(t, 3, c.OpenInterfaces)
	assert.Equal(t, 512, c.MaxLocations)
	assert.True(t, c.AlwaysRebuildSummary)
	assert.Equal(t, 50, c.RateLimitBurst)
	assert.True(t, c.RedisEnabled)
}

func writeHGT(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	b := make([]byte, 8)
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint16(b[i*2:], uint16(100+i))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
}

func TestDataConfigToRegistry(t *testing.T) {
	root := t.TempDir()
	writeHGT(t, filepath.Join(root, "alps"), "N45E006.hgt")
	writeHGT(t, filepath.Join(root, "alps"), "N45E007.hgt")
	writeHGT(t, filepath.Join(root, "andes"), "S12W077.hgt")
	cfg := filepath.Join(root, "data-config.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{
		"europe": [{"path": "alps", "projection": "EPSG:4326"}],
		"america": {"extent": [[-20, 0, -80, -60]], "datasets": [{"path": "andes"}]}
	}`), 0o644))

	dc, err := ReadDataConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "alps"), dc["europe"].Datasets[0].Path)
	assert.Equal(t, "EPSG:4326", dc.Projections()[filepath.Join(root, "alps")])
	assert.Len(t, dc.Paths(), 2)

	gcs, err := dc.GroupConfigs(false)
	require.NoError(t, err)
	assert.True(t, raster.HasSummary(filepath.Join(root, "alps")))

	reg, err := registry.Build(gcs)
	require.NoError(t, err)
	assert.Equal(t, "america", reg.Groups()[0].Key)

	res := reg.Resolve(45.5, 7.5)
	require.Equal(t, registry.Found, res.Status)
	assert.Equal(t, filepath.Join(root, "alps"), res.Shard.Path)

	// 分组范围覆盖但瓦片不覆盖
	res = reg.Resolve(-5, -65)
	assert.Equal(t, registry.NoMatchingShard, res.Status)
}

func TestReadDataConfigErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty.json":  `{}`,
		"nodata.json": `{"g": []}`,
		"nopath.json": `{"g": [{"projection": "x"}]}`,
		"broken.json": `{"g": `,
		"notobj.json": `[1, 2]`,
	}
	for name, body := range cases {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		_, err := ReadDataConfig(p)
		assert.Error(t, err, name)
	}
	_, err := ReadDataConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGroupConfigsMissingTiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	dc := DataConfig{"g": {Datasets: []DatasetEntry{{Path: filepath.Join(root, "empty")}}}}
	_, err := dc.GroupConfigs(false)
	assert.Error(t, err)
}
