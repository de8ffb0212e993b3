package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/driver"
	"github.com/jmylchreest/hwcodec/internal/mux"
	"github.com/jmylchreest/hwcodec/internal/probe"
)

// execute runs the root command. Flag values persist between runs, so every
// call spells out the flags it depends on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useTempDatabase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HWCODEC_DATABASE_DSN", filepath.Join(dir, "hwcodec.db"))
	t.Setenv("HWCODEC_LOGGING_LEVEL", "error")
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "-o", "json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["version"])
	assert.NotEmpty(t, info["go_version"])

	_, err = execute(t, "version", "-o", "xml")
	assert.Error(t, err)
}

func TestDriversCommand(t *testing.T) {
	useTempDatabase(t)

	out, err := execute(t, "drivers", "--simulate", "-o", "json")
	require.NoError(t, err)

	var infos []driver.Info
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 3)
	for _, info := range infos {
		assert.True(t, info.Present, info.Driver.String())
	}

	out, err = execute(t, "drivers", "--simulate", "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "DRIVER")
	assert.Contains(t, out, "available")
}

func TestAdaptersCommand(t *testing.T) {
	useTempDatabase(t)

	out, err := execute(t, "adapters", "--simulate", "--host=false", "-o", "yaml")
	require.NoError(t, err)

	var report adaptersReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Signature, 16)
	require.Len(t, report.Adapters, 3)
	assert.Equal(t, int64(1), report.Adapters[0].LUID)
	assert.Nil(t, report.Host)
}

func TestProbeCommand(t *testing.T) {
	useTempDatabase(t)

	t.Run("single_driver", func(t *testing.T) {
		out, err := execute(t, "probe", "--simulate", "-d", "nv", "-c", "h264",
			"--all=false", "--decode=false", "--max-results", "0", "-o", "json")
		require.NoError(t, err)

		var reports []probeReport
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		require.Len(t, reports, 1)
		assert.Equal(t, codec.DriverNV, reports[0].Driver)
		assert.Equal(t, "encode", reports[0].Direction)
		require.Len(t, reports[0].Results, 1)
		assert.Equal(t, int64(1), reports[0].Results[0].LUID)
		assert.Empty(t, reports[0].Error)
	})

	t.Run("all_drivers", func(t *testing.T) {
		out, err := execute(t, "probe", "--simulate", "-c", "hevc",
			"--all=true", "--decode=false", "--max-results", "0", "-o", "json")
		require.NoError(t, err)

		var reports []probeReport
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		require.Len(t, reports, 3)
		for _, r := range reports {
			assert.Len(t, r.Results, 1, r.Driver.String())
		}
	})

	t.Run("decode", func(t *testing.T) {
		out, err := execute(t, "probe", "--simulate", "-d", "mfx", "-c", "h264",
			"--all=false", "--decode=true", "--max-results", "0", "-o", "json")
		require.NoError(t, err)

		var reports []probeReport
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		require.Len(t, reports, 1)
		assert.Equal(t, "decode", reports[0].Direction)
		require.Len(t, reports[0].Results, 1)
		assert.Equal(t, int64(3), reports[0].Results[0].LUID)
	})

	t.Run("unknown_driver", func(t *testing.T) {
		_, err := execute(t, "probe", "--simulate", "-d", "vaapi", "-c", "h264",
			"--all=false", "--decode=false", "-o", "json")
		assert.Error(t, err)
	})
}

func TestAvailableCommand(t *testing.T) {
	useTempDatabase(t)

	t.Run("probe_without_store", func(t *testing.T) {
		out, err := execute(t, "available", "--simulate", "--cached=false", "--store=false", "--decode=true", "-o", "json")
		require.NoError(t, err)

		av, err := probe.ParseAvailability([]byte(out))
		require.NoError(t, err)
		assert.Len(t, av.Encoders, 6)
		assert.Len(t, av.Decoders, 6)
		assert.True(t, av.Contains(true, codec.DriverAMF, codec.HEVC))
	})

	t.Run("cached_run_is_reused", func(t *testing.T) {
		out, err := execute(t, "available", "--simulate", "--cached=true", "--store=false", "--decode=true", "-o", "text")
		require.NoError(t, err)
		assert.NotContains(t, out, "from stored run")
		assert.Contains(t, out, "Encoders")

		out, err = execute(t, "available", "--simulate", "--cached=true", "--store=false", "--decode=true", "-o", "text")
		require.NoError(t, err)
		assert.Contains(t, out, "from stored run")
		assert.Contains(t, out, "Decoders")
	})
}

func TestEncodeCommand(t *testing.T) {
	dir := useTempDatabase(t)
	path := filepath.Join(dir, "test.ts")

	out, err := execute(t, "encode", "--simulate", "-d", "nv", "-c", "h264", "--luid", "0",
		"--frames", "90", "--switch-kbps", "2000", "-f", path, "-o", "json")
	require.NoError(t, err)

	var report encodeReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.Session)
	assert.Equal(t, int64(1), report.LUID)
	assert.Equal(t, 90, report.Submitted)
	assert.Equal(t, 90, report.Written)
	assert.Equal(t, codec.H264, report.Stream.Codec)
	assert.Equal(t, uint16(mux.VideoPID), report.Stream.PID)
	assert.Equal(t, 90, report.Stream.Packets)
	assert.GreaterOrEqual(t, report.Stream.Keyframes, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = execute(t, "encode", "--simulate", "-d", "nv", "-c", "h264", "--luid", "42",
		"--frames", "10", "--switch-kbps", "0", "-f", path, "-o", "json")
	assert.ErrorIs(t, err, codec.ErrUnavailable)
}

func TestExclusionsCommands(t *testing.T) {
	dir := useTempDatabase(t)

	_, err := execute(t, "exclusions", "add", "1", "h264", "--reason", "driver hang")
	require.NoError(t, err)

	out, err := execute(t, "exclusions", "list", "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "driver hang")

	exported := filepath.Join(dir, "exclusions.yaml")
	_, err = execute(t, "exclusions", "export", exported)
	require.NoError(t, err)
	loaded, err := probe.LoadExclusions(exported)
	require.NoError(t, err)
	assert.True(t, loaded.Contains(1, codec.H264))

	out, err = execute(t, "available", "--simulate", "--cached=false", "--store=true", "--decode=false", "-o", "json")
	require.NoError(t, err)
	av, err := probe.ParseAvailability([]byte(out))
	require.NoError(t, err)
	assert.False(t, av.Contains(true, codec.DriverNV, codec.H264))
	assert.True(t, av.Contains(true, codec.DriverNV, codec.HEVC))

	_, err = execute(t, "exclusions", "remove", "1", "h264")
	require.NoError(t, err)
	_, err = execute(t, "exclusions", "remove", "1", "h264")
	assert.Error(t, err)

	_, err = execute(t, "exclusions", "add", "1", "vp9")
	assert.Error(t, err)
}

func TestMonitorOnce(t *testing.T) {
	useTempDatabase(t)

	out, err := execute(t, "monitor", "--simulate", "--once", "--decode=false", "--schedule", "0 */15 * * * *")
	require.NoError(t, err)
	assert.Contains(t, out, "stored run")

	out, err = execute(t, "monitor", "--simulate", "--once", "--decode=false", "--schedule", "0 */15 * * * *")
	require.NoError(t, err)
	assert.Contains(t, out, "reused run")
}

func TestConfigDump(t *testing.T) {
	useTempDatabase(t)

	out, err := execute(t, "config", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "cache_ttl: 1w")
	assert.Contains(t, out, "0 */15 * * * *")
	assert.Contains(t, out, "max_results: 8")
}
