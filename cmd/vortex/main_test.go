package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vortex/internal/config"
)

func TestOverridesOnlyExplicitFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 9999
	cfg.Upload.ReadOnly = true

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	ov := bindOverrides(fs)
	require.NoError(t, fs.Parse([]string{"-dir", t.TempDir(), "-workers", "8", "-webdav"}))
	require.NoError(t, ov.apply(fs, cfg))

	assert.Equal(t, 9999, cfg.Server.Port, "unset flag must not reset the config value")
	assert.True(t, cfg.Upload.ReadOnly)
	assert.Equal(t, 8, cfg.Server.MaxWorkers)
	assert.True(t, cfg.WebDAV.Enabled)
}

func TestOverridesAreValidated(t *testing.T) {
	cfg := config.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	ov := bindOverrides(fs)
	require.NoError(t, fs.Parse([]string{"-port", "70000"}))
	assert.Error(t, ov.apply(fs, cfg))
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vortex.pid")

	require.NoError(t, writePIDFile(path))
	pid, err := readPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	err = writePIDFile(path)
	assert.ErrorContains(t, err, "already running")

	removePIDFile(path)
	assert.NoFileExists(t, path)
}

func TestPIDFile_Stale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vortex.pid")
	// Pids are bounded well below this on Linux.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0o644))

	_, err := signalPIDFile(path, syscall.Signal(0))
	assert.ErrorContains(t, err, "stale")

	require.NoError(t, writePIDFile(path))
}

func TestSignalPIDFile_Missing(t *testing.T) {
	_, err := signalPIDFile(filepath.Join(t.TempDir(), "none.pid"), syscall.SIGTERM)
	assert.ErrorContains(t, err, "not running")
}

func TestBanner(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "192.0.2.10"
	cfg.Server.Port = 8123
	cfg.WebDAV.Enabled = true
	cfg.Upload.MaxSize = 10_000_000

	var buf bytes.Buffer
	printBanner(&buf, cfg, "/srv/share", true)
	out := buf.String()

	assert.Contains(t, out, "/srv/share")
	assert.Contains(t, out, "http://192.0.2.10:8123/")
	assert.Contains(t, out, "http://192.0.2.10:8123/dav/")
	assert.Contains(t, out, "10 MB")
	assert.Contains(t, out, whiteWhite)
}

func TestServerURL(t *testing.T) {
	assert.Equal(t, "http://[::1]:80/", serverURL("::1", 80))
	assert.Regexp(t, `^http://[0-9.]+:8000/$`, serverURL("", 8000))
}
