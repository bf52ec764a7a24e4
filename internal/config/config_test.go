package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "portalgraph.yaml", `
server:
  addr: ":9090"
  timeout: 5s
  corsOrigins: ["*"]
transport:
  backends:
    "*": ["localhost:50051"]
    portal.v1.TagService: ["tags:50051", "tags:50052"]
  rpcTimeout: 750ms
gateway:
  defaultActor: 20
  locales: [en_US, de_DE]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "X-User-Id", cfg.Server.ActorHeader, "unset keys keep their defaults")
	assert.Equal(t, map[string][]string{
		"*":                    {"localhost:50051"},
		"portal.v1.TagService": {"tags:50051", "tags:50052"},
	}, cfg.Transport.Backends)
	assert.Equal(t, 750*time.Millisecond, cfg.Transport.RPCTimeout)
	assert.Equal(t, int64(20), cfg.Gateway.DefaultActor)
	assert.Equal(t, []string{"en_US", "de_DE"}, cfg.Gateway.Locales)
	require.NoError(t, cfg.Validate())
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeFile(t, "bad.yaml", "server:\n  adress: \":1\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"SERVER_ADDR", ":7070")
	t.Setenv(EnvPrefix+"TRANSPORT_BACKENDS", "*=a:1, portal.v1.TagService=b:2")
	t.Setenv(EnvPrefix+"GATEWAY_LOCALES", "en_US,fr_FR")
	t.Setenv(EnvPrefix+"SERVER_TIMEOUT", "2s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.Timeout)
	assert.Equal(t, map[string][]string{"*": {"a:1"}, "portal.v1.TagService": {"b:2"}}, cfg.Transport.Backends)
	assert.Equal(t, []string{"en_US", "fr_FR"}, cfg.Gateway.Locales)
}

func TestLoad_EnvFile(t *testing.T) {
	key := EnvPrefix + "GATEWAY_DEFAULT_ACTOR"
	t.Setenv(key, "")
	os.Unsetenv(key)
	env := writeFile(t, ".env", key+"=33\n")

	cfg, err := Load("", env, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, int64(33), cfg.Gateway.DefaultActor)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"SERVER_TIMEOUT", "soon")
	t.Setenv(EnvPrefix+"TRANSPORT_BACKENDS", "nobackend")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_TIMEOUT")
	assert.Contains(t, err.Error(), "nobackend")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Locales = []string{"en_US", "not a locale"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backend mappings")
	assert.Contains(t, err.Error(), "not a locale")

	cfg = Default()
	require.NoError(t, cfg.Transport.AddBackend("*=localhost:50051"))
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.Transport.AddBackend("=x"))
}
