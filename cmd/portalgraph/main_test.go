package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/config"
	"github.com/hanpama/portalgraph/internal/devbackend"
	"github.com/hanpama/portalgraph/internal/grpcrt"
	"github.com/hanpama/portalgraph/internal/protoreg"
)

func TestHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, cmdHelp([]string{"serve"}, &out))
	assert.Contains(t, out.String(), "serve FLAGS")
	assert.Error(t, cmdHelp([]string{"nope"}, &out))
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Error(t, run(nil))
	assert.Error(t, run([]string{"frobnicate"}))
}

func TestCompileSDL(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, cmdCompileSDL([]string{"-locale", "en_US", "-locale", "de_DE"}, &out))
	sdl := out.String()
	assert.Contains(t, sdl, "type Query")
	assert.Contains(t, sdl, "type Mutation")
	assert.Contains(t, sdl, "title_de_DE")
}

func TestCompileProto(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, cmdCompileProto(nil, &out))
	assert.Contains(t, out.String(), "service TagService")

	dir := t.TempDir()
	require.NoError(t, cmdCompileProto([]string{"-out", dir}, &out))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestLoadServeConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portalgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  timeout: 4s
transport:
  backends:
    "*": ["file:1"]
`), 0o644))

	cfg, err := loadServeConfig([]string{
		"-config", path,
		"-env-file", filepath.Join(t.TempDir(), "none.env"),
		"-server.addr", ":9100",
		"-transport.backend", "portal.v1.TagService=flag:2",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 4*time.Second, cfg.Server.Timeout, "flags left unset keep the file value")
	assert.Equal(t, map[string][]string{"*": {"file:1"}, "portal.v1.TagService": {"flag:2"}}, cfg.Transport.Backends)
}

func TestLoadServeConfig_RequiresBackend(t *testing.T) {
	_, err := loadServeConfig([]string{"-env-file", filepath.Join(t.TempDir(), "none.env")})
	assert.ErrorContains(t, err, "no backend mappings")
}

func TestBuildHandler_EndToEnd(t *testing.T) {
	c := catalog.Portal()
	reg, err := protoreg.Build(c)
	require.NoError(t, err)
	be, err := devbackend.New(c, reg)
	require.NoError(t, err)
	tp := grpcrt.NewMockTransport(func(md protoreflect.MethodDescriptor, req protoreflect.Message) (protoreflect.Message, error) {
		return be.Call(context.Background(), md, req)
	})

	cfg := config.Default()
	require.NoError(t, cfg.Transport.AddBackend("*=unused:0"))
	h, err := buildHandler(cfg, tp)
	require.NoError(t, err)

	post := func(query string) map[string]any {
		body, _ := json.Marshal(map[string]any{"query": query})
		req := httptest.NewRequest("POST", "/graphql", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", "7")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var out map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.NotContains(t, out, "errors", w.Body.String())
		return out["data"].(map[string]any)
	}

	created := post(`mutation { createTag(name: "go") { tagId userId } }`)["createTag"].(map[string]any)
	assert.Equal(t, float64(7), created["userId"])

	id := created["tagId"].(float64)
	got := post(`{ tag(tagId: ` + strconv.FormatInt(int64(id), 10) + `) { name } }`)
	assert.Equal(t, map[string]any{"tag": map[string]any{"name": "go"}}, got)

	schemaData := post(`{ __schema { queryType { name } } }`)
	assert.Equal(t, map[string]any{"queryType": map[string]any{"name": "Query"}}, schemaData["__schema"])
}
