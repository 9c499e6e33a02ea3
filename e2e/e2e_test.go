package e2e_test

import (
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	writerToken = "jimmy-writer"
	readerToken = "jimmy-reader"
)

var defaultGrants = []GrantEntry{
	{Owner: "jimmy", Token: writerToken, Grants: []string{"tasks:rw", "documents", "public:rw"}},
	{Owner: "jimmy", Token: readerToken, Grants: []string{":r"}},
	{Owner: "kim", Token: "kim-token", Grants: []string{":rw"}},
}

func listing(t *testing.T, body []byte) map[string]int64 {
	t.Helper()
	var entries map[string]int64
	require.NoError(t, json.Unmarshal(body, &entries), "listing body: %s", body)
	return entries
}

func TestE2E_Lifecycle_SQLite(t *testing.T) {
	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:   getOpenPort(t),
		DBType: "sqlite",
		DBDSN:  filepath.Join(t.TempDir(), "test.db"),
		Grants: defaultGrants,
	})
	defer cleanup()

	runLifecycleTests(t, baseURL)
}

func TestE2E_Lifecycle_Postgres(t *testing.T) {
	dsn := getSharedPostgresDatabase(t)

	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:   getOpenPort(t),
		DBType: "postgres",
		DBDSN:  dsn,
		Grants: defaultGrants,
	})
	defer cleanup()

	runLifecycleTests(t, baseURL)
}

func TestE2E_Lifecycle_Badger(t *testing.T) {
	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:   getOpenPort(t),
		DBType: "badger",
		DBDSN:  filepath.Join(t.TempDir(), "badger"),
		Grants: defaultGrants,
	})
	defer cleanup()

	runLifecycleTests(t, baseURL)
}

// runLifecycleTests stores, lists and deletes a nested JSON document.
func runLifecycleTests(t *testing.T, baseURL string) {
	t.Helper()

	doc := baseURL + "/jimmy/tasks/home/todo.json"
	var etag string

	t.Run("PUT stores compacted JSON", func(t *testing.T) {
		resp, _ := do(t, http.MethodPut, doc, writerToken, []byte(`{ "title": "milk",  "done": false }`),
			"Content-Type", "application/json")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		etag = resp.Header.Get("ETag")
		assert.NotEmpty(t, etag)
		assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
	})

	t.Run("GET returns the document", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, doc, writerToken, nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, etag, resp.Header.Get("ETag"))
		assert.Equal(t, `{"title":"milk","done":false}`, string(body))
	})

	t.Run("ancestors are listed", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, baseURL+"/jimmy/tasks/", writerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
		assert.Contains(t, listing(t, body), "home/")

		resp, body = do(t, http.MethodGet, baseURL+"/jimmy/tasks/home/", writerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, listing(t, body), "todo.json")

		resp, body = do(t, http.MethodGet, baseURL+"/jimmy/", readerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, listing(t, body), "tasks/")
	})

	t.Run("DELETE prunes empty directories", func(t *testing.T) {
		resp, _ := do(t, http.MethodDelete, doc, writerToken, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = do(t, http.MethodGet, doc, writerToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, body := do(t, http.MethodGet, baseURL+"/jimmy/", readerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "{}", string(body))
	})

	t.Run("DELETE of a missing document", func(t *testing.T) {
		resp, _ := do(t, http.MethodDelete, doc, writerToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestE2E_Authorization(t *testing.T) {
	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:   getOpenPort(t),
		DBType: "memory",
		Grants: defaultGrants,
	})
	defer cleanup()

	resp, _ := do(t, http.MethodPut, baseURL+"/jimmy/public/hello.txt", writerToken, []byte("hi"), "Content-Type", "text/plain")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous public read", http.MethodGet, "/jimmy/public/hello.txt", "", http.StatusOK},
		{"anonymous public write", http.MethodPut, "/jimmy/public/other.txt", "", http.StatusForbidden},
		{"anonymous private read", http.MethodGet, "/jimmy/tasks/", "", http.StatusForbidden},
		{"legacy grant writes", http.MethodPut, "/jimmy/documents/a.txt", writerToken, http.StatusOK},
		{"reader cannot write", http.MethodPut, "/jimmy/tasks/a.txt", readerToken, http.StatusForbidden},
		{"reader reads anything", http.MethodGet, "/jimmy/documents/a.txt", readerToken, http.StatusOK},
		{"token of another owner", http.MethodGet, "/kim/", writerToken, http.StatusForbidden},
		{"unknown token", http.MethodGet, "/jimmy/tasks/", "nope", http.StatusForbidden},
		{"ungranted category", http.MethodGet, "/jimmy/contacts/", writerToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.method == http.MethodPut {
				body = []byte("x")
			}
			resp, _ := do(t, tt.method, baseURL+tt.path, tt.token, body, "Content-Type", "text/plain")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestE2E_ConditionalAndBinary(t *testing.T) {
	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:          getOpenPort(t),
		DBType:        "sqlite",
		DBDSN:         filepath.Join(t.TempDir(), "test.db"),
		MaxUploadSize: 1024,
		Grants:        defaultGrants,
	})
	defer cleanup()

	doc := baseURL + "/jimmy/tasks/note.txt"
	resp, _ := do(t, http.MethodPut, doc, writerToken, []byte("v1"), "Content-Type", "text/plain")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")

	t.Run("If-None-Match", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, doc, writerToken, nil, "If-None-Match", etag)
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
		assert.Empty(t, body)
	})

	t.Run("If-Match mismatch", func(t *testing.T) {
		resp, _ := do(t, http.MethodPut, doc, writerToken, []byte("v2"), "Content-Type", "text/plain", "If-Match", `"stale"`)
		assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	})

	t.Run("If-Match match", func(t *testing.T) {
		resp, _ := do(t, http.MethodPut, doc, writerToken, []byte("v2"), "Content-Type", "text/plain", "If-Match", etag)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEqual(t, etag, resp.Header.Get("ETag"))
	})

	t.Run("binary round trip", func(t *testing.T) {
		payload := []byte{0x89, 'P', 'N', 'G', 0xff, 0x00, 0xfe}
		resp, _ := do(t, http.MethodPut, baseURL+"/jimmy/public/pixel.png", writerToken, payload, "Content-Type", "image/png")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := do(t, http.MethodGet, baseURL+"/jimmy/public/pixel.png", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Equal(t, payload, body)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		resp, _ := do(t, http.MethodPut, baseURL+"/jimmy/tasks/bad.json", writerToken, []byte("{nope"), "Content-Type", "application/json")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("upload too large", func(t *testing.T) {
		resp, _ := do(t, http.MethodPut, baseURL+"/jimmy/tasks/big.txt", writerToken, []byte(strings.Repeat("x", 2048)), "Content-Type", "text/plain")
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("escaped key", func(t *testing.T) {
		key := baseURL + "/jimmy/public/http:%2F%2F5apps.com"
		resp, _ := do(t, http.MethodPut, key, writerToken, []byte("link"), "Content-Type", "text/plain")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := do(t, http.MethodGet, baseURL+"/jimmy/public/", writerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, listing(t, body), "http:%2F%2F5apps.com")

		resp, body = do(t, http.MethodGet, key, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "link", string(body))
	})
}

func TestE2E_AdminCommands(t *testing.T) {
	blobPath := t.TempDir()
	cfg := ServerConfig{
		Port:     getOpenPort(t),
		DBType:   "sqlite",
		DBDSN:    filepath.Join(t.TempDir(), "test.db"),
		BlobPath: blobPath,
		Grants:   defaultGrants,
	}

	baseURL, configPath, cleanup := startServer(t, cfg)
	defer cleanup()

	t.Run("grant add issues a working token", func(t *testing.T) {
		out := runAdmin(t, configPath, "grant", "add", "--owner", "jimmy", "contacts:rw")
		token := strings.TrimSpace(out)
		require.NotEmpty(t, token)

		resp, _ := do(t, http.MethodPut, baseURL+"/jimmy/contacts/bob.json", token, []byte(`{"name":"bob"}`),
			"Content-Type", "application/json")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		runAdmin(t, configPath, "grant", "remove", "--owner", "jimmy", token)
		resp, _ = do(t, http.MethodGet, baseURL+"/jimmy/contacts/bob.json", token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("import and remove", func(t *testing.T) {
		src := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(src, "notes"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(src, "notes", "a.txt"), []byte("alpha"), 0o600))

		runAdmin(t, configPath, "import", "--owner", "jimmy", "--dest", "documents", "--quiet", src)

		resp, body := do(t, http.MethodGet, baseURL+"/jimmy/documents/notes/a.txt", readerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "alpha", string(body))

		runAdmin(t, configPath, "remove", "--owner", "jimmy", "--recursive", "--quiet", "documents")

		resp, _ = do(t, http.MethodGet, baseURL+"/jimmy/documents/notes/a.txt", readerToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("reindex", func(t *testing.T) {
		runAdmin(t, configPath, "reindex", "jimmy")

		resp, body := do(t, http.MethodGet, baseURL+"/jimmy/", readerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, listing(t, body), "contacts/")
	})
}

func TestE2E_ClientCLI(t *testing.T) {
	baseURL, _, cleanup := startServer(t, ServerConfig{
		Port:   getOpenPort(t),
		DBType: "sqlite",
		DBDSN:  filepath.Join(t.TempDir(), "test.db"),
		Grants: defaultGrants,
	})
	defer cleanup()

	cli := buildBinary(t, "remotestore-cli")
	workDir := t.TempDir()

	run := func(t *testing.T, args ...string) (string, error) {
		t.Helper()
		cmd := exec.Command(cli, args...)
		cmd.Dir = workDir
		cmd.Env = append(os.Environ(),
			"REMOTESTORE_SERVER="+baseURL,
			"REMOTESTORE_OWNER=jimmy",
			"REMOTESTORE_TOKEN="+writerToken,
			"REMOTESTORE_CLI_CONFIG="+filepath.Join(workDir, "missing.yaml"),
		)
		out, err := cmd.Output()
		return string(out), err
	}

	local := filepath.Join(workDir, "today.json")
	require.NoError(t, os.WriteFile(local, []byte(`{ "task": "milk" }`), 0o600))

	t.Run("upload", func(t *testing.T) {
		out, err := run(t, "upload", local, "tasks/today.json")
		require.NoError(t, err)
		assert.Contains(t, out, "Uploaded: tasks/today.json")
	})

	t.Run("list", func(t *testing.T) {
		out, err := run(t, "list", "--json", "-r", "tasks")
		require.NoError(t, err)
		assert.Contains(t, out, `"tasks/today.json"`)
	})

	t.Run("download to stdout", func(t *testing.T) {
		out, err := run(t, "download", "--stdout", "tasks/today.json")
		require.NoError(t, err)
		assert.Equal(t, `{"task":"milk"}`, out)
	})

	t.Run("delete", func(t *testing.T) {
		out, err := run(t, "delete", "tasks/today.json")
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted: tasks/today.json")

		_, err = run(t, "download", "--stdout", "tasks/today.json")
		assert.Error(t, err)
	})

	t.Run("forbidden category", func(t *testing.T) {
		_, err := run(t, "upload", local, "contacts/today.json")
		assert.Error(t, err)
	})
}
