package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

// mockServer builds an httptest.Server that checks the request it receives
// and answers with a canned response.
type mockServer struct {
	t           *testing.T
	handler     http.HandlerFunc
	expectPath  string
	expectMeth  string
	expectQuery url.Values
	expectUser  string
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	return &mockServer{t: t}
}

// ExpectPath sets the expected request path.
func (m *mockServer) ExpectPath(path string) *mockServer {
	m.expectPath = path
	return m
}

// ExpectMethod sets the expected HTTP method.
func (m *mockServer) ExpectMethod(method string) *mockServer {
	m.expectMeth = method
	return m
}

func (m *mockServer) ExpectGET() *mockServer {
	return m.ExpectMethod(http.MethodGet)
}

// ExpectQuery requires the query string to equal q exactly.
func (m *mockServer) ExpectQuery(q url.Values) *mockServer {
	m.expectQuery = q
	return m
}

// ExpectUser requires the user header to carry id.
func (m *mockServer) ExpectUser(id string) *mockServer {
	m.expectUser = id
	return m
}

// Handler sets a custom handler, called after the request checks.
func (m *mockServer) Handler(h func(w http.ResponseWriter, r *http.Request)) *mockServer {
	m.handler = h
	return m
}

// RespondJSON answers with v encoded as JSON.
func (m *mockServer) RespondJSON(v any) *mockServer {
	m.handler = func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(m.t, w, v)
	}
	return m
}

// RespondAPIError answers with the server's error envelope.
func (m *mockServer) RespondAPIError(status int, code, message string) *mockServer {
	m.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
	}
	return m
}

// RespondError answers with a plain text body.
func (m *mockServer) RespondError(status int, message string) *mockServer {
	m.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(message))
	}
	return m
}

// Build starts the server and closes it when the test ends.
func (m *mockServer) Build() *httptest.Server {
	m.t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.expectPath != "" {
			assert.Equal(m.t, m.expectPath, r.URL.Path, "unexpected request path")
		}
		if m.expectMeth != "" {
			assert.Equal(m.t, m.expectMeth, r.Method, "unexpected request method")
		}
		if m.expectQuery != nil {
			assert.Equal(m.t, m.expectQuery, r.URL.Query(), "unexpected query")
		}
		if m.expectUser != "" {
			assert.Equal(m.t, m.expectUser, r.Header.Get("X-User-ID"), "unexpected user header")
		}
		if m.handler != nil {
			m.handler(w, r)
		}
	}))
	m.t.Cleanup(srv.Close)
	return srv
}

func respondJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("failed to encode JSON response: %v", err)
	}
}

// withServer points the global flags at url and user for one test.
func withServer(t *testing.T, url string, user int64) {
	t.Helper()
	oldURL, oldUser, oldJSON := serverURL, userID, jsonOutput
	serverURL, userID = url, user
	t.Setenv("ANDRATE_USER", "")
	t.Cleanup(func() { serverURL, userID, jsonOutput = oldURL, oldUser, oldJSON })
}

// runCommand runs cmd's RunE with flags set, returning what it printed.
// Flags are reset afterwards so package-level commands stay reusable.
func runCommand(t *testing.T, cmd *cobra.Command, args []string, flags map[string]string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
		cmd.SetOut(nil)
	})
	for name, value := range flags {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("set --%s: %v", name, err)
		}
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func ptr[T any](v T) *T { return &v }
