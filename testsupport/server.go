package testsupport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/karloscodes/webprofiler/config"
	"github.com/karloscodes/webprofiler/host"
	"github.com/karloscodes/webprofiler/profiler"
)

// TestServerOptions configures NewTestServer.
type TestServerOptions struct {
	// Config defaults to NewTestConfig.
	Config *config.Config

	// Storage defaults to an in-memory storage.
	Storage profiler.Storage

	// Mount registers pages and front controllers.
	Mount func(*host.Server)

	// DisableMiddleware turns off request logging and helmet.
	DisableMiddleware bool
}

// TestServer wraps a host for tests.
type TestServer struct {
	t       *testing.T
	Server  *host.Server
	App     *fiber.App
	Config  *config.Config
	Storage profiler.Storage
}

// NewTestServer creates a host ready for app.Test requests.
func NewTestServer(t *testing.T, opts ...TestServerOptions) *TestServer {
	t.Helper()

	var options TestServerOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	cfg := options.Config
	if cfg == nil {
		cfg = NewTestConfig()
	}

	serverCfg := host.DefaultServerConfig(cfg, NewTestLogger())
	serverCfg.Storage = options.Storage
	if options.DisableMiddleware {
		serverCfg.EnableRequestLogger = false
		serverCfg.EnableHelmet = false
	}

	server, err := host.NewServer(serverCfg)
	if err != nil {
		t.Fatalf("testsupport: failed to create test server: %v", err)
	}
	if options.Mount != nil {
		options.Mount(server)
	}

	return &TestServer{
		t:       t,
		Server:  server,
		App:     server.App(),
		Config:  cfg,
		Storage: server.Storage(),
	}
}

// Request performs a request and returns the response with its body read.
func (ts *TestServer) Request(method, path string, body ...string) (*http.Response, string) {
	ts.t.Helper()

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = strings.NewReader(body[0])
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := ts.App.Test(req, -1)
	if err != nil {
		ts.t.Fatalf("testsupport: request failed: %v", err)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatalf("testsupport: read body: %v", err)
	}
	return resp, string(b)
}

// Get performs a GET request.
func (ts *TestServer) Get(path string) (*http.Response, string) {
	return ts.Request(http.MethodGet, path)
}

// Post performs a form POST request.
func (ts *TestServer) Post(path, body string) (*http.Response, string) {
	return ts.Request(http.MethodPost, path, body)
}
