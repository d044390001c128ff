package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sha1n/mcp-docsearch-server/internal/app"
	"github.com/sha1n/mcp-docsearch-server/internal/config"
	"github.com/sha1n/mcp-docsearch-server/internal/docsearch"
	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

// Property names published by the services in this package.
const (
	PropIndexURL    = "index_url"
	PropIndexServer = "index_server"
	PropServerURL   = "server_url"
)

// IndexService serves a search index over HTTP.
type IndexService struct {
	t      testing.TB
	index  domain.SearchIndex
	server *docsearch.IndexServer
}

// NewIndexService creates a service serving idx.
func NewIndexService(t testing.TB, idx domain.SearchIndex) *IndexService {
	return &IndexService{t: t, index: idx}
}

func (s *IndexService) Start() (map[string]any, error) {
	s.server = docsearch.NewIndexServer(s.t, s.index)
	return map[string]any{
		PropIndexURL:    s.server.IndexURL(),
		PropIndexServer: s.server,
	}, nil
}

func (s *IndexService) Stop() error {
	if s.server != nil {
		s.server.Close()
	}
	return nil
}

func (s *IndexService) GetName() string {
	return "search-index"
}

// ServerService runs the SSE server with the JSON API on a free port. The
// index URL is taken from the options, or from the index_url property of a
// previously started service when resolve is set.
type ServerService struct {
	t       testing.TB
	opts    FlagOptions
	resolve func() string

	httpServer *http.Server
	cleanup    func()
}

// NewServerService creates a server service. indexURL is called at start time.
func NewServerService(t testing.TB, opts *FlagOptions, indexURL func() string) *ServerService {
	s := &ServerService{t: t, resolve: indexURL}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

func (s *ServerService) Start() (map[string]any, error) {
	opts := s.opts
	if opts.IndexURL == "" && s.resolve != nil {
		opts.IndexURL = s.resolve()
	}

	flags := NewTestFlags(s.t, &opts)
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	components, cleanup, err := app.CreateComponents(settings, "test")
	if err != nil {
		return nil, err
	}
	s.cleanup = cleanup

	httpServer, err := app.NewSSEServer(components, settings)
	if err != nil {
		cleanup()
		return nil, err
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}
	s.httpServer = httpServer

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.t.Logf("server stopped: %v", err)
		}
	}()

	baseURL := "http://" + ln.Addr().String()
	if err := waitForHealth(baseURL, 5*time.Second); err != nil {
		return nil, err
	}

	return map[string]any{PropServerURL: baseURL}, nil
}

func (s *ServerService) Stop() error {
	var err error
	if s.httpServer != nil {
		// SSE streams never go idle, so close instead of shutting down
		err = s.httpServer.Close()
	}
	if s.cleanup != nil {
		s.cleanup()
	}
	return err
}

func (s *ServerService) GetName() string {
	return "docsearch-server"
}

// waitForHealth polls /health until it answers 200 or the timeout elapses.
func waitForHealth(baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not healthy: %w", baseURL, ctx.Err())
		case <-time.After(20 * time.Millisecond):
		}
	}
}
