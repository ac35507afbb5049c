// Package server wires the bridge, its HTTP API, the event stream and the
// map page into one HTTP handler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-mapbridge/internal/api"
	"github.com/joeblew999/plat-mapbridge/internal/assets"
	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/config"
	"github.com/joeblew999/plat-mapbridge/internal/humastar"
	"github.com/joeblew999/plat-mapbridge/internal/logging"
	"github.com/joeblew999/plat-mapbridge/internal/native"
	"github.com/joeblew999/plat-mapbridge/internal/native/browser"
	"github.com/joeblew999/plat-mapbridge/internal/schema"
	"github.com/joeblew999/plat-mapbridge/internal/stream"
	"github.com/joeblew999/plat-mapbridge/internal/templates"
)

const (
	socketPath  = "/ws"
	assetPrefix = "/assets/"
	scriptPath  = "/static/" + templates.ScriptName
)

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	Settings config.Config
	Logger   *slog.Logger

	// Library replaces the browser page as the native map library.
	Library native.Library
	// HTTPClient fetches library assets.
	HTTPClient *http.Client
}

// Server is the map bridge HTTP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	registry *prometheus.Registry
	bridge   *bridge.Bridge
	bus      *stream.Bus
	assets   *assets.Cache
	page     *browser.Library
	renderer *templates.Renderer
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	settings := cfg.Settings
	cacheOpts := []assets.Option{
		assets.WithLogger(logger.With("component", "assets")),
		assets.WithRetry(uint64(settings.Assets.Attempts), settings.Assets.Backoff),
		assets.WithTimeout(settings.Assets.Timeout),
	}
	if cfg.HTTPClient != nil {
		cacheOpts = append(cacheOpts, assets.WithHTTPClient(cfg.HTTPClient))
	}
	cache := assets.New(settings.Sources(), cacheOpts...)

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		registry: registry,
		assets:   cache,
		renderer: renderer,
		bus: stream.NewBus(
			stream.WithLogger(logger.With("component", "stream")),
			stream.WithBuffer(settings.Relay.Buffer),
			stream.WithRegisterer(registry),
		),
	}

	lib := cfg.Library
	if lib == nil {
		s.page = browser.New(cache,
			browser.WithLogger(logger.With("component", "browser")),
			browser.WithAssetPrefix(assetPrefix),
		)
		lib = s.page
	}
	s.bridge = bridge.New(lib,
		bridge.WithLogger(logger.With("component", "bridge")),
		bridge.WithMetrics(bridge.NewMetrics(registry)),
		bridge.WithValidator(schema.NewValidator()),
		bridge.WithSink(s.bus),
		bridge.WithAccessToken(settings.Mapbox.AccessToken),
		bridge.WithDefaultStyle(settings.Mapbox.Style),
	)

	humaConfig := huma.DefaultConfig("plat-mapbridge API", api.Version)
	humaConfig.Info.Description = "Drives interactive vector maps: markers, sources, layers, camera, controls and plugins, with map events streamed back over SSE."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(api.Links))
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Bridge returns the bridge the API drives.
func (s *Server) Bridge() *bridge.Bridge { return s.bridge }

// Prefetch warms the asset cache with the library bundle.
func (s *Server) Prefetch(ctx context.Context) error {
	return s.assets.Prefetch(ctx, assets.LibraryAssets()...)
}

// Close destroys every live map.
func (s *Server) Close(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range s.bridge.Maps() {
		g.Go(func() error {
			if err := s.bridge.Destroy(ctx, id); err != nil && !bridge.IsNotFound(err) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) routes() {
	api.NewHandler(s.bridge, s.bus, s.logger.With("component", "api")).Register(s.humaAPI)

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.mux.Handle(assetPrefix, s.assets)
	s.mux.Handle(scriptPath, templates.ScriptHandler())
	if s.page != nil {
		s.mux.Handle(socketPath, s.page)
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

// handleRoot renders the page hosting the maps. The maps query parameter
// pre-creates containers, e.g. /?maps=m1,m2.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var containers []string
	for _, id := range strings.Split(r.URL.Query().Get("maps"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			containers = append(containers, id)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.renderer.Page(w, templates.PageData{
		Title:      "plat-mapbridge",
		SocketPath: socketPath,
		ScriptPath: scriptPath,
		Containers: containers,
	})
	if err != nil {
		s.logger.Error("render page", "error", err)
	}
}
