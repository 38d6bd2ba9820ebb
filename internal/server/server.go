package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-parcels/internal/api"
	"github.com/joeblew999/plat-parcels/internal/api/mapui"
	"github.com/joeblew999/plat-parcels/internal/db"
	"github.com/joeblew999/plat-parcels/internal/humastar"
	"github.com/joeblew999/plat-parcels/internal/metrics"
	"github.com/joeblew999/plat-parcels/internal/service"
	"github.com/joeblew999/plat-parcels/internal/store"
	"github.com/joeblew999/plat-parcels/internal/templates"
)

// SweepInterval is how often idle sessions are closed.
const SweepInterval = time.Minute

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	DataDir      string   // empty keeps DuckDB in memory
	Bucket       string   // root of the default parquet sources, local or gs://
	OverlaysFile string   // optional YAML overlay configuration
	PostgresDSN  string   // use PostGIS instead of DuckDB when set
	RedisAddr    string   // cache parcel lookups when set
	Extensions   []string // DuckDB extensions; nil loads the defaults
	GCSKeyID     string
	GCSSecret    string
	FragmentsDir string // override the embedded HTML fragments
	SessionTTL   time.Duration
	CacheTTL     time.Duration
}

// Server is the parcel explorer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	links    *humastar.Links
	store    store.Store
	redis    redis.UniversalClient
	services *api.Services
	renderer *templates.Renderer
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New connects the data store and wires every route.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		config:  cfg,
		mux:     http.NewServeMux(),
		links:   humastar.NewLinks(),
		metrics: metrics.New(),
		log:     log,
	}

	file, err := service.LoadOverlayFile(cfg.OverlaysFile, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	backend, err := s.openStore(ctx, file.Sources)
	if err != nil {
		return nil, err
	}

	overlays, err := service.NewOverlayService(s.store, file.Overlays, s.metrics, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.services = &api.Services{
		Overlays: overlays,
		Sessions: service.NewSessionManager(overlays, s.metrics, cfg.SessionTTL, log),
		History:  service.NewHistoryService(s.store),
		Store:    s.store,
	}

	s.renderer, err = templates.New(cfg.FragmentsDir)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load fragments: %w", err)
	}

	humaConfig := huma.DefaultConfig("plat-parcels API", api.Version)
	humaConfig.Info.Description = "Property tax explorer: parcel search, tax history, colored overlays and map selection sessions."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes(api.Info{DataDir: cfg.DataDir, Backend: backend, Cache: s.redis != nil})
	return s, nil
}

// openStore connects PostGIS or DuckDB and wraps it in the Redis cache
// when configured. It returns the backend name.
func (s *Server) openStore(ctx context.Context, sources store.Sources) (string, error) {
	backend := "duckdb"
	if s.config.PostgresDSN != "" {
		st, err := store.ConnectPostGIS(ctx, s.config.PostgresDSN, sources, s.log)
		if err != nil {
			return "", err
		}
		s.store, backend = st, "postgis"
	} else {
		conn, err := db.Open(ctx, db.Config{
			DataDir:    s.config.DataDir,
			DBName:     "parcels",
			Extensions: s.config.Extensions,
			GCSKeyID:   s.config.GCSKeyID,
			GCSSecret:  s.config.GCSSecret,
		}, s.log)
		if err != nil {
			return "", err
		}
		s.store = store.NewDuckDB(conn, sources, s.log)
	}

	if s.config.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.config.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			// The cache is optional; serve uncached rather than fail.
			s.log.Warn("redis unavailable, parcel cache disabled",
				zap.String("addr", s.config.RedisAddr), zap.Error(err))
			client.Close()
		} else {
			s.redis = client
			s.store = store.NewCached(s.store, store.NewRedisCache(client, "parcels:"), s.config.CacheTTL, s.log)
		}
	}
	return backend, nil
}

func (s *Server) routes(info api.Info) {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services, info, s.log)

	// Map widget SSE routes using Huma + Datastar
	mapui.NewMapHandler(s.services.Sessions, s.services.Overlays, s.renderer, s.log).RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the wired services to CLI subcommands.
func (s *Server) Services() *api.Services {
	return s.services
}

// RunSweeper closes idle sessions until ctx is done.
func (s *Server) RunSweeper(ctx context.Context) {
	s.services.Sessions.Run(ctx, SweepInterval)
}

// Close closes the data store and the cache client.
func (s *Server) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-parcels",
		"status":  "running",
	})
}
