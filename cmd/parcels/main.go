package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-parcels/internal/logging"
	"github.com/joeblew999/plat-parcels/internal/server"
	"github.com/joeblew999/plat-parcels/internal/service"
)

// Options defines all CLI flags and env vars for the parcel explorer.
// Flags: --host, --port, --data-dir, --bucket, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_BUCKET, ...
type Options struct {
	Host         string        `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int           `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string        `doc:"Directory for the DuckDB file, empty for in-memory" default:".data"`
	Bucket       string        `doc:"Root of the parquet sources, a directory or gs:// prefix" default:".data/parquet"`
	Overlays     string        `doc:"YAML overlay configuration, empty for the built-in overlays"`
	PostgresDSN  string        `doc:"PostGIS connection string; replaces DuckDB when set"`
	RedisAddr    string        `doc:"Redis address for caching parcel lookups"`
	GCSKeyID     string        `doc:"GCS HMAC key ID for gs:// sources"`
	GCSSecret    string        `doc:"GCS HMAC secret for gs:// sources"`
	LogLevel     string        `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat    string        `doc:"Log format: json or console" default:"console"`
	FragmentsDir string        `doc:"Directory overriding the embedded HTML fragments"`
	SessionTTL   time.Duration `doc:"Idle time before a map session is closed" default:"2h"`
}

func newLogger(opts *Options) *zap.Logger {
	log, err := logging.New(opts.LogLevel, opts.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func newServer(ctx context.Context, opts *Options, log *zap.Logger) *server.Server {
	srv, err := server.New(ctx, server.Config{
		Host:         opts.Host,
		Port:         strconv.Itoa(opts.Port),
		DataDir:      opts.DataDir,
		Bucket:       opts.Bucket,
		OverlaysFile: opts.Overlays,
		PostgresDSN:  opts.PostgresDSN,
		RedisAddr:    opts.RedisAddr,
		GCSKeyID:     opts.GCSKeyID,
		GCSSecret:    opts.GCSSecret,
		FragmentsDir: opts.FragmentsDir,
		SessionTTL:   opts.SessionTTL,
	}, log)
	if err != nil {
		log.Fatal("server setup failed", zap.Error(err))
	}
	return srv
}

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 10 * time.Second

// serve runs hs until ctx is done, then shuts it down gracefully. A
// listener failure is returned as is.
func serve(ctx context.Context, hs *http.Server) error {
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			log := newLogger(opts)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := newServer(ctx, opts, log)
			defer srv.Close()
			go srv.RunSweeper(ctx)

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)
			log.Info("plat-parcels API server starting",
				zap.String("url", baseURL),
				zap.String("docs", baseURL+"/docs"),
				zap.String("openapi", baseURL+"/openapi.json"),
				zap.String("data_dir", opts.DataDir))

			httpServer := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			// Returning, not exiting, lets the deferred Close and Sync run.
			if err := serve(ctx, httpServer); err != nil {
				log.Error("server error", zap.Error(err))
				return
			}
			log.Info("server stopped")
		})
	})

	cli.Root().Use = "parcels"
	cli.Root().Short = "Property tax explorer with map selection and group comparison"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.DataDir = ""
			srv := newServer(context.Background(), opts, zap.NewNop())
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// tile subcommand: render one vector tile to a file
	tileCmd := &cobra.Command{
		Use:   "tile <overlay> <z> <x> <y>",
		Short: "Render one gzipped vector tile of a colored overlay",
		Args:  cobra.ExactArgs(4),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := newLogger(opts)
			ctx := context.Background()
			srv := newServer(ctx, opts, log)
			defer srv.Close()

			var zxy [3]uint32
			for i, a := range args[1:] {
				n, err := strconv.ParseUint(a, 10, 32)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Invalid tile coordinate %q\n", a)
					os.Exit(1)
				}
				zxy[i] = uint32(n)
			}
			overlays := srv.Services().Overlays
			t, err := overlays.Resolve(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			metric, _ := cmd.Flags().GetString("metric")
			out, _ := cmd.Flags().GetString("output")

			data, err := overlays.Tile(ctx, t, metric, maptile.New(zxy[1], zxy[2], maptile.Zoom(zxy[0])))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error rendering tile: %v\n", err)
				os.Exit(1)
			}
			if len(data) == 0 {
				fmt.Println("Tile is empty")
				return
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing tile: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Wrote %d bytes to %s\n", len(data), out)
		}),
	}
	tileCmd.Flags().StringP("metric", "m", service.DefaultMetric, "Metric the fill colors encode")
	tileCmd.Flags().StringP("output", "o", "tile.mvt", "Output file")
	cli.Root().AddCommand(tileCmd)

	// export subcommand: write a PMTiles archive of a colored overlay
	exportCmd := &cobra.Command{
		Use:   "export <overlay>",
		Short: "Export a colored overlay as a PMTiles archive",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := newLogger(opts)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			srv := newServer(ctx, opts, log)
			defer srv.Close()

			overlays := srv.Services().Overlays
			t, err := overlays.Resolve(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			metric, _ := cmd.Flags().GetString("metric")
			minZoom, _ := cmd.Flags().GetUint32("min-zoom")
			maxZoom, _ := cmd.Flags().GetUint32("max-zoom")
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = string(t) + ".pmtiles"
			}

			archive, err := overlays.Archive(ctx, t, metric, maptile.Zoom(minZoom), maptile.Zoom(maxZoom))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting overlay: %v\n", err)
				os.Exit(1)
			}
			f, err := os.Create(out)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", out, err)
				os.Exit(1)
			}
			defer f.Close()
			n, err := archive.WriteTo(f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error writing archive: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Wrote %d tiles (%d bytes) to %s\n", archive.Len(), n, out)
		}),
	}
	exportCmd.Flags().StringP("metric", "m", service.DefaultMetric, "Metric the fill colors encode")
	exportCmd.Flags().Uint32("min-zoom", 10, "Lowest zoom level")
	exportCmd.Flags().Uint32("max-zoom", 16, "Highest zoom level")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default <overlay>.pmtiles)")
	cli.Root().AddCommand(exportCmd)

	cli.Run()
}
