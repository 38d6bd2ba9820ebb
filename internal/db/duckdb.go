package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Config holds database configuration.
type Config struct {
	DataDir string // empty opens an in-memory database
	DBName  string

	// Extensions are installed and loaded on open. Defaults to
	// spatial, parquet and httpfs.
	Extensions []string

	// GCS credentials for gs:// parquet sources. Both must be set for the
	// secret to be created.
	GCSKeyID  string
	GCSSecret string
}

// DefaultExtensions are loaded when Config.Extensions is nil.
var DefaultExtensions = []string{"spatial", "parquet", "httpfs"}

// Open returns a DuckDB connection. The caller owns it and must Close it.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*sql.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "parcels"
		}
		dsn = filepath.Join(duckdbDir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	exts := cfg.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		// Offline hosts may fail INSTALL yet already have the extension.
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			log.Warn("duckdb extension unavailable", zap.String("extension", ext), zap.Error(err))
		}
	}

	if cfg.GCSKeyID != "" && cfg.GCSSecret != "" {
		stmt := fmt.Sprintf("CREATE OR REPLACE SECRET gcs_secret (TYPE gcs, KEY_ID %s, SECRET %s)",
			Quote(cfg.GCSKeyID), Quote(cfg.GCSSecret))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create gcs secret: %w", err)
		}
	}

	log.Info("duckdb opened", zap.String("path", dsnLabel(dsn)), zap.Strings("extensions", exts))
	return conn, nil
}

// Quote renders s as a SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func dsnLabel(dsn string) string {
	if dsn == "" {
		return ":memory:"
	}
	return dsn
}
