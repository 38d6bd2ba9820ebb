package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostGIS is a Store over PostgreSQL with PostGIS geometry columns.
type PostGIS struct {
	sqlStore
}

// ConnectPostGIS opens a PostgreSQL connection string.
func ConnectPostGIS(ctx context.Context, dsn string, sources Sources, log *zap.Logger) (*PostGIS, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgis: %w", err)
	}
	return NewPostGIS(conn, sources, log), nil
}

// NewPostGIS wraps an open connection. Sources are table or view names and
// overlay geometry defaults to ST_AsBinary(geom).
func NewPostGIS(conn *sqlx.DB, sources Sources, log *zap.Logger) *PostGIS {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostGIS{sqlStore{
		db:       conn,
		sources:  sources,
		relation: func(s string) string { return s },
		geometry: func(cfg OverlayConfig) string {
			if cfg.GeometryExpr != "" {
				return cfg.GeometryExpr
			}
			return "ST_AsBinary(geom)"
		},
		log: log.Named("postgis"),
	}}
}

var _ Store = (*PostGIS)(nil)
