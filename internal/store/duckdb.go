package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DuckDB is a Store over a DuckDB connection, typically reading parquet.
type DuckDB struct {
	sqlStore
}

// NewDuckDB wraps conn, which the store takes ownership of. Overlay
// geometry defaults to ST_AsWKB(geometry).
func NewDuckDB(conn *sql.DB, sources Sources, log *zap.Logger) *DuckDB {
	if log == nil {
		log = zap.NewNop()
	}
	return &DuckDB{sqlStore{
		db:       sqlx.NewDb(conn, "duckdb"),
		sources:  sources,
		relation: Relation,
		geometry: func(cfg OverlayConfig) string {
			if cfg.GeometryExpr != "" {
				return cfg.GeometryExpr
			}
			return "ST_AsWKB(geometry)"
		},
		log: log.Named("duckdb"),
	}}
}

var _ Store = (*DuckDB)(nil)
