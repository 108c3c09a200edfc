package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const freeConnQuery = `
WITH
    cfg AS (
        SELECT
            current_setting('max_connections')::int                AS max_conn,
            current_setting('superuser_reserved_connections')::int AS super_res
    ),
    used AS (
        SELECT count(*) AS active_cnt
        FROM   pg_stat_activity
    )
SELECT
    (cfg.max_conn - cfg.super_res - used.active_cnt) > $1 AS free_more_than_threshold
FROM cfg, used;
`

// ConnGauge reports database connection headroom from live server state.
type ConnGauge struct {
	pool *pgxpool.Pool
}

func NewConnGauge(pool *pgxpool.Pool) *ConnGauge {
	return &ConnGauge{pool: pool}
}

// FreeConnectionsExceed reports whether the number of connection slots that
// are neither in use nor reserved for superusers exceeds threshold. Each
// call is a fresh round-trip; nothing is cached.
func (g *ConnGauge) FreeConnectionsExceed(ctx context.Context, threshold int) (bool, error) {
	var ok bool
	if err := g.pool.QueryRow(ctx, freeConnQuery, threshold).Scan(&ok); err != nil {
		return false, fmt.Errorf("query free connections: %w", err)
	}
	return ok, nil
}

// quoteRelation sanitizes a possibly schema-qualified relation name.
func quoteRelation(name string) string {
	parts := strings.Split(name, ".")
	return pgx.Identifier(parts).Sanitize()
}

// RowSink receives one header row followed by data rows. Satisfied by
// csv.Writer.
type RowSink interface {
	Write(record []string) error
}

// FetchIDs streams every value of idColumn from table in ascending order
// into sink, header first. Returns the number of ids written.
func FetchIDs(ctx context.Context, pool *pgxpool.Pool, table, idColumn string, sink RowSink) (int64, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		pgx.Identifier{idColumn}.Sanitize(), quoteRelation(table), pgx.Identifier{idColumn}.Sanitize())

	rows, err := pool.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("fetch ids: %w", err)
	}
	defer rows.Close()

	if err := sink.Write([]string{idColumn}); err != nil {
		return 0, err
	}

	var n int64
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return n, err
		}
		if err := sink.Write([]string{id}); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

// RangeSpec describes the slice each worker extracts.
type RangeSpec struct {
	Table    string
	IDColumn string
	Columns  []string
}

// ExtractRange streams all rows of spec.Columns whose id falls inclusively
// between minID and maxID, ordered by id, into sink (header first).
// Returns the number of data rows written.
func ExtractRange(ctx context.Context, pool *pgxpool.Pool, spec RangeSpec, minID, maxID string, sink RowSink) (int64, error) {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	idCol := pgx.Identifier{spec.IDColumn}.Sanitize()

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s BETWEEN $1 AND $2 ORDER BY %s",
		strings.Join(cols, ", "), quoteRelation(spec.Table), idCol, idCol)

	rows, err := pool.Query(ctx, q, minID, maxID)
	if err != nil {
		return 0, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	if err := sink.Write(spec.Columns); err != nil {
		return 0, err
	}

	record := make([]string, len(spec.Columns))
	var n int64
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return n, err
		}
		for i, v := range vals {
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = fmt.Sprint(v)
		}
		if err := sink.Write(record); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}
