// Package pggw is a gateway.Gateway backed by PostgreSQL (pgx/v5) with
// realtime push over Redis pub/sub (go-redis/v9).
//
// Every write publishes a gateway.Change to the family's Redis channel after
// the row is committed; Subscribe listens on that channel. Identity comes
// from an HS256 session token verified locally.
package pggw

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/wire"
)

//go:embed schema.sql
var schemaSQL string

// DefaultChannelPrefix prefixes every Redis channel name.
const DefaultChannelPrefix = "crescent"

// Config configures a Gateway.
type Config struct {
	PostgresURL string

	// RedisAddr enables realtime push. Empty disables publishing, and
	// Subscribe returns a channel that only closes on cancellation.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ChannelPrefix string

	// SessionToken is the signed-in user's session; Verifier checks it.
	SessionToken string
	Verifier     *gateway.TokenVerifier

	// Bootstrap creates the tables if they do not exist.
	Bootstrap bool
}

// Gateway is the Postgres + Redis gateway.
//
// Thread-safety: Gateway is safe for concurrent use.
type Gateway struct {
	pool     *pgxpool.Pool
	rdb      *redis.Client
	prefix   string
	token    string
	verifier *gateway.TokenVerifier
}

// Open connects to Postgres (and Redis when configured) and verifies both
// connections.
func Open(ctx context.Context, cfg Config) (*Gateway, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	g := &Gateway{
		pool:     pool,
		prefix:   cfg.ChannelPrefix,
		token:    cfg.SessionToken,
		verifier: cfg.Verifier,
	}
	if g.prefix == "" {
		g.prefix = DefaultChannelPrefix
	}
	if g.verifier == nil {
		g.verifier = gateway.NewTokenVerifier(nil, "")
	}

	if cfg.RedisAddr != "" {
		g.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := g.rdb.Ping(ctx).Err(); err != nil {
			g.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	if cfg.Bootstrap {
		if _, err := pool.Exec(ctx, schemaSQL); err != nil {
			g.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return g, nil
}

// Close releases the Postgres pool and Redis client.
func (g *Gateway) Close() {
	if g.rdb != nil {
		if err := g.rdb.Close(); err != nil {
			slog.Warn("pggw: close redis", "error", err)
		}
	}
	g.pool.Close()
}

// Identity implements gateway.Gateway.
func (g *Gateway) Identity(ctx context.Context) (gateway.Identity, error) {
	if err := ctx.Err(); err != nil {
		return gateway.Identity{}, gateway.NewError(gateway.ErrCodeUnavailable, "identity", err)
	}
	return g.verifier.Verify(g.token)
}

// GetFamily implements gateway.Gateway.
func (g *Gateway) GetFamily(ctx context.Context, userID string) (wire.Row, error) {
	const op = "get_family families"
	rows, err := g.query(ctx, op, `SELECT * FROM families WHERE owner_id = $1 ORDER BY updated_at DESC LIMIT 1`, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gateway.NewError(gateway.ErrCodeNotFound, op, fmt.Errorf("no family owned by %s", userID))
	}
	return rows[0], nil
}

// ListProfiles implements gateway.Gateway.
func (g *Gateway) ListProfiles(ctx context.Context, familyID string) ([]wire.Row, error) {
	return g.query(ctx, "list_profiles profiles",
		`SELECT * FROM profiles WHERE family_id = $1 ORDER BY nickname, id`, familyID)
}

// ListActivity implements gateway.Gateway.
func (g *Gateway) ListActivity(ctx context.Context, familyID, table string, date *calendar.Date) ([]wire.Row, error) {
	op := "list_activity " + table
	sql, args, err := buildList(table, familyID, date)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrCodeInvalid, op, err)
	}
	return g.query(ctx, op, sql, args...)
}

// Insert implements gateway.Gateway.
func (g *Gateway) Insert(ctx context.Context, table string, row wire.Row) (wire.Row, error) {
	op := "insert " + table
	sql, args, err := buildInsert(table, row)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrCodeInvalid, op, err)
	}
	out, err := g.write(ctx, op, table, gateway.OpInsert, sql+" RETURNING *", args)
	if !gateway.IsConflict(err) {
		return out, err
	}
	cid, ok := row["client_id"]
	if !ok {
		return nil, err
	}
	lookup, largs, lerr := buildLookup(table, "client_id", cid)
	if lerr != nil {
		return nil, err
	}
	rows, lerr := g.query(ctx, op, lookup, largs...)
	if lerr != nil || len(rows) == 0 {
		slog.Warn("pggw: conflicting row not found", "table", table, "client_id", cid, "error", lerr)
		return nil, err
	}
	return rows[0], err
}

// Upsert implements gateway.Gateway.
func (g *Gateway) Upsert(ctx context.Context, table string, row wire.Row, conflictKey []string) (wire.Row, error) {
	op := "upsert " + table
	sql, args, err := buildUpsert(table, row, conflictKey)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrCodeInvalid, op, err)
	}
	return g.write(ctx, op, table, gateway.OpUpdate, sql, args)
}

// Update implements gateway.Gateway.
func (g *Gateway) Update(ctx context.Context, table, id string, fields wire.Row) (wire.Row, error) {
	op := "update " + table
	sql, args, err := buildUpdate(table, id, fields)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrCodeInvalid, op, err)
	}
	return g.write(ctx, op, table, gateway.OpUpdate, sql, args)
}

func (g *Gateway) query(ctx context.Context, op, sql string, args ...any) ([]wire.Row, error) {
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classify(op, err)
	}
	out := make([]wire.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, normalizeRow(m))
	}
	return out, nil
}

func (g *Gateway) write(ctx context.Context, op, table string, changeOp gateway.ChangeOp, sql string, args []any) (wire.Row, error) {
	rows, err := g.query(ctx, op, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gateway.NewError(gateway.ErrCodeNotFound, op, nil)
	}
	row := rows[0]
	g.publish(ctx, gateway.Change{Table: table, Op: changeOp, Row: row})
	return row, nil
}

var _ gateway.Gateway = (*Gateway)(nil)
