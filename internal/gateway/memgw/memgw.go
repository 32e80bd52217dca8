// Package memgw is an in-memory gateway.Gateway.
//
// It backs guest/demo mode and every coordinator test. Beyond the contract it
// offers an offline switch, scripted failures, a call log and a per-call hook
// so tests can observe and reorder gateway traffic deterministically.
package memgw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/wire"
)

// Operation names used in the call log, FailNext and hooks.
const (
	OpIdentity     = "identity"
	OpGetFamily    = "get_family"
	OpListProfiles = "list_profiles"
	OpListActivity = "list_activity"
	OpInsert       = "insert"
	OpUpsert       = "upsert"
	OpUpdate       = "update"
	OpSubscribe    = "subscribe"
)

// subscriberBuffer bounds each subscriber channel. Changes beyond it are
// dropped and logged.
const subscriberBuffer = 256

// Call is one entry in the call log.
type Call struct {
	Op    string
	Table string
}

// Hook runs before every call, outside the gateway lock. A non-nil error
// fails the call.
type Hook func(ctx context.Context, op, table string) error

type subscriber struct {
	familyID string
	tables   map[string]bool
	ch       chan gateway.Change
}

// Gateway is an in-memory backend of record.
//
// Thread-safety: Gateway is safe for concurrent use.
type Gateway struct {
	mu       sync.Mutex
	ids      domain.IDGenerator
	identity *gateway.Identity
	offline  bool
	tables   map[string][]wire.Row
	failures []scripted
	calls    []Call
	hook     Hook
	subs     map[*subscriber]struct{}
}

type scripted struct {
	op  string
	err error
}

// New creates an empty gateway assigning server ids from ids. A nil ids uses
// "srv-N" identifiers.
func New(ids domain.IDGenerator) *Gateway {
	if ids == nil {
		ids = domain.NewFixedGenerator("srv")
	}
	return &Gateway{
		ids:    ids,
		tables: make(map[string][]wire.Row),
		subs:   make(map[*subscriber]struct{}),
	}
}

// SignIn sets the identity returned by Identity.
func (g *Gateway) SignIn(id gateway.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.identity = &id
}

// SignOut clears the identity.
func (g *Gateway) SignOut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.identity = nil
}

// SetOffline makes every call fail with UNAVAILABLE while offline is true.
func (g *Gateway) SetOffline(offline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offline = offline
}

// FailNext makes the next call of op fail with err. Scripted failures are
// consumed in the order they were added.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, scripted{op: op, err: err})
}

// SetHook installs h; nil removes it.
func (g *Gateway) SetHook(h Hook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hook = h
}

// Calls returns a copy of the call log.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call{}, g.calls...)
}

// CallCount returns how many calls of op were made.
func (g *Gateway) CallCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (g *Gateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// Seed stores rows directly, assigning ids to rows without one. No
// subscriber is notified.
func (g *Gateway) Seed(table string, rows ...wire.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		r = r.Clone()
		if id, _ := r["id"].(string); id == "" {
			r["id"] = g.ids.Generate()
		}
		g.tables[table] = append(g.tables[table], r)
	}
}

// Rows returns copies of every row in table, in insertion order.
func (g *Gateway) Rows(table string) []wire.Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]wire.Row, 0, len(g.tables[table]))
	for _, r := range g.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

// Subscribers returns the number of live subscriptions.
func (g *Gateway) Subscribers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// begin records the call and decides whether it fails before touching data.
func (g *Gateway) begin(ctx context.Context, op, table string) error {
	g.mu.Lock()
	g.calls = append(g.calls, Call{Op: op, Table: table})
	hook := g.hook
	g.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, op, table); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return gateway.NewError(gateway.ErrCodeUnavailable, label(op, table), err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.offline {
		return gateway.NewError(gateway.ErrCodeUnavailable, label(op, table), errors.New("offline"))
	}
	for i, f := range g.failures {
		if f.op == op {
			g.failures = append(g.failures[:i], g.failures[i+1:]...)
			return f.err
		}
	}
	return nil
}

func label(op, table string) string {
	if table == "" {
		return op
	}
	return op + " " + table
}

// Identity implements gateway.Gateway.
func (g *Gateway) Identity(ctx context.Context) (gateway.Identity, error) {
	if err := g.begin(ctx, OpIdentity, ""); err != nil {
		return gateway.Identity{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return gateway.Identity{}, gateway.NewError(gateway.ErrCodeUnauthenticated, OpIdentity, nil)
	}
	return *g.identity, nil
}

// GetFamily implements gateway.Gateway.
func (g *Gateway) GetFamily(ctx context.Context, userID string) (wire.Row, error) {
	if err := g.begin(ctx, OpGetFamily, wire.TableFamilies); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.tables[wire.TableFamilies] {
		if r["owner_id"] == userID {
			return r.Clone(), nil
		}
	}
	return nil, gateway.NewError(gateway.ErrCodeNotFound, label(OpGetFamily, wire.TableFamilies),
		fmt.Errorf("no family owned by %s", userID))
}

// ListProfiles implements gateway.Gateway.
func (g *Gateway) ListProfiles(ctx context.Context, familyID string) ([]wire.Row, error) {
	if err := g.begin(ctx, OpListProfiles, wire.TableProfiles); err != nil {
		return nil, err
	}
	return g.filter(wire.TableProfiles, familyID, nil), nil
}

// ListActivity implements gateway.Gateway.
func (g *Gateway) ListActivity(ctx context.Context, familyID, table string, date *calendar.Date) ([]wire.Row, error) {
	if err := g.begin(ctx, OpListActivity, table); err != nil {
		return nil, err
	}
	return g.filter(table, familyID, date), nil
}

func (g *Gateway) filter(table, familyID string, date *calendar.Date) []wire.Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := []wire.Row{}
	for _, r := range g.tables[table] {
		if r["family_id"] != familyID {
			continue
		}
		if date != nil && r["date"] != date.String() {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// Insert implements gateway.Gateway.
func (g *Gateway) Insert(ctx context.Context, table string, row wire.Row) (wire.Row, error) {
	if err := g.begin(ctx, OpInsert, table); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	row = row.Clone()
	if cid, ok := row["client_id"]; ok {
		for _, r := range g.tables[table] {
			if r["client_id"] == cid {
				return r.Clone(), gateway.NewError(gateway.ErrCodeConflict, label(OpInsert, table),
					fmt.Errorf("client_id %v exists", cid))
			}
		}
	}
	if id, _ := row["id"].(string); id == "" {
		row["id"] = g.ids.Generate()
	} else if g.indexOf(table, id) >= 0 {
		return nil, gateway.NewError(gateway.ErrCodeConflict, label(OpInsert, table), fmt.Errorf("id %s exists", id))
	}
	g.tables[table] = append(g.tables[table], row)
	g.notify(table, gateway.OpInsert, row)
	return row.Clone(), nil
}

// Upsert implements gateway.Gateway.
func (g *Gateway) Upsert(ctx context.Context, table string, row wire.Row, conflictKey []string) (wire.Row, error) {
	if err := g.begin(ctx, OpUpsert, table); err != nil {
		return nil, err
	}
	if len(conflictKey) == 0 {
		return nil, gateway.NewError(gateway.ErrCodeInvalid, label(OpUpsert, table), errors.New("empty conflict key"))
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	row = row.Clone()
	for i, r := range g.tables[table] {
		if !sameKey(r, row, conflictKey) {
			continue
		}
		merged := r.Clone()
		for k, v := range row {
			if k == "id" {
				continue
			}
			merged[k] = v
		}
		g.tables[table][i] = merged
		g.notify(table, gateway.OpUpdate, merged)
		return merged.Clone(), nil
	}

	if id, _ := row["id"].(string); id == "" {
		row["id"] = g.ids.Generate()
	}
	g.tables[table] = append(g.tables[table], row)
	g.notify(table, gateway.OpInsert, row)
	return row.Clone(), nil
}

// Update implements gateway.Gateway.
func (g *Gateway) Update(ctx context.Context, table, id string, fields wire.Row) (wire.Row, error) {
	if err := g.begin(ctx, OpUpdate, table); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOf(table, id)
	if i < 0 {
		return nil, gateway.NewError(gateway.ErrCodeNotFound, label(OpUpdate, table), fmt.Errorf("id %s", id))
	}
	merged := g.tables[table][i].Clone()
	for k, v := range fields {
		if k == "id" {
			continue
		}
		merged[k] = v
	}
	g.tables[table][i] = merged
	g.notify(table, gateway.OpUpdate, merged)
	return merged.Clone(), nil
}

// Subscribe implements gateway.Gateway.
func (g *Gateway) Subscribe(ctx context.Context, familyID string, tables []string) (<-chan gateway.Change, error) {
	if err := g.begin(ctx, OpSubscribe, ""); err != nil {
		return nil, err
	}
	s := &subscriber{
		familyID: familyID,
		tables:   make(map[string]bool, len(tables)),
		ch:       make(chan gateway.Change, subscriberBuffer),
	}
	for _, t := range tables {
		s.tables[t] = true
	}

	g.mu.Lock()
	g.subs[s] = struct{}{}
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		delete(g.subs, s)
		close(s.ch)
		g.mu.Unlock()
	}()
	return s.ch, nil
}

// notify fans a change out to matching subscribers. Caller holds g.mu.
func (g *Gateway) notify(table string, op gateway.ChangeOp, row wire.Row) {
	family, _ := row["family_id"].(string)
	if table == wire.TableFamilies {
		family, _ = row["id"].(string)
	}
	for s := range g.subs {
		if s.familyID != family || !s.tables[table] {
			continue
		}
		select {
		case s.ch <- gateway.Change{Table: table, Op: op, Row: row.Clone()}:
		default:
			slog.Warn("memgw: subscriber full, dropping change", "table", table, "family", family)
		}
	}
}

func (g *Gateway) indexOf(table, id string) int {
	for i, r := range g.tables[table] {
		if r["id"] == id {
			return i
		}
	}
	return -1
}

func sameKey(a, b wire.Row, key []string) bool {
	for _, k := range key {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}

var _ gateway.Gateway = (*Gateway)(nil)
