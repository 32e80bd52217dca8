package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/store"
	"github.com/roach88/crescent/internal/wire"
)

// drain runs one pass over the pending queue in FIFO order.
//
// No pass runs while a pull is outstanding: a write confirmed after the
// pull read its table would be missing from the result and dropped by the
// merge. handlePull drains once the result is applied.
func (c *Coordinator) drain(ctx context.Context) {
	if !c.ready() || !c.online || c.rejected {
		return
	}
	if c.pulling {
		slog.Debug("syncer: drain deferred until the pull lands", "generation", c.gen)
		return
	}
	pending := c.store.Pending()
	if len(pending) == 0 {
		return
	}
	pass := c.store.BeginPass()
	blocked := make(map[string]bool)
	sent := 0

	for _, a := range pending {
		if ctx.Err() != nil {
			break
		}
		if blocked[a.RecordKey] {
			continue
		}
		if !store.Eligible(a, pass) {
			// Later actions on the same key must not overtake it.
			blocked[a.RecordKey] = true
			continue
		}

		serverID, err := c.send(ctx, a)
		if err == nil || gateway.IsConflict(err) {
			if err != nil {
				slog.Info("syncer: write already applied", "action", a.Kind, "key", a.RecordKey)
			}
			c.store.ConfirmAction(a, serverID)
			sent++
			continue
		}

		if gateway.IsUnauthenticated(err) {
			// Not the action's fault; hold the queue until a new session.
			c.rejected = true
			c.recordError(err)
			slog.Warn("syncer: session rejected while draining", "error", err)
			break
		}
		c.store.FailAction(a.ID, err, c.maxRetries)
		c.recordError(err)
		if gateway.IsTransient(err) {
			slog.Info("syncer: drain pass stopped", "pass", pass, "action", a.Kind, "error", err)
			break
		}
		slog.Warn("syncer: write rejected", "action", a.Kind, "key", a.RecordKey, "error", err)
		blocked[a.RecordKey] = true
	}

	slog.Debug("syncer: drain pass done", "pass", pass, "sent", sent)
}

// send performs the gateway write for a and returns the server ID of the
// written record, when there is one.
func (c *Coordinator) send(ctx context.Context, a domain.PendingAction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	switch a.Kind {
	case domain.ActionInsertRecord, domain.ActionUpsertRecord:
		r, err := a.Record()
		if err != nil {
			return "", invalid(a, err)
		}
		table, err := wire.TableForKind(r.Kind)
		if err != nil {
			return "", invalid(a, err)
		}
		row, err := wire.RecordToRow(r)
		if err != nil {
			return "", invalid(a, err)
		}
		var out wire.Row
		if a.Kind == domain.ActionUpsertRecord {
			out, err = c.gw.Upsert(ctx, table, row, wire.ConflictKey(r.Kind))
		} else {
			out, err = c.gw.Insert(ctx, table, row)
		}
		return rowID(out), err

	case domain.ActionUpdateRecord:
		u, err := a.Update()
		if err != nil {
			return "", invalid(a, err)
		}
		table, err := wire.TableForKind(u.Kind)
		if err != nil {
			return "", invalid(a, err)
		}
		r, ok := c.store.Record(u.ClientID)
		if !ok || !r.Confirmed() {
			return "", gateway.NewError(gateway.ErrCodeNotFound, "update "+table,
				fmt.Errorf("record %s has no server id yet", u.ClientID))
		}
		out, err := c.gw.Update(ctx, table, r.ID, wire.PatchToRow(u.Patch))
		return rowID(out), err

	case domain.ActionSaveProfile:
		p, err := a.Profile()
		if err != nil {
			return "", invalid(a, err)
		}
		_, err = c.gw.Upsert(ctx, wire.TableProfiles, wire.ProfileToRow(p), []string{"id"})
		return "", err

	case domain.ActionSaveFamily:
		f, err := a.Family()
		if err != nil {
			return "", invalid(a, err)
		}
		_, err = c.gw.Upsert(ctx, wire.TableFamilies, wire.FamilyToRow(f), []string{"id"})
		return "", err
	}
	return "", invalid(a, fmt.Errorf("unknown action kind %q", a.Kind))
}

func invalid(a domain.PendingAction, err error) error {
	return gateway.NewError(gateway.ErrCodeInvalid, string(a.Kind), err)
}

func rowID(row wire.Row) string {
	id, _ := row["id"].(string)
	return id
}
