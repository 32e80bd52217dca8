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

// startPull launches an off-loop pull tagged with a new generation.
// Offline, the pull waits for connectivity.
func (c *Coordinator) startPull(ctx context.Context, reason string) {
	if !c.online {
		slog.Debug("syncer: pull deferred until online", "reason", reason)
		return
	}
	c.gen++
	gen := c.gen
	c.pulled = true
	c.pulling = true
	c.setSyncing()
	slog.Info("syncer: pulling", "reason", reason, "generation", gen)

	go func() {
		pctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		rs, err := c.fetch(pctx)
		c.queue.Enqueue(Event{Type: EventPullResult, Pull: &pullResult{gen: gen, state: rs, err: err}})
	}()
}

// fetch reads the signed-in user's family, profiles and every activity
// kind. A user without a family yields an empty state, not an error.
// Rows that fail to decode are skipped.
func (c *Coordinator) fetch(ctx context.Context) (store.RemoteState, error) {
	var rs store.RemoteState

	id, err := c.gw.Identity(ctx)
	if err != nil {
		return rs, err
	}
	rs.UserID = id.UserID
	famRow, err := c.gw.GetFamily(ctx, id.UserID)
	if gateway.IsNotFound(err) {
		return rs, nil
	}
	if err != nil {
		return rs, err
	}
	fam, err := wire.FamilyFromRow(famRow)
	if err != nil {
		return rs, gateway.NewError(gateway.ErrCodeInvalid, "get_family families", err)
	}
	rs.Family = &fam

	profRows, err := c.gw.ListProfiles(ctx, fam.ID)
	if err != nil {
		return rs, err
	}
	rs.Profiles = make([]domain.Profile, 0, len(profRows))
	for _, row := range profRows {
		p, err := wire.ProfileFromRow(row)
		if err != nil {
			slog.Warn("syncer: skipping undecodable profile", "error", err)
			continue
		}
		rs.Profiles = append(rs.Profiles, p)
	}

	rs.Records = []domain.Record{}
	for _, kind := range domain.Kinds {
		table, err := wire.TableForKind(kind)
		if err != nil {
			return rs, err
		}
		rows, err := c.gw.ListActivity(ctx, fam.ID, table, nil)
		if err != nil {
			return rs, err
		}
		for _, row := range rows {
			r, err := wire.RecordFromRow(kind, row)
			if err != nil {
				slog.Warn("syncer: skipping undecodable record", "table", table, "error", err)
				continue
			}
			rs.Records = append(rs.Records, r)
		}
	}
	return rs, nil
}

// handlePull applies a pull result unless a newer pull or a sign-out has
// overtaken it.
func (c *Coordinator) handlePull(ctx context.Context, r *pullResult) {
	if r.gen != c.gen {
		slog.Debug("syncer: discarding stale pull", "generation", r.gen, "current", c.gen)
		return
	}
	c.pulling = false

	if r.err != nil {
		if gateway.IsUnauthenticated(r.err) {
			// Keep the guard: retrying cannot help until a new sign-in.
			c.rejected = true
			slog.Warn("syncer: pull rejected, continuing with local data", "error", r.err)
		} else {
			c.pulled = false
			slog.Warn("syncer: pull failed", "error", r.err)
		}
		c.store.SetStatus(func(s *store.Status) {
			s.State = store.StateSyncFailed
			s.Syncing = false
			s.Loaded = true
			s.LastError = fmt.Sprintf("pull: %v", r.err)
		})
		return
	}

	c.rejected = false
	c.store.ReplaceFromRemote(r.state)
	c.store.SetStatus(func(s *store.Status) {
		s.State = store.StateSynced
		s.Syncing = false
		s.Loaded = true
		s.LastError = ""
	})
	if r.state.Family != nil && c.running {
		c.subscribe(ctx, r.state.Family.ID)
	}
	c.drain(ctx)
}
