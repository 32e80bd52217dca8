package syncer

import (
	"context"
	"log/slog"

	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/wire"
)

// subscribe listens for changes to the family's activity tables. A
// producer goroutine forwards each change into the event queue, tagged
// with the subscription number so changes from a cancelled subscription
// are dropped.
func (c *Coordinator) subscribe(ctx context.Context, familyID string) {
	if c.cancelSub != nil && c.subFamily == familyID {
		return
	}
	c.stopSubscription()

	sctx, cancel := context.WithCancel(ctx)
	ch, err := c.gw.Subscribe(sctx, familyID, wire.ActivityTables())
	if err != nil {
		cancel()
		slog.Warn("syncer: realtime subscription failed", "family", familyID, "error", err)
		return
	}
	c.sub++
	sub := c.sub
	c.cancelSub = cancel
	c.subFamily = familyID
	slog.Debug("syncer: subscribed", "family", familyID, "subscription", sub)

	go func() {
		for change := range ch {
			if !c.queue.Enqueue(Event{Type: EventPush, Push: &pushEvent{sub: sub, change: change}}) {
				cancel()
				return
			}
		}
	}()
}

func (c *Coordinator) stopSubscription() {
	if c.cancelSub == nil {
		return
	}
	c.cancelSub()
	c.cancelSub = nil
	c.subFamily = ""
	c.sub++
}

// applyChange merges a pushed activity row into the store.
func (c *Coordinator) applyChange(change gateway.Change) {
	kind, ok := wire.KindForTable(change.Table)
	if !ok {
		return
	}
	r, err := wire.RecordFromRow(kind, change.Row)
	if err != nil {
		slog.Warn("syncer: skipping undecodable push", "table", change.Table, "error", err)
		return
	}
	if c.store.ApplyRemoteRecord(r) {
		slog.Debug("syncer: applied push", "kind", kind, "client_id", r.ClientID, "op", change.Op)
	}
}
