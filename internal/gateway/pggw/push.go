package pggw

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/wire"
)

// changeBuffer bounds the channel handed to subscribers.
const changeBuffer = 64

// channelFor names the Redis channel carrying one family's changes.
func channelFor(prefix, familyID string) string {
	return prefix + ":family:" + familyID
}

func familyOf(c gateway.Change) string {
	key := "family_id"
	if c.Table == wire.TableFamilies {
		key = "id"
	}
	id, _ := c.Row[key].(string)
	return id
}

// publish is best effort: the row is already committed, and subscribers
// that miss a change catch up on their next pull.
func (g *Gateway) publish(ctx context.Context, c gateway.Change) {
	if g.rdb == nil {
		return
	}
	family := familyOf(c)
	if family == "" {
		return
	}
	payload, err := json.Marshal(c)
	if err != nil {
		slog.Warn("pggw: encode change", "table", c.Table, "error", err)
		return
	}
	if err := g.rdb.Publish(ctx, channelFor(g.prefix, family), payload).Err(); err != nil {
		slog.Warn("pggw: publish change", "table", c.Table, "family", family, "error", err)
	}
}

// decodeChange parses a published payload, keeping only changes to tables.
func decodeChange(payload string, tables map[string]bool) (gateway.Change, bool) {
	var c gateway.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		slog.Warn("pggw: decode change", "error", err)
		return c, false
	}
	if !tables[c.Table] || c.Row == nil {
		return c, false
	}
	return c, true
}

// Subscribe implements gateway.Gateway.
func (g *Gateway) Subscribe(ctx context.Context, familyID string, tables []string) (<-chan gateway.Change, error) {
	const op = "subscribe"
	out := make(chan gateway.Change, changeBuffer)
	if g.rdb == nil {
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}

	pubsub := g.rdb.Subscribe(ctx, channelFor(g.prefix, familyID))
	// Receive waits for the subscription confirmation so connection
	// failures surface here rather than as a silently closed channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, gateway.NewError(gateway.ErrCodeUnavailable, op, err)
	}

	want := make(map[string]bool, len(tables))
	for _, t := range tables {
		want[t] = true
	}

	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c, ok := decodeChange(msg.Payload, want)
				if !ok {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
