// Package gateway defines the contract between the sync coordinator and the
// remote backend of record.
//
// All payloads cross the boundary as flat wire.Row values. Implementations
// map their native failures onto the Error taxonomy so the coordinator can
// tell a retryable network failure from a conflict or a rejected write.
package gateway

import (
	"context"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/wire"
)

// Identity is the authenticated user behind a gateway session.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// ChangeOp is the kind of write a Change reports.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
)

// Change is one realtime push notification.
type Change struct {
	Table string   `json:"table"`
	Op    ChangeOp `json:"op"`
	Row   wire.Row `json:"row"`
}

// Gateway is the remote data gateway.
//
// Every method is context-bound. Errors are *Error values (possibly
// wrapped); inspect them with IsTransient, IsConflict, IsUnauthenticated
// and IsNotFound.
type Gateway interface {
	// Identity returns the signed-in user, or an UNAUTHENTICATED error.
	Identity(ctx context.Context) (Identity, error)

	// GetFamily returns the family owned by userID, or NOT_FOUND.
	GetFamily(ctx context.Context, userID string) (wire.Row, error)

	// ListProfiles returns every profile of the family.
	ListProfiles(ctx context.Context, familyID string) ([]wire.Row, error)

	// ListActivity returns the family's rows in table, optionally limited
	// to one calendar date.
	ListActivity(ctx context.Context, familyID, table string, date *calendar.Date) ([]wire.Row, error)

	// Insert writes a new row and returns it as stored, including the
	// server-assigned id. A row whose client_id already exists yields
	// CONFLICT together with the stored row, so the caller can adopt its id.
	Insert(ctx context.Context, table string, row wire.Row) (wire.Row, error)

	// Upsert inserts row or replaces the existing row matching conflictKey.
	Upsert(ctx context.Context, table string, row wire.Row, conflictKey []string) (wire.Row, error)

	// Update changes fields on the row with the given server id.
	Update(ctx context.Context, table, id string, fields wire.Row) (wire.Row, error)

	// Subscribe streams changes to the family's rows in tables. The channel
	// is closed when ctx is cancelled or the subscription fails.
	Subscribe(ctx context.Context, familyID string, tables []string) (<-chan Change, error)
}
