// Package domain defines the entities shared by the store, the sync
// coordinator and the wire mapping layer.
//
// This package contains types, validation and ID generation only. It imports
// nothing internal except calendar, so every other package can depend on it
// without cycles.
//
// Key design constraints:
//   - All JSON tags use snake_case
//   - Records carry two identities: ClientID (assigned locally, never changes)
//     and ID (assigned by the backend of record, empty until confirmed)
//   - Only a small set of record fields is mutable after creation
//     (see Kind.Mutable)
package domain
