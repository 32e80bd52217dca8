// Package store is the device-local cache of family data.
//
// The store holds the family, its profiles, activity records and the queue
// of pending actions, and persists all of them as one snapshot after every
// mutation. Mutations are applied locally first and queued for the sync
// coordinator; nothing here talks to the network.
//
// # Invariants
//
//   - Reads before Hydrate describe an unknown state; mutations return
//     NOT_HYDRATED until the snapshot is loaded.
//   - Records are identified by a client ID assigned here. The server ID
//     is attached once the backend confirms the write.
//   - Once-per-day kinds hold at most one record per (profile, date), and
//     their queued writes coalesce into one action.
//   - Actions sharing a record key drain in the order they were queued.
//
// # Persistence
//
// SQLitePersister keeps the snapshot in a single-row table, with
//   - WAL mode so a crash mid-write leaves the previous snapshot intact
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// MemoryPersister keeps it in memory for tests and guest sessions.
package store
