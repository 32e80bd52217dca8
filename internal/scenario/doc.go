// Package scenario replays YAML-described household sessions through the
// local store, the progression engine and the sync coordinator.
//
// Each scenario runs in isolation: an in-memory snapshot persister, an
// in-memory gateway, sequential client IDs and a fixed wall clock. Two runs
// of the same file produce identical results, so the final state and the
// step trace can be compared against golden files.
//
// A scenario sets up one family and its profiles, then executes steps:
//
//	name: household-progress
//	description: Two members earn 35 points over three days.
//	now: "2026-02-20T12:00:00Z"
//	family:
//	  name: The Hadids
//	  season_start: "2026-02-18"
//	profiles:
//	  - {nickname: Mama, type: adult}
//	steps:
//	  - {action: reward, profile: Mama, points: 10}
//	  - {action: sync}
//	assertions:
//	  - {type: total_points, value: 10}
//
// Step outcomes are "ok", a validation code such as LIMIT_EXCEEDED, or a
// gateway code such as UNAVAILABLE. A step's expect field defaults to "ok".
package scenario
