// Package progression maps a family's reward total and composition to
// milestone unlocks.
//
// Configuration (daily caps, milestone thresholds, composition weights,
// avatar gates) is static data written in CUE and validated against an
// embedded schema; see default.cue. The Engine applies it deterministically.
package progression
