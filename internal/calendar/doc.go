// Package calendar resolves "what day is it in-season" for a family.
//
// Everything here is a pure function of its inputs. Callers pass the current
// instant and the family's *time.Location explicitly; nothing reads the wall
// clock.
//
// # Calendar-Day Semantics
//
// All season arithmetic is done on civil dates (Date), anchored at local
// midnight in the family's timezone. A user acting at 23:00 and again at
// 01:00 the next morning sees two different day indexes, regardless of how
// many hours elapsed or whether a DST transition happened in between.
//
// # Season Window
//
// The season covers SeasonLength calendar days starting at the start date:
// start .. start+29. Day indexes are 1-based and clamped to [1, SeasonLength].
//
// # Provisional Start Dates
//
// A start date is either confirmed by the family or provisional. While it is
// provisional, the last ConfirmationLeadDays days before it (and the start day
// itself) form the confirmation window. A window that passes without
// confirmation does not move the date: the provisional date stays
// authoritative until the family confirms retroactively.
package calendar
