package wire

import (
	"fmt"

	"github.com/roach88/crescent/internal/domain"
)

// Backend table names.
const (
	TableFamilies     = "families"
	TableProfiles     = "profiles"
	TableRewards      = "rewards"
	TableFastLogs     = "fast_logs"
	TableSuhoorLogs   = "suhoor_logs"
	TableMessages     = "messages"
	TableMemories     = "memories"
	TableTimeCapsules = "time_capsules"
)

var kindTables = map[domain.Kind]string{
	domain.KindReward:      TableRewards,
	domain.KindFastLog:     TableFastLogs,
	domain.KindSuhoorLog:   TableSuhoorLogs,
	domain.KindMessage:     TableMessages,
	domain.KindMemory:      TableMemories,
	domain.KindTimeCapsule: TableTimeCapsules,
}

// TableForKind returns the backend table holding records of kind k.
func TableForKind(k domain.Kind) (string, error) {
	t, ok := kindTables[k]
	if !ok {
		return "", fmt.Errorf("wire: no table for kind %q", k)
	}
	return t, nil
}

// KindForTable is the inverse of TableForKind.
func KindForTable(table string) (domain.Kind, bool) {
	for k, t := range kindTables {
		if t == table {
			return k, true
		}
	}
	return "", false
}

// ActivityTables lists the record tables in domain.Kinds order.
func ActivityTables() []string {
	out := make([]string, 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		out = append(out, kindTables[k])
	}
	return out
}

// ConflictKey returns the upsert conflict columns for kind k, or nil for
// append-only kinds.
func ConflictKey(k domain.Kind) []string {
	if k.OncePerDay() {
		return []string{"profile_id", "date"}
	}
	return nil
}

// FamilyToRow converts f to a families row.
func FamilyToRow(f domain.Family) Row {
	return Row{
		"id":              f.ID,
		"owner_id":        stringOrNil(f.OwnerID),
		"name":            f.Name,
		"season_start":    f.SeasonStart.String(),
		"start_confirmed": f.StartConfirmed,
		"timezone":        f.Timezone,
		"pre_dawn_time":   f.PreDawnTime,
		"sunset_time":     f.SunsetTime,
		"tier":            f.Tier,
		"premium":         f.Premium,
		"connection_code": f.ConnectionCode,
		"updated_at":      timestampValue(f.UpdatedAt),
	}
}

// FamilyFromRow converts a families row to a Family.
func FamilyFromRow(row Row) (domain.Family, error) {
	rd := &reader{table: TableFamilies, row: row}
	f := domain.Family{
		ID:             rd.str("id", true),
		OwnerID:        rd.str("owner_id", false),
		Name:           rd.str("name", true),
		SeasonStart:    rd.date("season_start", true),
		StartConfirmed: rd.boolean("start_confirmed"),
		Timezone:       rd.str("timezone", false),
		PreDawnTime:    rd.str("pre_dawn_time", false),
		SunsetTime:     rd.str("sunset_time", false),
		Tier:           rd.str("tier", false),
		Premium:        rd.boolean("premium"),
		ConnectionCode: rd.str("connection_code", false),
		UpdatedAt:      rd.timestamp("updated_at", false),
	}
	return f, rd.err
}

// ProfileToRow converts p to a profiles row.
func ProfileToRow(p domain.Profile) Row {
	return Row{
		"id":           p.ID,
		"family_id":    p.FamilyID,
		"nickname":     p.Nickname,
		"avatar":       p.Avatar,
		"profile_type": string(p.Type),
		"is_active":    p.Active,
	}
}

// ProfileFromRow converts a profiles row to a Profile.
func ProfileFromRow(row Row) (domain.Profile, error) {
	rd := &reader{table: TableProfiles, row: row}
	p := domain.Profile{
		ID:       rd.str("id", true),
		FamilyID: rd.str("family_id", true),
		Nickname: rd.str("nickname", true),
		Avatar:   rd.str("avatar", false),
		Type:     domain.ProfileType(rd.str("profile_type", true)),
		Active:   rd.boolean("is_active"),
	}
	if rd.err == nil && !domain.ValidProfileTypes[p.Type] {
		rd.fail("profile_type", "unknown profile type %q", p.Type)
	}
	return p, rd.err
}

// RecordToRow converts r to a row of its kind's table. The server ID is
// omitted when empty so inserts let the backend assign it.
func RecordToRow(r domain.Record) (Row, error) {
	if _, err := TableForKind(r.Kind); err != nil {
		return nil, err
	}
	row := Row{
		"client_id":  r.ClientID,
		"family_id":  r.FamilyID,
		"profile_id": r.ProfileID,
		"date":       r.Date.String(),
		"day_index":  r.DayIndex,
		"created_at": timestampValue(r.CreatedAt),
	}
	if r.ID != "" {
		row["id"] = r.ID
	}

	switch r.Kind {
	case domain.KindReward:
		row["points"] = r.Points
		row["category"] = r.Category
	case domain.KindFastLog:
		row["status"] = r.Status
		row["completed"] = r.Completed
	case domain.KindSuhoorLog:
		row["note"] = r.Note
	case domain.KindMessage:
		row["to_profile_id"] = r.ToProfileID
		row["body"] = r.Body
		row["favorite"] = r.Favorite
	case domain.KindMemory:
		row["caption"] = r.Caption
		row["favorite"] = r.Favorite
	case domain.KindTimeCapsule:
		row["body"] = r.Body
		row["unlock_day"] = r.UnlockDay
		row["completed"] = r.Completed
	}
	return row, nil
}

// RecordFromRow converts a row of the given kind's table to a Record.
func RecordFromRow(kind domain.Kind, row Row) (domain.Record, error) {
	table, err := TableForKind(kind)
	if err != nil {
		return domain.Record{}, err
	}
	rd := &reader{table: table, row: row}
	r := domain.Record{
		ID:        rd.str("id", false),
		ClientID:  rd.str("client_id", true),
		Kind:      kind,
		FamilyID:  rd.str("family_id", true),
		ProfileID: rd.str("profile_id", true),
		Date:      rd.date("date", true),
		DayIndex:  rd.integer("day_index", true),
		CreatedAt: rd.timestamp("created_at", false),
	}

	switch kind {
	case domain.KindReward:
		r.Points = rd.integer("points", true)
		r.Category = rd.str("category", false)
	case domain.KindFastLog:
		r.Status = rd.str("status", true)
		r.Completed = rd.boolean("completed")
	case domain.KindSuhoorLog:
		r.Note = rd.str("note", false)
	case domain.KindMessage:
		r.ToProfileID = rd.str("to_profile_id", true)
		r.Body = rd.str("body", true)
		r.Favorite = rd.boolean("favorite")
	case domain.KindMemory:
		r.Caption = rd.str("caption", false)
		r.Favorite = rd.boolean("favorite")
	case domain.KindTimeCapsule:
		r.Body = rd.str("body", true)
		r.UnlockDay = rd.integer("unlock_day", true)
		r.Completed = rd.boolean("completed")
	}
	return r, rd.err
}

// PatchToRow converts a record patch to the set of columns it changes.
func PatchToRow(p domain.RecordPatch) Row {
	row := Row{}
	if p.Favorite != nil {
		row["favorite"] = *p.Favorite
	}
	if p.Caption != nil {
		row["caption"] = *p.Caption
	}
	if p.Completed != nil {
		row["completed"] = *p.Completed
	}
	return row
}
