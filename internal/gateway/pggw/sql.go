package pggw

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/wire"
)

// knownTables are the only tables statements may name.
var knownTables = map[string]bool{
	wire.TableFamilies:     true,
	wire.TableProfiles:     true,
	wire.TableRewards:      true,
	wire.TableFastLogs:     true,
	wire.TableSuhoorLogs:   true,
	wire.TableMessages:     true,
	wire.TableMemories:     true,
	wire.TableTimeCapsules: true,
}

var columnPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// dateColumns hold calendar dates rather than instants.
var dateColumns = map[string]bool{
	"date":         true,
	"season_start": true,
}

func checkTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// sortedColumns returns the row's columns in a stable order.
func sortedColumns(row wire.Row) ([]string, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if !columnPattern.MatchString(c) {
			return nil, fmt.Errorf("invalid column %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func buildList(table, familyID string, date *calendar.Date) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	sql := "SELECT * FROM " + ident(table) + " WHERE family_id = $1"
	args := []any{familyID}
	if date != nil {
		sql += " AND date = $2"
		args = append(args, date.String())
	}
	return sql + " ORDER BY created_at, id", args, nil
}

func buildLookup(table, column string, value any) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if !columnPattern.MatchString(column) {
		return "", nil, fmt.Errorf("invalid column %q", column)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", ident(table), ident(column)), []any{value}, nil
}

func buildInsert(table string, row wire.Row) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	cols, err := sortedColumns(row)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, errors.New("empty row")
	}
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = ident(c)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident(table), strings.Join(names, ", "), strings.Join(params, ", "))
	return sql, args, nil
}

func buildUpsert(table string, row wire.Row, conflictKey []string) (string, []any, error) {
	if len(conflictKey) == 0 {
		return "", nil, errors.New("empty conflict key")
	}
	insert, args, err := buildInsert(table, row)
	if err != nil {
		return "", nil, err
	}
	isKey := make(map[string]bool, len(conflictKey))
	keys := make([]string, len(conflictKey))
	for i, k := range conflictKey {
		if _, ok := row[k]; !ok || !columnPattern.MatchString(k) {
			return "", nil, fmt.Errorf("conflict column %q not in row", k)
		}
		isKey[k] = true
		keys[i] = ident(k)
	}

	cols, _ := sortedColumns(row)
	var sets []string
	for _, c := range cols {
		if c == "id" || isKey[c] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident(c), ident(c)))
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	sql := fmt.Sprintf("%s ON CONFLICT (%s) %s RETURNING *", insert, strings.Join(keys, ", "), action)
	return sql, args, nil
}

func buildUpdate(table, id string, fields wire.Row) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	fields = fields.Clone()
	delete(fields, "id")
	cols, err := sortedColumns(fields)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, errors.New("no fields to update")
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", ident(c), i+1)
		args = append(args, fields[c])
	}
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING *",
		ident(table), strings.Join(sets, ", "), len(cols)+1)
	return sql, args, nil
}

// normalizeRow converts driver values into the JSON-safe shapes the wire
// layer and Redis payloads expect.
func normalizeRow(m map[string]any) wire.Row {
	row := make(wire.Row, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case [16]byte:
			row[k] = uuid.UUID(x).String()
		case time.Time:
			if dateColumns[k] {
				row[k] = calendar.DateOf(x).String()
			} else {
				row[k] = x.UTC().Format(time.RFC3339Nano)
			}
		default:
			row[k] = v
		}
	}
	return row
}

// classify maps driver errors onto the gateway taxonomy.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return gateway.NewError(gateway.ErrCodeConflict, op, err)
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			return gateway.NewError(gateway.ErrCodeInvalid, op, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return gateway.NewError(gateway.ErrCodeUnavailable, op, err)
		}
		return gateway.NewError(gateway.ErrCodeInternal, op, err)
	}

	var connErr *pgconn.ConnectError
	switch {
	case errors.As(err, &connErr),
		pgconn.Timeout(err),
		pgconn.SafeToRetry(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return gateway.NewError(gateway.ErrCodeUnavailable, op, err)
	}
	return gateway.NewError(gateway.ErrCodeInternal, op, err)
}
