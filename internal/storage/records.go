package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tazhate/flock/internal/domain"
)

// recordTables lists the tables form submissions may write and the columns
// they may touch. Table and column names are only ever interpolated from here.
var recordTables = map[string][]string{
	"members": {
		"first_name", "surname", "full_name", "email", "phone", "address",
		"status", "notes", "interests", "joining_us",
	},
	"prayer_requests": {
		"name", "email", "request", "status", "notes",
	},
}

// RecordColumns returns the writable columns of a form target table.
func RecordColumns(table string) ([]string, bool) {
	cols, ok := recordTables[table]
	if !ok {
		return nil, false
	}
	return append([]string(nil), cols...), true
}

func recordSchema(table string) (map[string]bool, error) {
	cols, ok := recordTables[table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown target table %q", domain.ErrInvalidInput, table)
	}
	allowed := make(map[string]bool, len(cols))
	for _, c := range cols {
		allowed[c] = true
	}
	return allowed, nil
}

// FindRecord returns the id and writable columns of the oldest row whose
// column equals value, or nil.
func (s *Storage) FindRecord(ctx context.Context, table, column, value string) (domain.Record, error) {
	allowed, err := recordSchema(table)
	if err != nil {
		return nil, err
	}
	if !allowed[column] {
		return nil, fmt.Errorf("%w: unknown column %q", domain.ErrInvalidInput, column)
	}

	cols := append([]string{"id"}, recordTables[table]...)
	row := s.db.QueryRowxContext(ctx,
		s.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY id LIMIT 1`, strings.Join(cols, ", "), table, column)),
		value,
	)
	rec := make(map[string]any)
	if err := row.MapScan(rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	for k, v := range rec {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
		}
	}
	return domain.Record(rec), nil
}

// InsertRecord writes a new row from the whitelisted columns of rec.
func (s *Storage) InsertRecord(ctx context.Context, table string, rec domain.Record) (int64, error) {
	cols, args, err := recordArgs(table, rec, false)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return s.insertReturningID(ctx, s.db, fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES RETURNING id`, table))
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return s.insertReturningID(ctx, s.db,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id`, table, strings.Join(cols, ", "), marks),
		args...,
	)
}

// UpdateRecord sets the whitelisted columns present in rec.
func (s *Storage) UpdateRecord(ctx context.Context, table string, id int64, rec domain.Record) error {
	cols, args, err := recordArgs(table, rec, false)
	if err != nil {
		return err
	}
	return s.updateRecord(ctx, table, id, cols, args)
}

// ReplaceRecord sets every whitelisted column: values from rec, NULL for the rest.
func (s *Storage) ReplaceRecord(ctx context.Context, table string, id int64, rec domain.Record) error {
	cols, args, err := recordArgs(table, rec, true)
	if err != nil {
		return err
	}
	return s.updateRecord(ctx, table, id, cols, args)
}

func (s *Storage) updateRecord(ctx context.Context, table string, id int64, cols []string, args []any) error {
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	n, err := s.exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, table, strings.Join(sets, ", ")),
		append(args, id)...,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// recordArgs orders the whitelisted columns of rec and encodes list values as
// JSON text. Unknown columns are an error; with all set, absent columns map to NULL.
func recordArgs(table string, rec domain.Record, all bool) ([]string, []any, error) {
	allowed, err := recordSchema(table)
	if err != nil {
		return nil, nil, err
	}
	for col := range rec {
		if !allowed[col] {
			return nil, nil, fmt.Errorf("%w: unknown column %q for %s", domain.ErrInvalidInput, col, table)
		}
	}

	var cols []string
	if all {
		cols = append(cols, recordTables[table]...)
	} else {
		for col := range rec {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		v, ok := rec[col]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []string:
			data, err := json.Marshal(t)
			if err != nil {
				return nil, nil, fmt.Errorf("encode %s: %w", col, err)
			}
			args[i] = string(data)
		default:
			args[i] = t
		}
	}
	return cols, args, nil
}
