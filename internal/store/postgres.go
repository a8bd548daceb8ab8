package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// Postgres implements RecordStore on a single table whose columns mirror the
// shared record field keys. It exists for deployments that track requests in
// their own database instead of Airtable.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// patchColumns are the only columns a lifecycle write may touch.
var patchColumns = map[string]bool{
	domain.FieldStatus:      true,
	domain.FieldJobID:       true,
	domain.FieldErrorLog:    true,
	domain.FieldOutputVideo: true,
	domain.FieldVideoURL:    true,
}

// NewPostgres creates a Postgres record store over the given pool and table.
func NewPostgres(pool *pgxpool.Pool, table string) (*Postgres, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		table = "video_requests"
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	return &Postgres{pool: pool, table: table}, nil
}

// Fetch reads the generation inputs for one record.
func (p *Postgres) Fetch(ctx context.Context, recordID string) (*domain.RecordFields, error) {
	query := fmt.Sprintf(`
SELECT COALESCE(input_image, '[]'::jsonb),
       COALESCE(custom_prompt, ''),
       COALESCE(preset_prompt, ''),
       COALESCE(duration, 0),
       COALESCE(aspect_ratio, '')
FROM %s
WHERE id = $1;
`, p.table)
	row := p.pool.QueryRow(ctx, query, recordID)
	var (
		rawImages []byte
		fields    domain.RecordFields
	)
	if err := row.Scan(
		&rawImages,
		&fields.CustomPrompt,
		&fields.PresetPrompt,
		&fields.Duration,
		&fields.AspectRatio,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres: record %s: %w", recordID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: fetch record: %w", err)
	}
	if len(rawImages) > 0 {
		if err := json.Unmarshal(rawImages, &fields.InputImage); err != nil {
			return nil, fmt.Errorf("postgres: decode input_image: %w", err)
		}
	}
	return &fields, nil
}

// Update merge-patches lifecycle columns for one record.
func (p *Postgres) Update(ctx context.Context, recordID string, patch domain.RecordPatch) error {
	if len(patch) == 0 {
		return nil
	}
	query, args, err := buildPatchSQL(p.table, recordID, patch)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: record %s: %w", recordID, domain.ErrNotFound)
	}
	return nil
}

// buildPatchSQL renders a single-row UPDATE from a patch. Keys are sorted so
// the statement is deterministic for a given patch.
func buildPatchSQL(table, recordID string, patch domain.RecordPatch) (string, []any, error) {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		if !patchColumns[k] {
			return "", nil, fmt.Errorf("postgres: column %q is not patchable", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	args = append(args, recordID)
	for i, k := range keys {
		val := patch[k]
		if k == domain.FieldOutputVideo {
			encoded, err := json.Marshal(val)
			if err != nil {
				return "", nil, fmt.Errorf("postgres: encode output_video: %w", err)
			}
			val = encoded
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", k, i+2))
		args = append(args, val)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1;", table, strings.Join(sets, ", "))
	return query, args, nil
}

func validIdentifier(name string) bool {
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return name != ""
}

var _ RecordStore = (*Postgres)(nil)
