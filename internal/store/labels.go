// Package store reads label records from the labeling application's Postgres database.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/JonMunkholm/labelexport/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// labelsByLabelerQuery renders every column as text through to_jsonb so the
// export sees timestamps in ISO 8601 and numbers with their literal text,
// whatever the exact column types are.
const labelsByLabelerQuery = `
SELECT
	to_jsonb(task_id) #>> '{}',
	labeler_id,
	to_jsonb("timestamp") #>> '{}',
	to_jsonb(time_spent_seconds) #>> '{}',
	coalesce(to_jsonb(selected_standards), '[]'::jsonb)
FROM labels
WHERE labeler_id = $1
ORDER BY "timestamp" ASC`

// Labels is the Postgres-backed core.LabelSource.
type Labels struct {
	pool *pgxpool.Pool
}

// NewLabels creates a label store on an open pool.
func NewLabels(pool *pgxpool.Pool) *Labels {
	return &Labels{pool: pool}
}

// LabelsByLabeler returns the labeler's records ordered by submission time.
func (l *Labels) LabelsByLabeler(ctx context.Context, labelerID string) ([]core.Record, error) {
	rows, err := l.pool.Query(ctx, labelsByLabelerQuery, labelerID)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		var row labelRow
		if err := rows.Scan(&row.TaskID, &row.LabelerID, &row.Timestamp, &row.TimeSpentSeconds, &row.Standards); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}

		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("label for task %s: %w", row.TaskID.String, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return records, nil
}

// Ping verifies the database is reachable.
func (l *Labels) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// labelRow is one row of the labels table as scanned.
type labelRow struct {
	TaskID           pgtype.Text
	LabelerID        pgtype.Text
	Timestamp        pgtype.Text
	TimeSpentSeconds pgtype.Text
	Standards        []byte
}

// record converts the row into the shape ParseJSONL produces, so stored labels
// and exported JSONL files flatten identically. NULL columns are left out.
func (r labelRow) record() (core.Record, error) {
	rec := core.Record{}
	setText(rec, core.ColTaskID, r.TaskID)
	setText(rec, core.ColLabelerID, r.LabelerID)
	setText(rec, core.ColTimestamp, r.Timestamp)
	setText(rec, core.ColTimeSpentSeconds, r.TimeSpentSeconds)

	standards, err := decodeSelectedStandards(r.Standards)
	if err != nil {
		return nil, err
	}
	rec["standards"] = standards
	return rec, nil
}

func setText(rec core.Record, key string, t pgtype.Text) {
	if t.Valid {
		rec[key] = t.String
	}
}

// storedStandard accepts both the labeling UI's {standard_id, rank} selection
// entries and already-expanded {id, code, description} entries. The UI's
// entries carry no code or description, so those cells export empty.
type storedStandard struct {
	StandardID  string `json:"standard_id"`
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Rank        int    `json:"rank"`
}

// decodeSelectedStandards turns the selected_standards JSON into the ordered
// standards list Flatten expects. Entries are sorted by rank; equal ranks keep
// their stored order, so the rank-1 selection becomes the primary standard.
func decodeSelectedStandards(raw []byte) ([]any, error) {
	if len(raw) == 0 {
		return []any{}, nil
	}

	var selected []storedStandard
	if err := json.Unmarshal(raw, &selected); err != nil {
		return nil, fmt.Errorf("decode selected_standards: %w", err)
	}

	slices.SortStableFunc(selected, func(a, b storedStandard) int {
		return cmp.Compare(a.Rank, b.Rank)
	})

	standards := make([]any, 0, len(selected))
	for _, s := range selected {
		id := s.ID
		if id == "" {
			id = s.StandardID
		}
		standards = append(standards, map[string]any{
			"id":          id,
			"code":        s.Code,
			"description": s.Description,
		})
	}
	return standards, nil
}
