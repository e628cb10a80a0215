package store

import (
	"testing"

	"github.com/JonMunkholm/labelexport/internal/core"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgtype"
)

func text(s string) pgtype.Text { return pgtype.Text{String: s, Valid: true} }

func TestDecodeSelectedStandards(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []string
		wantErr bool
	}{
		{name: "empty bytes", raw: "", wantIDs: nil},
		{name: "empty array", raw: "[]", wantIDs: nil},
		{name: "null", raw: "null", wantIDs: nil},
		{
			name:    "sorted by rank",
			raw:     `[{"standard_id":"3.NF.A.2","rank":2},{"standard_id":"3.NF.A.1","rank":1},{"standard_id":"3.OA.B.5","rank":3}]`,
			wantIDs: []string{"3.NF.A.1", "3.NF.A.2", "3.OA.B.5"},
		},
		{
			name:    "equal ranks keep stored order",
			raw:     `[{"standard_id":"b"},{"standard_id":"a"}]`,
			wantIDs: []string{"b", "a"},
		},
		{
			name:    "expanded entries",
			raw:     `[{"id":"s1","code":"C1","description":"desc"}]`,
			wantIDs: []string{"s1"},
		},
		{name: "not json", raw: "{", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSelectedStandards([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeSelectedStandards() error = %v", err)
			}

			var ids []string
			for _, s := range got {
				ids = append(ids, s.(map[string]any)["id"].(string))
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabelRow_FlattensLikeJSONL(t *testing.T) {
	row := labelRow{
		TaskID:           text("42"),
		LabelerID:        text("labeler_1"),
		Timestamp:        text("2024-01-01T00:00:00+00:00"),
		TimeSpentSeconds: text("12"),
		Standards:        []byte(`[{"standard_id":"s2","rank":2},{"standard_id":"s1","rank":1},{"standard_id":"s3","rank":3}]`),
	}

	rec, err := row.record()
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}

	want := core.Row{
		TaskID:                 "42",
		LabelerID:              "labeler_1",
		Timestamp:              "2024-01-01T00:00:00+00:00",
		TimeSpentSeconds:       "12",
		PrimaryStandardID:      "s1",
		SecondaryStandardIDs:   "s2, s3",
		SecondaryStandardCodes: ", ",
	}
	if diff := cmp.Diff(want, core.Flatten(rec)); diff != "" {
		t.Errorf("Flatten(record()) mismatch (-want +got):\n%s", diff)
	}
}

func TestLabelRow_NullColumnsOmitted(t *testing.T) {
	rec, err := labelRow{LabelerID: text("l1")}.record()
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if _, ok := rec[core.ColTaskID]; ok {
		t.Error("NULL task_id should be omitted")
	}
	if got := core.Flatten(rec); got.LabelerID != "l1" || got.PrimaryStandardID != "" {
		t.Errorf("Flatten() = %+v", got)
	}
}
