package core

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const headerLine = "task_id,labeler_id,timestamp,time_spent_seconds,primary_standard_id,primary_standard_code,primary_standard_description,secondary_standard_ids,secondary_standard_codes"

func TestWriteCSV_EndToEndExample(t *testing.T) {
	input := `{"task_id":"t1","labeler_id":"l1","timestamp":"2024-01-01T00:00:00Z","time_spent_seconds":12,"standards":[{"id":"s1","code":"C1","description":"desc"},{"id":"s2","code":"C2"}]}
{"task_id":"t2","labeler_id":"l2"}
`
	res, err := ParseJSONL(strings.NewReader(input), discardLogger())
	if err != nil {
		t.Fatalf("ParseJSONL() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, res.Records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := headerLine + "\r\n" +
		"t1,l1,2024-01-01T00:00:00Z,12,s1,C1,desc,s2,C2\r\n" +
		"t2,l2,,,,,,,\r\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV_HeaderOnlyForNoRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if buf.String() != headerLine+"\r\n" {
		t.Errorf("WriteCSV(nil) = %q, want header only", buf.String())
	}
}

func TestWriteCSV_QuotesSpecialFields(t *testing.T) {
	records := []Record{
		{
			"task_id":   "t1",
			"timestamp": `say "hi"`,
			"standards": []any{
				map[string]any{"id": "s1", "description": "line one\nline two"},
				map[string]any{"id": "s2", "code": "C2"},
				map[string]any{"id": "s3", "code": "C3"},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"say ""hi"""`, `"s2, s3"`, `"C2, C3"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}

	// Round-trip through a CSV reader to confirm the quoting is well formed.
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("re-read CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[1][6]; got != "line one\r\nline two" && got != "line one\nline two" {
		t.Errorf("description = %q", got)
	}
	if rows[1][7] != "s2, s3" {
		t.Errorf("secondary ids = %q, want %q", rows[1][7], "s2, s3")
	}
}

func TestWriteCSV_RowCountMatchesRecords(t *testing.T) {
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, `{"task_id":"t","standards":[{"id":"a"},{"id":"b"}]}`)
	}
	res, err := ParseJSONL(strings.NewReader(strings.Join(lines, "\n")), discardLogger())
	if err != nil {
		t.Fatalf("ParseJSONL() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, res.Records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-read CSV: %v", err)
	}
	if len(rows) != 26 {
		t.Errorf("rows = %d, want 25 data rows plus header", len(rows))
	}
	for i, row := range rows {
		if len(row) != len(Columns) {
			t.Errorf("row %d has %d columns, want %d", i, len(row), len(Columns))
		}
	}
}
