package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/labelexport/internal/config"
	"github.com/JonMunkholm/labelexport/internal/core"
)

type stubSource struct {
	records map[string][]core.Record
	err     error
}

func (s stubSource) LabelsByLabeler(_ context.Context, labelerID string) ([]core.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[labelerID], nil
}

type stubHealth struct{ err error }

func (h stubHealth) Ping(context.Context) error { return h.err }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Export: config.ExportConfig{MaxBodySize: 1 << 20, Timeout: time.Second},
	}
}

func newTestServer(t *testing.T, src core.LabelSource, health HealthChecker, cfg *config.Config) *Server {
	t.Helper()
	svc, err := core.NewService(src, cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewServer(svc, health, cfg)
}

func storedLabels() stubSource {
	return stubSource{records: map[string][]core.Record{
		"labeler_1": {
			{
				"task_id":            "42",
				"labeler_id":         "labeler_1",
				"timestamp":          "2024-01-01T00:00:00+00:00",
				"time_spent_seconds": "30",
				"standards": []any{
					map[string]any{"id": "3.NF.A.1"},
					map[string]any{"id": "3.NF.A.2"},
				},
			},
		},
	}}
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleExport(t *testing.T) {
	s := newTestServer(t, storedLabels(), stubHealth{}, testConfig())

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/labels/export?labeler_id=labeler_1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="labeler_labeler_1.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("X-Export-ID") == "" {
		t.Error("X-Export-ID should be set")
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus 1", len(rows))
	}
	want := []string{"42", "labeler_1", "2024-01-01T00:00:00+00:00", "30", "3.NF.A.1", "", "", "3.NF.A.2", ""}
	if strings.Join(rows[1], "|") != strings.Join(want, "|") {
		t.Errorf("row = %q, want %q", rows[1], want)
	}
}

func TestHandleExport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      stubSource
		url      string
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing labeler_id",
			src:      storedLabels(),
			url:      "/api/labels/export",
			wantCode: http.StatusBadRequest,
			wantErr:  "REQ001",
		},
		{
			name:     "unknown labeler",
			src:      storedLabels(),
			url:      "/api/labels/export?labeler_id=nobody",
			wantCode: http.StatusNotFound,
			wantErr:  "LBL001",
		},
		{
			name:     "database down",
			src:      stubSource{err: errors.New("dial tcp: connection refused")},
			url:      "/api/labels/export?labeler_id=labeler_1",
			wantCode: http.StatusInternalServerError,
			wantErr:  "DB004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.src, stubHealth{}, testConfig())
			rec := do(t, s, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", body.Code, tt.wantErr)
			}
		})
	}
}

func TestHandleConvert(t *testing.T) {
	s := newTestServer(t, storedLabels(), stubHealth{}, testConfig())

	body := `{"task_id":"t1","labeler_id":"l1","timestamp":"2024-01-01T00:00:00Z","time_spent_seconds":12,"standards":[{"id":"s1","code":"C1","description":"desc"},{"id":"s2","code":"C2"}]}
{broken
{"task_id":"t2","labeler_id":"l2"}
`
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/labels/convert", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Skipped-Lines"); got != "1" {
		t.Errorf("X-Skipped-Lines = %q, want 1", got)
	}

	want := strings.Join(core.Columns, ",") + "\r\n" +
		"t1,l1,2024-01-01T00:00:00Z,12,s1,C1,desc,s2,C2\r\n" +
		"t2,l2,,,,,,,\r\n"
	if rec.Body.String() != want {
		t.Errorf("body =\n%q\nwant\n%q", rec.Body.String(), want)
	}
}

func TestHandleConvert_NoLabels(t *testing.T) {
	s := newTestServer(t, storedLabels(), stubHealth{}, testConfig())

	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/labels/convert", strings.NewReader("\n\nnope\n")))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("X-Skipped-Lines"); got != "1" {
		t.Errorf("X-Skipped-Lines = %q, want 1", got)
	}
}

func TestHandleConvert_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Export.MaxBodySize = 16
	s := newTestServer(t, storedLabels(), stubHealth{}, cfg)

	body := strings.Repeat(`{"task_id":"t1"}`+"\n", 10)
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/labels/convert", strings.NewReader(body)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestHandlePreview(t *testing.T) {
	s := newTestServer(t, storedLabels(), stubHealth{}, testConfig())

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/labels/labeler_1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<td>3.NF.A.2</td>") {
		t.Errorf("preview missing secondary standard:\n%s", rec.Body.String())
	}
}

func TestHandlePreview_NotFoundRendersHTML(t *testing.T) {
	s := newTestServer(t, storedLabels(), stubHealth{}, testConfig())

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/labels/nobody", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Code: LBL001") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name     string
		health   stubHealth
		wantCode int
		wantStat string
	}{
		{"healthy", stubHealth{}, http.StatusOK, "ok"},
		{"database down", stubHealth{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, storedLabels(), tt.health, testConfig())
			rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != tt.wantStat {
				t.Errorf("status field = %q, want %q", body["status"], tt.wantStat)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, storedLabels(), stubHealth{}, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrMissingLabeler, http.StatusBadRequest},
		{core.ErrNoLabels, http.StatusNotFound},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMetrics_CountsExports(t *testing.T) {
	s := newTestServer(t, storedLabels(), stubHealth{}, testConfig())

	body := "{\"task_id\":\"t1\"}\n{broken\n{\"task_id\":\"t2\"}\n"
	do(t, s, httptest.NewRequest(http.MethodPost, "/api/labels/convert", strings.NewReader(body)))
	do(t, s, httptest.NewRequest(http.MethodGet, "/api/labels/export?labeler_id=nobody", nil))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := rec.Body.String()
	for _, want := range []string{
		`labelexport_records_exported_total{route="convert"} 2`,
		`labelexport_lines_skipped_total{route="convert"} 1`,
		`labelexport_exports_total{outcome="empty",route="export"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
