package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"donorwall/config"
	"donorwall/models"
	"donorwall/scraper"
	"donorwall/storage"
)

type stubRunner struct {
	result *scraper.CycleResult
	err    error
	calls  int
}

func (s *stubRunner) RunCycle(ctx context.Context) (*scraper.CycleResult, error) {
	s.calls++
	return s.result, s.err
}

func newTestServer(t *testing.T, runner CycleRunner) (*Server, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "donors.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(":0", store, runner, zerolog.Nop()), store
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestListDonors_Paging(t *testing.T) {
	s, store := newTestServer(t, &stubRunner{})
	names := []string{"A", "B", "C", "D", "E"}
	if _, err := store.ReplaceDonors(context.Background(), names); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := do(t, s, http.MethodGet, "/api/donors?page=2&per_page=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got []donorJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Name != "C" || got[1].Name != "D" {
		t.Fatalf("unexpected page %+v", got)
	}
	if got[0].Amount != 0 {
		t.Fatalf("expected amount 0, got %d", got[0].Amount)
	}
}

func TestListDonors_DefaultsAndEmpty(t *testing.T) {
	s, _ := newTestServer(t, &stubRunner{})

	rec := do(t, s, http.MethodGet, "/api/donors?page=abc")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestListDonors_HugePageIsEmpty(t *testing.T) {
	s, store := newTestServer(t, &stubRunner{})
	if _, err := store.ReplaceDonors(context.Background(), []string{"A", "B"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := do(t, s, http.MethodGet, "/api/donors?page=9223372036854775807&per_page=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty page, got %q", body)
	}
}

func TestScrapeDonors_Success(t *testing.T) {
	runner := &stubRunner{result: &scraper.CycleResult{RunID: "r1", DonorsWritten: 7, Status: models.RunStatusCompleted}}
	s, _ := newTestServer(t, runner)

	rec := do(t, s, http.MethodPost, "/scrape-donors")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Message     string `json:"message"`
		DonorsCount int    `json:"donors_count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.DonorsCount != 7 || body.Message == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one cycle, got %d", runner.calls)
	}
}

func TestScrapeDonors_NoDonors(t *testing.T) {
	runner := &stubRunner{result: &scraper.CycleResult{RunID: "r1"}, err: scraper.ErrNoDonors}
	s, _ := newTestServer(t, runner)

	rec := do(t, s, http.MethodPost, "/scrape-donors")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestScrapeDonors_Failure(t *testing.T) {
	runner := &stubRunner{result: &scraper.CycleResult{RunID: "r1"}, err: errors.New("boom")}
	s, _ := newTestServer(t, runner)

	rec := do(t, s, http.MethodPost, "/scrape-donors")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestScrapeDonors_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &stubRunner{})

	rec := do(t, s, http.MethodGet, "/scrape-donors")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestLatestRun(t *testing.T) {
	s, store := newTestServer(t, &stubRunner{})

	rec := do(t, s, http.MethodGet, "/api/runs/latest")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no runs, got %d", rec.Code)
	}

	ctx := context.Background()
	run := &models.ScrapeRun{ID: "run-1", StartedAt: time.Now(), Status: models.RunStatusRunning}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.Log(ctx, run.ID, models.LogLevelInfo, "hello"); err != nil {
		t.Fatalf("log: %v", err)
	}

	rec = do(t, s, http.MethodGet, "/api/runs/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Run  models.ScrapeRun   `json:"run"`
		Logs []models.ScrapeLog `json:"logs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Run.ID != "run-1" || len(body.Logs) != 1 || body.Logs[0].Message != "hello" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &stubRunner{})

	rec := do(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestClient_TriggerScrape(t *testing.T) {
	runner := &stubRunner{result: &scraper.CycleResult{RunID: "r1", DonorsWritten: 3}}
	s, _ := newTestServer(t, runner)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	n, err := NewClient(srv.URL+"/").TriggerScrape(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 donors, got %d", n)
	}

	runner.err = scraper.ErrNoDonors
	if _, err := NewClient(srv.URL).TriggerScrape(context.Background()); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

type stubTrigger struct {
	calls int
}

func (s *stubTrigger) Trigger() {
	s.calls++
}

func TestScrapeDonors_AsyncQueuesCycle(t *testing.T) {
	runner := &stubRunner{}
	s, _ := newTestServer(t, runner)
	trigger := &stubTrigger{}
	s.SetTrigger(trigger)

	rec := do(t, s, http.MethodPost, "/scrape-donors?async=1")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if trigger.calls != 1 {
		t.Fatalf("expected one trigger, got %d", trigger.calls)
	}
	if runner.calls != 0 {
		t.Fatalf("expected no synchronous cycle, got %d", runner.calls)
	}
}

func TestScrapeDonors_AsyncWithoutScheduler(t *testing.T) {
	s, _ := newTestServer(t, &stubRunner{})

	rec := do(t, s, http.MethodPost, "/scrape-donors?async=true")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestDonorWall_RendersNames(t *testing.T) {
	s, store := newTestServer(t, &stubRunner{})
	if _, err := store.ReplaceDonors(context.Background(), []string{"Jane Doe", "<b>Mallory</b>"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := do(t, s, http.MethodGet, "/donor-wall")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<div class="donor-item">Jane Doe</div>`) {
		t.Fatalf("expected Jane Doe in page:\n%s", body)
	}
	if strings.Contains(body, "<b>Mallory</b>") || !strings.Contains(body, "&lt;b&gt;Mallory&lt;/b&gt;") {
		t.Fatalf("expected donor name to be escaped:\n%s", body)
	}
	if !strings.Contains(body, "<nav>") {
		t.Fatal("expected navigation on the normal wall")
	}
}

func TestDonorWallDisplay_HidesNav(t *testing.T) {
	s, store := newTestServer(t, &stubRunner{})
	if _, err := store.ReplaceDonors(context.Background(), []string{"Jane Doe"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body := do(t, s, http.MethodGet, "/donor-wall-display").Body.String()
	if strings.Contains(body, "<nav>") {
		t.Fatal("display mode should not render navigation")
	}
	if !strings.Contains(body, "Jane Doe") {
		t.Fatal("expected donor in display mode")
	}
}

func TestDonorWall_Empty(t *testing.T) {
	s, _ := newTestServer(t, &stubRunner{})

	body := do(t, s, http.MethodGet, "/donor-wall").Body.String()
	if !strings.Contains(body, "donor-empty") || strings.Contains(body, "donor-item") {
		t.Fatalf("expected empty placeholder:\n%s", body)
	}
}

func TestDonorWallStyles(t *testing.T) {
	s, _ := newTestServer(t, &stubRunner{})
	wall := config.DefaultWall()
	wall.ScrollDirection = "left"
	wall.ScrollPosition = "top"
	wall.FontSize = 40
	wall.BackgroundImage = "/static/gala.jpg"
	s.SetWall(wall)

	rec := do(t, s, http.MethodGet, "/donor-wall-styles.css")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Fatalf("unexpected content type %q", ct)
	}
	css := rec.Body.String()
	for _, want := range []string{
		"flex-direction: row;",
		"animation: scrollX",
		"font-size: 40px;",
		"top: 0; left: 50%; transform: translateX(-50%);",
		"url('/static/gala.jpg')",
		"margin: 0 10px;",
	} {
		if !strings.Contains(css, want) {
			t.Errorf("expected %q in stylesheet", want)
		}
	}
}
