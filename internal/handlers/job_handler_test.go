package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/ingest"
	storage "github.com/ternarybob/colligo/internal/storage/badger"
)

type stubQueue struct {
	mu    sync.Mutex
	tasks []*models.TaskMessage
	dead  []*models.DeadLetterRecord
}

func (q *stubQueue) Start() error { return nil }
func (q *stubQueue) Stop() error  { return nil }

func (q *stubQueue) Enqueue(ctx context.Context, task *models.TaskMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := *task
	q.tasks = append(q.tasks, &copied)
	return nil
}

func (q *stubQueue) DequeueBlocking(ctx context.Context, timeout time.Duration) (*models.TaskMessage, error) {
	return nil, errors.New("not implemented")
}

func (q *stubQueue) DeadLetter(ctx context.Context, rec *models.DeadLetterRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, rec)
	return nil
}

func (q *stubQueue) ListDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetterRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dead, nil
}

func (q *stubQueue) CountDeadLetters(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dead), nil
}

func (q *stubQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks), nil
}

func newTestHandler(t *testing.T) (*JobHandler, *QueueHandler, *ArticleHandler) {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := storage.NewBadgerDB(logger, &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "colligo-test"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	articles := storage.NewArticleStorage(db, logger)
	jobs := storage.NewJobStorage(db, logger)
	q := &stubQueue{}
	coord := ingest.NewCoordinator(articles, jobs, q, logger)

	return NewJobHandler(coord, logger), NewQueueHandler(q, logger), NewArticleHandler(articles, logger)
}

func TestSubmitHandler(t *testing.T) {
	jobHandler, _, _ := newTestHandler(t)

	body := `{"articles":[{"url":"https://example.com/a","source":"example"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/submit", strings.NewReader(body))
	rec := httptest.NewRecorder()

	jobHandler.SubmitHandler(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp models.JobSubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID == "" || resp.NewArticles != 1 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestSubmitHandlerRejectsBadRequests(t *testing.T) {
	jobHandler, _, _ := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty batch", `{"articles":[]}`},
		{"malformed json", `{"articles":`},
		{"invalid url", `{"articles":[{"url":"not a url","source":"example"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/jobs/submit", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			jobHandler.SubmitHandler(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", rec.Code)
			}
		})
	}

	// Wrong method
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/submit", nil)
	rec := httptest.NewRecorder()
	jobHandler.SubmitHandler(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", rec.Code)
	}
}

func TestJobStatusAndResultsRoutes(t *testing.T) {
	jobHandler, _, _ := newTestHandler(t)

	body := `{"articles":[{"url":"https://example.com/a","source":"example"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/submit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	jobHandler.SubmitHandler(rec, req)

	var submitted models.JobSubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatal(err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+submitted.JobID+"/status", nil)
	rec = httptest.NewRecorder()
	jobHandler.JobRoutesHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status route = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var status models.JobStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.JobID != submitted.JobID || status.PendingCount != 1 {
		t.Errorf("Unexpected status: %+v", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+submitted.JobID+"/results", nil)
	rec = httptest.NewRecorder()
	jobHandler.JobRoutesHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Results route = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/job_missing/status", nil)
	rec = httptest.NewRecorder()
	jobHandler.JobRoutesHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Unknown job = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+submitted.JobID+"/bogus", nil)
	rec = httptest.NewRecorder()
	jobHandler.JobRoutesHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Unknown subroute = %d, want 404", rec.Code)
	}
}

func TestQueueStatsHandler(t *testing.T) {
	jobHandler, queueHandler, _ := newTestHandler(t)

	body := `{"articles":[{"url":"https://example.com/a","source":"example"},{"url":"https://example.com/b","source":"example"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/submit", strings.NewReader(body))
	jobHandler.SubmitHandler(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/queue/stats", nil)
	rec := httptest.NewRecorder()
	queueHandler.StatsHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var stats models.QueueStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Queued != 2 || stats.DeadLetters != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestArticleStatsHandler(t *testing.T) {
	jobHandler, _, articleHandler := newTestHandler(t)

	body := `{"articles":[{"url":"https://example.com/a","source":"example"},{"url":"https://example.com/b","source":"example"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/submit", strings.NewReader(body))
	jobHandler.SubmitHandler(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/articles/stats", nil)
	rec := httptest.NewRecorder()
	articleHandler.StatsHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var stats models.ArticleStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Pending != 2 || stats.Fetched != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
