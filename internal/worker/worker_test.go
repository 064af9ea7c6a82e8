package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gymaccess/internal/database"
	"gymaccess/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func sampleEntry(id int64) *models.AccessLogEntry {
	return &models.AccessLogEntry{
		ID:          id,
		MemberID:    "AV-100",
		MemberName:  "Ada Obi",
		AccessDate:  time.Now(),
		AccessCount: 1,
		Gym:         "FitFam Ikoyi",
		ReferenceID: "AV/000001",
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueAccessLog(ctx, sampleEntry(1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.calls() != 1 {
		t.Fatalf("expected one append call, got %d", sheets.calls())
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("quota exceeded for sheets api")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueAccessLog(ctx, sampleEntry(2)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFailToDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, client, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueAccessLog(ctx, sampleEntry(3)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	n, err := client.LLen(ctx, worker.deadLetterKey).Result()
	if err != nil || n != 1 {
		t.Fatalf("expected one dead letter, got %d (%v)", n, err)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskAppendAccessLog, EntryID: 9, Payload: "not json"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != database.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestHandleSheetTask(t *testing.T) {
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(nil, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.handleSheetTask(ctx, TaskAppendAccessLog, accessLogPayload{Entry: sampleEntry(4)}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := worker.handleSheetTask(ctx, TaskAppendAccessLog, accessLogPayload{EntryID: 4}); err == nil {
		t.Fatalf("expected error for missing entry")
	}
	if err := worker.handleSheetTask(ctx, "delete", accessLogPayload{Entry: sampleEntry(4)}); err == nil {
		t.Fatalf("expected error for unknown task type")
	}
}

func TestEnqueueAccessLogValidation(t *testing.T) {
	worker := NewSheetsWorker(newTestDB(t), &fakeSheets{}, nil, RetryPolicy{}, nil)
	if err := worker.EnqueueAccessLog(context.Background(), &models.AccessLogEntry{}); err == nil {
		t.Fatalf("expected error for entry without id")
	}
	if err := worker.EnqueueAccessLog(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil entry")
	}
}

func TestWorkerStartProcessesQueue(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := worker.EnqueueAccessLog(ctx, sampleEntry(5)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sheets.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if sheets.calls() != 1 {
		t.Fatalf("expected one append call, got %d", sheets.calls())
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2}.withDefaults()
	if policy.MaxRetries != 2 {
		t.Fatalf("expected explicit MaxRetries kept, got %d", policy.MaxRetries)
	}
	if policy.InitialDelay != 2*time.Second || policy.MaxDelay != time.Minute || policy.BackoffFactor != 2 {
		t.Fatalf("unexpected defaults: %+v", policy)
	}
	if policy.Exhausted(1) {
		t.Fatalf("attempt 1 of 2 must not be exhausted")
	}
	if !policy.Exhausted(2) {
		t.Fatalf("attempt 2 of 2 must be exhausted")
	}
}

func TestDecodePayload(t *testing.T) {
	worker := NewSheetsWorker(nil, nil, nil, RetryPolicy{}, nil)

	decoded, err := worker.decodePayload(`{"entry_id":123,"entry":{"reference_id":"AV/123456"}}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EntryID != 123 || decoded.Entry == nil || decoded.Entry.ReferenceID != "AV/123456" {
		t.Fatalf("unexpected decoded payload: %+v", decoded)
	}

	if _, err := worker.decodePayload(`invalid json`); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

// Helpers

type fakeSheets struct {
	mu      sync.Mutex
	err     error
	appends int
}

func (f *fakeSheets) AppendAccessLog(_ context.Context, _ *models.AccessLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	return f.err
}

func (f *fakeSheets) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
