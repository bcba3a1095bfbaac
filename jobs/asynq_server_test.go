package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	lowStock  *LowStockScanPayload
	integrity int
	backup    *BackupRunPayload
}

func (f *fakeEnqueuer) EnqueueLowStockScan(ctx context.Context, payload LowStockScanPayload) (*asynq.TaskInfo, error) {
	f.lowStock = &payload
	return &asynq.TaskInfo{ID: "t1", Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) EnqueueLedgerIntegrity(ctx context.Context) (*asynq.TaskInfo, error) {
	f.integrity++
	return &asynq.TaskInfo{ID: "t2", Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) EnqueueBackupRun(ctx context.Context, payload BackupRunPayload) (*asynq.TaskInfo, error) {
	f.backup = &payload
	return &asynq.TaskInfo{ID: "t3", Queue: QueueDefault}, nil
}

func mountJobs(enqueuer Enqueuer) chi.Router {
	r := chi.NewRouter()
	NewHandler(nil, enqueuer, nil).MountRoutes(r)
	return r
}

func TestTriggerBackupEnqueuesWithPayload(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := mountJobs(enqueuer)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/backup", strings.NewReader(`{"keep":5}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, enqueuer.backup)
	require.Equal(t, 5, enqueuer.backup.Keep)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "t3", body["task_id"])
	require.Equal(t, QueueDefault, body["queue"])
}

func TestTriggerScansEnqueue(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := mountJobs(enqueuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/integrity-scan", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, enqueuer.integrity)

	// Empty body keeps the zero payload.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/low-stock-scan", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, enqueuer.lowStock)
	require.Zero(t, enqueuer.lowStock.Limit)
}

func TestTriggerWithoutEnqueuerIsUnavailable(t *testing.T) {
	router := mountJobs(nil)

	for _, path := range []string{"/backup", "/low-stock-scan", "/integrity-scan"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestTriggerRejectsMalformedPayload(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	router := mountJobs(enqueuer)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/backup", strings.NewReader(`{"keep":`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, enqueuer.backup)
}