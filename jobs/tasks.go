package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan walks the catalog for items at or below threshold.
	TaskLowStockScan = "stock:low_scan"
	// TaskLedgerIntegrity cross-checks stock columns against the movement ledger.
	TaskLedgerIntegrity = "ledger:integrity_scan"
	// TaskBackupRun dumps the store into a fresh archive.
	TaskBackupRun = "backup:run"
)

// LowStockScanPayload narrows a low stock scan.
type LowStockScanPayload struct {
	Limit int `json:"limit"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// BackupRunPayload controls archive retention.
type BackupRunPayload struct {
	Keep int `json:"keep"`
}

// NewBackupRunTask constructs an Asynq task.
func NewBackupRunTask(payload BackupRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackupRun, data), nil
}
