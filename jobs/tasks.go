// Package jobs runs the durable background work: payslip PDF rendering
// and periodic token blacklist pruning.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPayslipRender renders one payslip to PDF.
	TaskPayslipRender = "payroll:payslip:render"
	// TaskBlacklistPrune deletes blacklist entries for naturally
	// expired tokens.
	TaskBlacklistPrune = "auth:blacklist:prune"
)

// PayslipRenderPayload identifies the payslip to render.
type PayslipRenderPayload struct {
	PayslipID string `json:"payslip_id"`
}

// NewPayslipRenderTask constructs an Asynq task.
func NewPayslipRenderTask(payload PayslipRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayslipRender, data, asynq.MaxRetry(5)), nil
}

// NewBlacklistPruneTask constructs the cron task.
func NewBlacklistPruneTask() *asynq.Task {
	return asynq.NewTask(TaskBlacklistPrune, nil)
}
