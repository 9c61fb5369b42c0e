package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// PayslipRenderer renders and stores one payslip. Satisfied by
// payroll.Service.
type PayslipRenderer interface {
	RenderPayslip(ctx context.Context, payslipID string) error
}

// BlacklistPruner removes expired blacklist rows. Satisfied by
// auth.Service.
type BlacklistPruner interface {
	PruneBlacklist(ctx context.Context) (int64, error)
}

// NewPayslipRenderHandler processes TaskPayslipRender tasks. A failed
// render returns the error so Asynq redelivers; a malformed payload is
// dropped.
func NewPayslipRenderHandler(renderer PayslipRenderer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PayslipRenderPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("payslip render payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		if err := renderer.RenderPayslip(ctx, payload.PayslipID); err != nil {
			logger.Warn("payslip render", slog.String("payslip_id", payload.PayslipID), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// NewBlacklistPruneHandler processes TaskBlacklistPrune tasks.
func NewBlacklistPruneHandler(pruner BlacklistPruner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		pruned, err := pruner.PruneBlacklist(ctx)
		if err != nil {
			return err
		}
		logger.Info("blacklist pruned", slog.Int64("entries", pruned))
		return nil
	}
}
