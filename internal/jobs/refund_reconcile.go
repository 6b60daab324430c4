package jobs

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fulfillment-backend/internal/returns"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
)

const refundReconcileJob = "refund-reconcile"

type refundReconciler interface {
	ReconcileRefunds(ctx context.Context, limit int) (returns.ReconcileResult, error)
}

type RefundReconcileJobParams struct {
	Logger    *logger.Logger
	Returns   refundReconciler
	Metrics   *metrics.JobMetrics
	BatchSize int
}

// NewRefundReconcileJob polls the refund gateway for returns sitting in
// REFUND_INITIATED and completes the settled ones.
func NewRefundReconcileJob(params RefundReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Returns == nil {
		return nil, fmt.Errorf("returns service required")
	}
	return &refundReconcile{
		logg:    params.Logger,
		returns: params.Returns,
		metrics: params.Metrics,
		limit:   params.BatchSize,
	}, nil
}

type refundReconcile struct {
	logg    *logger.Logger
	returns refundReconciler
	metrics *metrics.JobMetrics
	limit   int
}

func (j *refundReconcile) Name() string { return refundReconcileJob }

func (j *refundReconcile) Run(ctx context.Context) error {
	result, err := j.returns.ReconcileRefunds(ctx, j.limit)
	j.metrics.AddItems(refundReconcileJob, "completed", result.Completed)
	j.metrics.AddItems(refundReconcileJob, "failed", result.Failed)
	j.metrics.AddItems(refundReconcileJob, "pending", result.Pending)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":   result.Checked,
		"completed": result.Completed,
		"failed":    result.Failed,
		"pending":   result.Pending,
	})
	if err != nil {
		return fmt.Errorf("reconcile refunds: %w", err)
	}
	j.logg.Info(logCtx, "refund reconciliation complete")
	return nil
}
