package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/keystone-erp/keystone-erp/internal/jobs"
	"github.com/keystone-erp/keystone-erp/internal/payments"
)

const (
	// TaskOutstandingSnapshot materialises the receivable/payable aging report.
	TaskOutstandingSnapshot = "payments:outstanding_snapshot"
)

// OutstandingSnapshotPayload optionally scopes the snapshot to one company.
type OutstandingSnapshotPayload struct {
	CompanyID *int64 `json:"company_id,omitempty"`
}

// NewOutstandingSnapshotTask constructs an Asynq task for the aging snapshot.
func NewOutstandingSnapshotTask(payload OutstandingSnapshotPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutstandingSnapshot, body, asynq.Queue(QueueDefault)), nil
}

// OutstandingSnapshotJob persists a nightly aging snapshot so dashboards can
// chart outstanding balances over time without replaying the payment ledger.
type OutstandingSnapshotJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOutstandingSnapshotJob initialises the snapshot handler.
func NewOutstandingSnapshotJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutstandingSnapshotJob {
	return &OutstandingSnapshotJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle builds the aging report and writes one snapshot row per open voucher.
func (j *OutstandingSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("outstanding snapshot: handler not configured")
	}
	var payload OutstandingSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskOutstandingSnapshot)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting outstanding snapshot")

	start := j.now()
	rows, err := j.snapshot(ctx, payload, start)
	if err != nil {
		resultErr = err
		logger.Error("snapshot failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed outstanding snapshot",
		slog.Int("rows", rows),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OutstandingSnapshotJob) snapshot(ctx context.Context, payload OutstandingSnapshotPayload, now time.Time) (int, error) {
	if j.Pool == nil {
		return 0, errors.New("outstanding snapshot: pool not configured")
	}
	repo := payments.NewRepository(j.Pool)
	entries, err := repo.ListOpenEntries(ctx, payload.CompanyID)
	if err != nil {
		return 0, err
	}
	report := payments.BuildAgingReport(entries, now)

	snapshotDate := now.Truncate(24 * time.Hour)
	if _, err := j.Pool.Exec(ctx, `DELETE FROM outstanding_snapshots WHERE snapshot_date = $1`, snapshotDate); err != nil {
		return 0, err
	}
	for _, row := range report.Rows {
		_, err := j.Pool.Exec(ctx, `INSERT INTO outstanding_snapshots
(snapshot_date, account_type, party, against_voucher_no, outstanding, age_days, bucket)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			snapshotDate, row.AccountType, row.Party, row.AgainstVoucherNo,
			row.Outstanding, row.AgeDays, row.Bucket)
		if err != nil {
			return 0, err
		}
	}
	return len(report.Rows), nil
}

func (j *OutstandingSnapshotJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOutstandingSnapshot))
	}
	return slog.Default().With(slog.String("job", TaskOutstandingSnapshot))
}

func (j *OutstandingSnapshotJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OutstandingSnapshotJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
