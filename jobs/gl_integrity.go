package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/keystone-erp/keystone-erp/internal/jobs"
)

const (
	// TaskGLIntegrity verifies that every posted voucher balances to zero.
	TaskGLIntegrity = "ledger:gl_integrity"

	defaultScanWindowDays = 90
	balanceTolerance      = 0.01
)

// GLIntegrityPayload scopes the scan window.
type GLIntegrityPayload struct {
	WindowDays int `json:"window_days"`
}

// NewGLIntegrityTask constructs an Asynq task for the GL integrity scan.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// GLIntegrityJob scans recent vouchers for debit/credit imbalances. A voucher
// whose non-cancelled rows do not sum to zero indicates a partially applied
// posting and always warrants manual investigation.
type GLIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob initialises the GL integrity handler.
func NewGLIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type glImbalance struct {
	VoucherType string
	VoucherNo   string
	Difference  float64
}

// Handle executes the integrity scan.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = defaultScanWindowDays
	}

	tracker := j.metrics().Track(TaskGLIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	logger.Info("starting gl integrity scan")

	start := j.now()
	vouchers, imbalances, err := j.scan(ctx, payload, start)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, v := range imbalances {
		logger.Warn("unbalanced voucher detected",
			slog.String("voucher_type", v.VoucherType),
			slog.String("voucher_no", v.VoucherNo),
			slog.Float64("difference", v.Difference),
		)
	}
	j.metrics().AddViolations(TaskGLIntegrity, "gl", len(imbalances))

	logger.Info("completed gl integrity scan",
		slog.Int("vouchers", vouchers),
		slog.Int("imbalances", len(imbalances)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *GLIntegrityJob) scan(ctx context.Context, payload GLIntegrityPayload, now time.Time) (int, []glImbalance, error) {
	if j.Pool == nil {
		return 0, nil, errors.New("gl integrity: pool not configured")
	}
	from := now.AddDate(0, 0, -payload.WindowDays)
	rows, err := j.Pool.Query(ctx, `SELECT voucher_type, voucher_no, SUM(debit - credit)::double precision
FROM gl_entries
WHERE is_cancelled = FALSE AND posting_date >= $1
GROUP BY voucher_type, voucher_no
ORDER BY voucher_type, voucher_no`, from)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	vouchers := 0
	imbalances := make([]glImbalance, 0)
	for rows.Next() {
		var voucherType, voucherNo string
		var diff float64
		if err := rows.Scan(&voucherType, &voucherNo, &diff); err != nil {
			return 0, nil, err
		}
		vouchers++
		if math.Abs(diff) > balanceTolerance {
			imbalances = append(imbalances, glImbalance{VoucherType: voucherType, VoucherNo: voucherNo, Difference: diff})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return vouchers, imbalances, nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
