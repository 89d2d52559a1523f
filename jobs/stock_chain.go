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
	// TaskStockChain verifies the running-balance chain of the stock ledger.
	TaskStockChain = "ledger:stock_chain"

	qtyTolerance = 0.0001
)

// StockChainPayload scopes the chain verification.
type StockChainPayload struct {
	WindowDays int `json:"window_days"`
}

// NewStockChainTask constructs an Asynq task for the stock chain scan.
func NewStockChainTask(payload StockChainPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockChain, body, asynq.Queue(QueueDefault)), nil
}

// StockChainJob walks each (item, warehouse) partition in insertion order and
// checks that every live row's running quantity equals the previous row's
// running quantity plus its own movement. Cancelled rows are markers only and
// are skipped.
type StockChainJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

type chainBreak struct {
	ItemCode  string
	Warehouse string
	EntryID   int64
	Expected  float64
	Actual    float64
}

// NewStockChainJob initialises the stock chain handler.
func NewStockChainJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockChainJob {
	return &StockChainJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the chain verification.
func (j *StockChainJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("stock chain: handler not configured")
	}
	var payload StockChainPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = defaultScanWindowDays
	}

	tracker := j.metrics().Track(TaskStockChain)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	logger.Info("starting stock chain scan")

	start := j.now()
	partitions, breaks, err := j.scan(ctx, payload, start)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, b := range breaks {
		logger.Warn("broken stock chain detected",
			slog.String("item_code", b.ItemCode),
			slog.String("warehouse", b.Warehouse),
			slog.Int64("entry_id", b.EntryID),
			slog.Float64("expected_qty_after", b.Expected),
			slog.Float64("actual_qty_after", b.Actual),
		)
	}
	j.metrics().AddViolations(TaskStockChain, "stock", len(breaks))

	logger.Info("completed stock chain scan",
		slog.Int("partitions", partitions),
		slog.Int("breaks", len(breaks)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *StockChainJob) scan(ctx context.Context, payload StockChainPayload, now time.Time) (int, []chainBreak, error) {
	if j.Pool == nil {
		return 0, nil, errors.New("stock chain: pool not configured")
	}
	from := now.AddDate(0, 0, -payload.WindowDays)
	rows, err := j.Pool.Query(ctx, `SELECT id, item_code, warehouse, actual_qty::double precision, qty_after_transaction::double precision
FROM stock_ledger_entries
WHERE is_cancelled = FALSE AND posting_date >= $1
ORDER BY item_code, warehouse, id`, from)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	type partitionState struct {
		qtyAfter float64
		seeded   bool
	}
	partitions := make(map[string]*partitionState)
	breaks := make([]chainBreak, 0)
	for rows.Next() {
		var id int64
		var itemCode, warehouse string
		var actualQty, qtyAfter float64
		if err := rows.Scan(&id, &itemCode, &warehouse, &actualQty, &qtyAfter); err != nil {
			return 0, nil, err
		}
		key := itemCode + "\x00" + warehouse
		state, ok := partitions[key]
		if !ok {
			state = &partitionState{}
			partitions[key] = state
		}
		if state.seeded {
			expected := state.qtyAfter + actualQty
			if math.Abs(expected-qtyAfter) > qtyTolerance {
				breaks = append(breaks, chainBreak{
					ItemCode:  itemCode,
					Warehouse: warehouse,
					EntryID:   id,
					Expected:  expected,
					Actual:    qtyAfter,
				})
			}
		}
		state.qtyAfter = qtyAfter
		state.seeded = true
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return len(partitions), breaks, nil
}

func (j *StockChainJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockChain))
	}
	return slog.Default().With(slog.String("job", TaskStockChain))
}

func (j *StockChainJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StockChainJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
