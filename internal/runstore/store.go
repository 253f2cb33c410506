package runstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/pageflow/browser"
	"github.com/BaSui01/pageflow/internal/database"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// =============================================================================
// 📜 运行历史
// =============================================================================

// Run is the persisted row for one facade call. The schema lives in
// internal/migration.
type Run struct {
	ID         string    `gorm:"column:id;primaryKey;size:36"`
	Operation  string    `gorm:"column:operation"`
	URL        string    `gorm:"column:url"`
	Provider   string    `gorm:"column:provider"`
	SessionID  string    `gorm:"column:session_id"`
	Status     string    `gorm:"column:status"`
	ErrorCode  string    `gorm:"column:error_code"`
	Error      string    `gorm:"column:error"`
	Log        []string  `gorm:"column:log;serializer:json"`
	Records    int       `gorm:"column:records"`
	Artifact   string    `gorm:"column:artifact"`
	Cached     bool      `gorm:"column:cached"`
	StartedAt  time.Time `gorm:"column:started_at"`
	DurationMS int64     `gorm:"column:duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName 固定表名
func (Run) TableName() string { return "runs" }

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Operation string
	Status    string
	Since     time.Time
	Limit     int
}

// DefaultListLimit caps List when Filter.Limit is zero.
const DefaultListLimit = 50

// Store persists RunRecords through a database.PoolManager.
type Store struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

var _ browser.RunRecorder = (*Store)(nil)

// New creates a Store.
func New(pool *database.PoolManager, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool:   pool,
		logger: logger.With(zap.String("component", "runstore")),
	}
}

// Record implements browser.RunRecorder.
func (s *Store) Record(ctx context.Context, rec *browser.RunRecord) error {
	if rec == nil {
		return errors.New("nil run record")
	}
	row := fromRecord(rec)

	err := s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", row.ID, err)
	}

	s.logger.Debug("run recorded",
		zap.String("run_id", row.ID),
		zap.String("operation", row.Operation),
		zap.String("status", row.Status),
	)
	return nil
}

// Get loads a single run.
func (s *Store) Get(ctx context.Context, id string) (*browser.RunRecord, error) {
	var row Run
	err := s.pool.DB().WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return row.toRecord(), nil
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]browser.RunRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := s.pool.DB().WithContext(ctx).Model(&Run{})
	if f.Operation != "" {
		q = q.Where("operation = ?", f.Operation)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		q = q.Where("started_at >= ?", f.Since)
	}

	var rows []Run
	if err := q.Order("started_at DESC").Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]browser.RunRecord, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toRecord())
	}
	return out, nil
}

// Prune deletes runs that started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		res := tx.Where("started_at < ?", cutoff).Delete(&Run{})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	s.logger.Info("runs pruned", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

func fromRecord(rec *browser.RunRecord) *Run {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	log := rec.Log
	if log == nil {
		log = []string{}
	}
	return &Run{
		ID:         id,
		Operation:  rec.Operation,
		URL:        rec.URL,
		Provider:   rec.Provider,
		SessionID:  rec.SessionID,
		Status:     rec.Status,
		ErrorCode:  rec.ErrorCode,
		Error:      rec.Error,
		Log:        log,
		Records:    rec.Records,
		Artifact:   rec.Artifact,
		Cached:     rec.Cached,
		StartedAt:  started.UTC(),
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
}

func (r *Run) toRecord() *browser.RunRecord {
	var log []string
	if len(r.Log) > 0 {
		log = r.Log
	}
	return &browser.RunRecord{
		ID:        r.ID,
		Operation: r.Operation,
		URL:       r.URL,
		Provider:  r.Provider,
		SessionID: r.SessionID,
		Status:    r.Status,
		ErrorCode: r.ErrorCode,
		Error:     r.Error,
		Log:       log,
		Records:   r.Records,
		Artifact:  r.Artifact,
		Cached:    r.Cached,
		StartedAt: r.StartedAt,
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
	}
}
