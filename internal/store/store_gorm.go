package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/srviswan/positionengine/internal/codec"
	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/position"
)

// mysqlErrDuplicateEntry is ER_DUP_ENTRY, raised on a primary-key or
// unique-index collision.
const mysqlErrDuplicateEntry = 1062

// isDuplicateKeyError reports whether err is a MySQL duplicate-key error,
// as opposed to a connection failure or an unrelated constraint violation.
func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}

// eventRecord is the GORM model for the event_store table.
type eventRecord struct {
	PositionKey   string `gorm:"primaryKey;column:position_key;type:varchar(128)"`
	EventVer      uint64 `gorm:"primaryKey;column:event_ver"`
	EventType     string `gorm:"column:event_type;type:varchar(40);not null"`
	EffectiveDate time.Time `gorm:"column:effective_date;index;not null"`
	OccurredAt    time.Time `gorm:"column:occurred_at;index;not null"`
	Payload       []byte `gorm:"column:payload;type:json"`
	MetaLots      []byte `gorm:"column:meta_lots;type:json"`
	CorrelationID string `gorm:"column:correlation_id;type:varchar(36);index"`
	CausationID   string `gorm:"column:causation_id;type:varchar(36)"`
	ContractID    string `gorm:"column:contract_id;type:varchar(64)"`
	UserID        string `gorm:"column:user_id;type:varchar(64)"`
	ArchivalFlag  bool   `gorm:"column:archival_flag;index;not null"`
}

func (eventRecord) TableName() string { return "event_store" }

func toEventRecord(ev position.Event) (eventRecord, error) {
	metaLots, err := json.Marshal(ev.MetaLots)
	if err != nil {
		return eventRecord{}, engineerr.Wrap(engineerr.KindInvalidArgument, "failed to marshal metaLots", err)
	}
	return eventRecord{
		PositionKey:   ev.PositionKey,
		EventVer:      ev.EventVer,
		EventType:     string(ev.EventType),
		EffectiveDate: ev.EffectiveDate,
		OccurredAt:    ev.OccurredAt,
		Payload:       ev.Payload,
		MetaLots:      metaLots,
		CorrelationID: ev.CorrelationID.String(),
		CausationID:   ev.CausationID.String(),
		ContractID:    ev.ContractID,
		UserID:        ev.UserID,
		ArchivalFlag:  ev.ArchivalFlag,
	}, nil
}

func fromEventRecord(r eventRecord) (position.Event, error) {
	var metaLots []position.LotAllocationEntry
	if len(r.MetaLots) > 0 {
		if err := json.Unmarshal(r.MetaLots, &metaLots); err != nil {
			return position.Event{}, engineerr.Wrap(engineerr.KindDataCorruption, "failed to unmarshal metaLots", err)
		}
	}
	corrID, err := uuid.Parse(r.CorrelationID)
	if err != nil {
		return position.Event{}, engineerr.Wrap(engineerr.KindDataCorruption, "invalid correlationId in event_store row", err)
	}
	var causeID uuid.UUID
	if r.CausationID != "" {
		causeID, err = uuid.Parse(r.CausationID)
		if err != nil {
			return position.Event{}, engineerr.Wrap(engineerr.KindDataCorruption, "invalid causationId in event_store row", err)
		}
	}
	return position.Event{
		PositionKey:   r.PositionKey,
		EventVer:      r.EventVer,
		EventType:     position.EventType(r.EventType),
		EffectiveDate: r.EffectiveDate,
		OccurredAt:    r.OccurredAt,
		Payload:       r.Payload,
		MetaLots:      metaLots,
		CorrelationID: corrID,
		CausationID:   causeID,
		ContractID:    r.ContractID,
		UserID:        r.UserID,
		ArchivalFlag:  r.ArchivalFlag,
	}, nil
}

// GormEventStore is a MySQL-backed EventStore.
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore opens dsn and migrates the event_store table.
func NewGormEventStore(dsn string) (*GormEventStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewGormEventStoreWithDB(db)
}

// NewGormEventStoreWithDB wraps an existing *gorm.DB (e.g. a sqlmock-backed
// one in tests), migrating the event_store table.
func NewGormEventStoreWithDB(db *gorm.DB) (*GormEventStore, error) {
	if err := db.AutoMigrate(&eventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate event_store schema: %w", err)
	}
	return &GormEventStore{db: db}, nil
}

func (s *GormEventStore) NextVersion(ctx context.Context, positionKey string) (uint64, error) {
	var max uint64
	row := s.db.WithContext(ctx).Model(&eventRecord{}).
		Where("position_key = ? AND archival_flag = ?", positionKey, false).
		Select("COALESCE(MAX(event_ver), 0)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to compute next event version: %w", err)
	}
	return max + 1, nil
}

func (s *GormEventStore) Append(ctx context.Context, ev position.Event) error {
	rec, err := toEventRecord(ev)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Create(&rec)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return engineerr.Wrap(engineerr.KindVersionConflict, "event version already exists", result.Error)
		}
		return engineerr.Wrap(engineerr.KindTransient, "failed to append event", result.Error)
	}
	return nil
}

func (s *GormEventStore) queryOrdered(ctx context.Context, where string, args ...any) ([]position.Event, error) {
	var recs []eventRecord
	result := s.db.WithContext(ctx).Where(where, args...).
		Order("effective_date ASC, occurred_at ASC, event_ver ASC").Find(&recs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query event_store: %w", result.Error)
	}
	out := make([]position.Event, 0, len(recs))
	for _, r := range recs {
		ev, err := fromEventRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *GormEventStore) List(ctx context.Context, positionKey string) ([]position.Event, error) {
	return s.queryOrdered(ctx, "position_key = ? AND archival_flag = ?", positionKey, false)
}

func (s *GormEventStore) ListAsOf(ctx context.Context, positionKey string, asOf time.Time) ([]position.Event, error) {
	return s.queryOrdered(ctx, "position_key = ? AND archival_flag = ? AND effective_date <= ?", positionKey, false, asOf)
}

func (s *GormEventStore) Range(ctx context.Context, positionKey string, fromVer, toVer uint64) ([]position.Event, error) {
	return s.queryOrdered(ctx, "position_key = ? AND event_ver BETWEEN ? AND ?", positionKey, fromVer, toVer)
}

func (s *GormEventStore) FindByCorrelation(ctx context.Context, correlationID string) ([]position.Event, error) {
	return s.queryOrdered(ctx, "correlation_id = ?", correlationID)
}

func (s *GormEventStore) MarkPartitionArchived(ctx context.Context, _ uint32, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&eventRecord{}).
		Where("archival_flag = ? AND occurred_at < ?", false, cutoff).
		Update("archival_flag", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark partition archived: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// snapshotRecord is the GORM model for the snapshot_store table.
// Lots and schedule are stored as compressed-codec JSON.
type snapshotRecord struct {
	PositionKey          string `gorm:"primaryKey;column:position_key;type:varchar(128)"`
	Account               string `gorm:"column:account;index;type:varchar(64);not null"`
	Instrument            string `gorm:"column:instrument;index;type:varchar(64);not null"`
	Currency              string `gorm:"column:currency;type:varchar(8);not null"`
	Direction             string `gorm:"column:direction;type:varchar(8)"`
	Lots                  []byte `gorm:"column:lots;type:json"`
	Version               uint64 `gorm:"column:version;not null"`
	Status                string `gorm:"column:status;type:varchar(20);not null"`
	ReconciliationStatus  string `gorm:"column:reconciliation_status;type:varchar(20)"`
	ProvisionalTradeID    *string `gorm:"column:provisional_trade_id;type:varchar(64)"`
	Schedule              []byte `gorm:"column:schedule;type:json"`
	ContractID            string `gorm:"column:contract_id;index;type:varchar(64)"`
	LastUpdatedAt         time.Time `gorm:"column:last_updated_at"`
}

func (snapshotRecord) TableName() string { return "snapshot_store" }

func toSnapshotRecord(st *position.State) (snapshotRecord, error) {
	compressed := codec.Compress(st.OpenLots)
	lotsJSON, err := json.Marshal(compressed)
	if err != nil {
		return snapshotRecord{}, engineerr.Wrap(engineerr.KindInvalidArgument, "failed to marshal lots", err)
	}
	scheduleJSON, err := json.Marshal(st.PriceQuantitySchedule)
	if err != nil {
		return snapshotRecord{}, engineerr.Wrap(engineerr.KindInvalidArgument, "failed to marshal schedule", err)
	}
	return snapshotRecord{
		PositionKey:          st.PositionKey,
		Account:              st.Account,
		Instrument:           st.Instrument,
		Currency:             st.Currency,
		Direction:            st.Direction,
		Lots:                 lotsJSON,
		Version:              st.Version,
		Status:               string(st.Status),
		ReconciliationStatus: string(st.ReconciliationStatus),
		ProvisionalTradeID:   st.ProvisionalTradeID,
		Schedule:             scheduleJSON,
		ContractID:           st.ContractID,
		LastUpdatedAt:        st.LastUpdatedAt,
	}, nil
}

func fromSnapshotRecord(r snapshotRecord) (*position.State, error) {
	var compressed codec.CompressedLots
	if len(r.Lots) > 0 {
		if err := json.Unmarshal(r.Lots, &compressed); err != nil {
			return nil, engineerr.Wrap(engineerr.KindDataCorruption, "failed to unmarshal lots", err)
		}
	}
	lots, err := codec.Inflate(compressed)
	if err != nil {
		return nil, err
	}
	var schedule []position.SchedulePoint
	if len(r.Schedule) > 0 {
		if err := json.Unmarshal(r.Schedule, &schedule); err != nil {
			return nil, engineerr.Wrap(engineerr.KindDataCorruption, "failed to unmarshal schedule", err)
		}
	}
	return &position.State{
		PositionKey:           r.PositionKey,
		Account:               r.Account,
		Instrument:            r.Instrument,
		Currency:              r.Currency,
		Direction:             r.Direction,
		OpenLots:              lots,
		Version:               r.Version,
		Status:                position.Status(r.Status),
		ReconciliationStatus:  position.ReconStatus(r.ReconciliationStatus),
		ProvisionalTradeID:    r.ProvisionalTradeID,
		PriceQuantitySchedule: schedule,
		ContractID:            r.ContractID,
		LastUpdatedAt:         r.LastUpdatedAt,
	}, nil
}

// GormSnapshotStore is a MySQL-backed SnapshotStore.
type GormSnapshotStore struct {
	db *gorm.DB
}

// NewGormSnapshotStore opens dsn and migrates the snapshot_store table.
func NewGormSnapshotStore(dsn string) (*GormSnapshotStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewGormSnapshotStoreWithDB(db)
}

// NewGormSnapshotStoreWithDB wraps an existing *gorm.DB, migrating the
// snapshot_store table.
func NewGormSnapshotStoreWithDB(db *gorm.DB) (*GormSnapshotStore, error) {
	if err := db.AutoMigrate(&snapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot_store schema: %w", err)
	}
	return &GormSnapshotStore{db: db}, nil
}

func (s *GormSnapshotStore) Load(ctx context.Context, positionKey string) (*position.State, bool, error) {
	var rec snapshotRecord
	result := s.db.WithContext(ctx).Where("position_key = ?", positionKey).First(&rec)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load snapshot: %w", result.Error)
	}
	st, err := fromSnapshotRecord(rec)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *GormSnapshotStore) Save(ctx context.Context, state *position.State, expectedVersion uint64) error {
	rec, err := toSnapshotRecord(state)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing snapshotRecord
		lookupErr := tx.Where("position_key = ?", state.PositionKey).First(&existing).Error
		switch {
		case lookupErr == gorm.ErrRecordNotFound:
			if expectedVersion != 0 {
				return engineerr.VersionConflict("snapshot does not exist at expected version")
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("failed to insert snapshot: %w", err)
			}
			return nil
		case lookupErr != nil:
			return fmt.Errorf("failed to check existing snapshot: %w", lookupErr)
		}
		if existing.Version != expectedVersion {
			return engineerr.VersionConflict("snapshot version has advanced since load")
		}
		result := tx.Model(&snapshotRecord{}).
			Where("position_key = ? AND version = ?", state.PositionKey, expectedVersion).
			Updates(map[string]any{
				"account":               rec.Account,
				"instrument":            rec.Instrument,
				"currency":              rec.Currency,
				"direction":             rec.Direction,
				"lots":                  rec.Lots,
				"version":               rec.Version,
				"status":                rec.Status,
				"reconciliation_status": rec.ReconciliationStatus,
				"provisional_trade_id":  rec.ProvisionalTradeID,
				"schedule":              rec.Schedule,
				"contract_id":           rec.ContractID,
				"last_updated_at":       rec.LastUpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update snapshot: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return engineerr.VersionConflict("snapshot version has advanced since load")
		}
		return nil
	})
}

func (s *GormSnapshotStore) findBy(ctx context.Context, where string, arg string, limit, offset int) ([]*position.State, error) {
	var recs []snapshotRecord
	q := s.db.WithContext(ctx).Where(where, arg).Order("position_key ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if result := q.Find(&recs); result.Error != nil {
		return nil, fmt.Errorf("failed to query snapshot_store: %w", result.Error)
	}
	out := make([]*position.State, 0, len(recs))
	for _, r := range recs {
		st, err := fromSnapshotRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *GormSnapshotStore) FindByAccount(ctx context.Context, account string, limit, offset int) ([]*position.State, error) {
	return s.findBy(ctx, "account = ?", account, limit, offset)
}

func (s *GormSnapshotStore) FindByInstrument(ctx context.Context, instrument string, limit, offset int) ([]*position.State, error) {
	return s.findBy(ctx, "instrument = ?", instrument, limit, offset)
}

func (s *GormSnapshotStore) FindByContract(ctx context.Context, contractID string, limit, offset int) ([]*position.State, error) {
	return s.findBy(ctx, "contract_id = ?", contractID, limit, offset)
}

// idempotencyRecord is the GORM model for the idempotency_store table.
type idempotencyRecord struct {
	TradeID     string `gorm:"primaryKey;column:trade_id;type:varchar(64)"`
	PositionKey string `gorm:"column:position_key;index;type:varchar(128);not null"`
	EventVer    uint64 `gorm:"column:event_ver;not null"`
	Status      string `gorm:"column:status;type:varchar(20);not null"`
	RecordedAt  time.Time `gorm:"column:recorded_at"`
}

func (idempotencyRecord) TableName() string { return "idempotency_store" }

// GormIdempotencyStore is a MySQL-backed IdempotencyStore.
type GormIdempotencyStore struct {
	db *gorm.DB
}

// NewGormIdempotencyStore opens dsn and migrates the idempotency_store table.
func NewGormIdempotencyStore(dsn string) (*GormIdempotencyStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewGormIdempotencyStoreWithDB(db)
}

// NewGormIdempotencyStoreWithDB wraps an existing *gorm.DB, migrating the
// idempotency_store table.
func NewGormIdempotencyStoreWithDB(db *gorm.DB) (*GormIdempotencyStore, error) {
	if err := db.AutoMigrate(&idempotencyRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate idempotency_store schema: %w", err)
	}
	return &GormIdempotencyStore{db: db}, nil
}

func (s *GormIdempotencyStore) Check(ctx context.Context, tradeID string) (bool, position.IdempotencyRecord, error) {
	var rec idempotencyRecord
	result := s.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&rec)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return false, position.IdempotencyRecord{}, nil
		}
		return false, position.IdempotencyRecord{}, fmt.Errorf("failed to check idempotency record: %w", result.Error)
	}
	return true, position.IdempotencyRecord{
		TradeID:     rec.TradeID,
		PositionKey: rec.PositionKey,
		EventVer:    rec.EventVer,
		Status:      position.IdempotencyOutcome(rec.Status),
		RecordedAt:  rec.RecordedAt,
	}, nil
}

func (s *GormIdempotencyStore) Record(ctx context.Context, tradeID, positionKey string, eventVer uint64, status position.IdempotencyOutcome) error {
	rec := idempotencyRecord{
		TradeID:     tradeID,
		PositionKey: positionKey,
		EventVer:    eventVer,
		Status:      string(status),
		RecordedAt:  time.Now(),
	}
	result := s.db.WithContext(ctx).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("failed to record idempotency outcome: %w", result.Error)
	}
	return nil
}

// lifecycleRecord is the GORM model for the upi_history table.
type lifecycleRecord struct {
	HistoryID   string `gorm:"primaryKey;column:history_id;type:varchar(36)"`
	PositionKey string `gorm:"column:position_key;index;type:varchar(128);not null"`
	Kind        string `gorm:"column:kind;type:varchar(20);not null"`
	OccurredAt  time.Time `gorm:"column:occurred_at"`
}

func (lifecycleRecord) TableName() string { return "upi_history" }

// GormLifecycleStore is a MySQL-backed LifecycleStore.
type GormLifecycleStore struct {
	db *gorm.DB
}

// NewGormLifecycleStore opens dsn and migrates the upi_history table.
func NewGormLifecycleStore(dsn string) (*GormLifecycleStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewGormLifecycleStoreWithDB(db)
}

// NewGormLifecycleStoreWithDB wraps an existing *gorm.DB, migrating the
// upi_history table.
func NewGormLifecycleStoreWithDB(db *gorm.DB) (*GormLifecycleStore, error) {
	if err := db.AutoMigrate(&lifecycleRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate upi_history schema: %w", err)
	}
	return &GormLifecycleStore{db: db}, nil
}

func (s *GormLifecycleStore) Append(ctx context.Context, ev position.LifecycleEvent) error {
	rec := lifecycleRecord{
		HistoryID:   ev.HistoryID.String(),
		PositionKey: ev.PositionKey,
		Kind:        string(ev.Kind),
		OccurredAt:  ev.OccurredAt,
	}
	if result := s.db.WithContext(ctx).Create(&rec); result.Error != nil {
		return fmt.Errorf("failed to append lifecycle event: %w", result.Error)
	}
	return nil
}

func (s *GormLifecycleStore) ListByPosition(ctx context.Context, positionKey string) ([]position.LifecycleEvent, error) {
	var recs []lifecycleRecord
	result := s.db.WithContext(ctx).Where("position_key = ?", positionKey).Order("occurred_at ASC").Find(&recs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list lifecycle events: %w", result.Error)
	}
	out := make([]position.LifecycleEvent, 0, len(recs))
	for _, r := range recs {
		id, err := uuid.Parse(r.HistoryID)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.KindDataCorruption, "invalid historyId in upi_history row", err)
		}
		out = append(out, position.LifecycleEvent{
			HistoryID:   id,
			PositionKey: r.PositionKey,
			Kind:        position.LifecycleKind(r.Kind),
			OccurredAt:  r.OccurredAt,
		})
	}
	return out, nil
}

// reconciliationBreakRecord is the GORM model for the reconciliation_breaks
// table.
type reconciliationBreakRecord struct {
	BreakID     string `gorm:"primaryKey;column:break_id;type:varchar(36)"`
	PositionKey string `gorm:"column:position_key;index;type:varchar(128);not null"`
	Reason      string `gorm:"column:reason;type:varchar(255)"`
	OldTotalQty string `gorm:"column:old_total_qty;type:varchar(78)"`
	NewTotalQty string `gorm:"column:new_total_qty;type:varchar(78)"`
	DetectedAt  time.Time `gorm:"column:detected_at"`
}

func (reconciliationBreakRecord) TableName() string { return "reconciliation_breaks" }

// GormReconciliationBreakStore is a MySQL-backed ReconciliationBreakStore.
type GormReconciliationBreakStore struct {
	db *gorm.DB
}

// NewGormReconciliationBreakStore opens dsn and migrates the
// reconciliation_breaks table.
func NewGormReconciliationBreakStore(dsn string) (*GormReconciliationBreakStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewGormReconciliationBreakStoreWithDB(db)
}

// NewGormReconciliationBreakStoreWithDB wraps an existing *gorm.DB,
// migrating the reconciliation_breaks table.
func NewGormReconciliationBreakStoreWithDB(db *gorm.DB) (*GormReconciliationBreakStore, error) {
	if err := db.AutoMigrate(&reconciliationBreakRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate reconciliation_breaks schema: %w", err)
	}
	return &GormReconciliationBreakStore{db: db}, nil
}

func (s *GormReconciliationBreakStore) Record(ctx context.Context, b position.ReconciliationBreak) error {
	rec := reconciliationBreakRecord{
		BreakID:     b.BreakID.String(),
		PositionKey: b.PositionKey,
		Reason:      b.Reason,
		OldTotalQty: b.OldTotalQty.String(),
		NewTotalQty: b.NewTotalQty.String(),
		DetectedAt:  b.DetectedAt,
	}
	if result := s.db.WithContext(ctx).Create(&rec); result.Error != nil {
		return fmt.Errorf("failed to record reconciliation break: %w", result.Error)
	}
	return nil
}

// submissionRecord is the GORM model for the regulatory_submissions table.
type submissionRecord struct {
	SubmissionID string `gorm:"primaryKey;column:submission_id;type:varchar(36)"`
	PositionKey  string `gorm:"column:position_key;index;type:varchar(128);not null"`
	SubmittedAt  time.Time `gorm:"column:submitted_at"`
	Status       string `gorm:"column:status;type:varchar(20)"`
}

func (submissionRecord) TableName() string { return "regulatory_submissions" }

// GormSubmissionStore is a MySQL-backed SubmissionStore.
type GormSubmissionStore struct {
	db *gorm.DB
}

// NewGormSubmissionStore opens dsn and migrates the regulatory_submissions
// table.
func NewGormSubmissionStore(dsn string) (*GormSubmissionStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return NewGormSubmissionStoreWithDB(db)
}

// NewGormSubmissionStoreWithDB wraps an existing *gorm.DB, migrating the
// regulatory_submissions table.
func NewGormSubmissionStoreWithDB(db *gorm.DB) (*GormSubmissionStore, error) {
	if err := db.AutoMigrate(&submissionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate regulatory_submissions schema: %w", err)
	}
	return &GormSubmissionStore{db: db}, nil
}

func (s *GormSubmissionStore) Record(ctx context.Context, sub position.RegulatorySubmission) error {
	rec := submissionRecord{
		SubmissionID: sub.SubmissionID.String(),
		PositionKey:  sub.PositionKey,
		SubmittedAt:  sub.SubmittedAt,
		Status:       sub.Status,
	}
	if result := s.db.WithContext(ctx).Create(&rec); result.Error != nil {
		return fmt.Errorf("failed to record regulatory submission: %w", result.Error)
	}
	return nil
}
