package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/position"
)

func mockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestGormEventStore_Append(t *testing.T) {
	gormDB, mock := mockGormDB(t)
	store := &GormEventStore{db: gormDB}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `event_store`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ev := position.Event{
		PositionKey:   "pk-1",
		EventVer:      1,
		EventType:     position.EventNewTrade,
		EffectiveDate: time.Now(),
		OccurredAt:    time.Now(),
		Payload:       []byte(`{}`),
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
	}
	err := store.Append(context.Background(), ev)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormEventStore_Append_DuplicateKeyClassifiedAsVersionConflict(t *testing.T) {
	gormDB, mock := mockGormDB(t)
	store := &GormEventStore{db: gormDB}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `event_store`").
		WillReturnError(&mysqldriver.MySQLError{Number: mysqlErrDuplicateEntry, Message: "Duplicate entry"})
	mock.ExpectRollback()

	ev := position.Event{
		PositionKey:   "pk-1",
		EventVer:      1,
		EventType:     position.EventNewTrade,
		EffectiveDate: time.Now(),
		OccurredAt:    time.Now(),
		Payload:       []byte(`{}`),
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
	}
	err := store.Append(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, engineerr.KindVersionConflict, engineerr.Classify(err))
}

func TestGormEventStore_Append_ConnectionFailureClassifiedAsTransient(t *testing.T) {
	gormDB, mock := mockGormDB(t)
	store := &GormEventStore{db: gormDB}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `event_store`").WillReturnError(gorm.ErrInvalidDB)
	mock.ExpectRollback()

	ev := position.Event{
		PositionKey:   "pk-1",
		EventVer:      1,
		EventType:     position.EventNewTrade,
		EffectiveDate: time.Now(),
		OccurredAt:    time.Now(),
		Payload:       []byte(`{}`),
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
	}
	err := store.Append(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, engineerr.KindTransient, engineerr.Classify(err))
}

func TestGormEventStore_NextVersion(t *testing.T) {
	gormDB, mock := mockGormDB(t)
	store := &GormEventStore{db: gormDB}

	rows := sqlmock.NewRows([]string{"COALESCE(MAX(event_ver), 0)"}).AddRow(4)
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(rows)

	next, err := store.NextVersion(context.Background(), "pk-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), next)
}

func TestGormSnapshotStore_SaveVersionConflict(t *testing.T) {
	gormDB, mock := mockGormDB(t)
	store := &GormSnapshotStore{db: gormDB}

	st := &position.State{
		PositionKey: "pk-1",
		Account:     "ACC1",
		Instrument:  "AAPL",
		Currency:    "USD",
		Version:     3,
		Status:      position.StatusActive,
	}

	mock.ExpectBegin()
	existingRows := sqlmock.NewRows([]string{"position_key", "version"}).AddRow("pk-1", 5)
	mock.ExpectQuery("SELECT \\* FROM `snapshot_store`").WillReturnRows(existingRows)
	mock.ExpectRollback()

	err := store.Save(context.Background(), st, 3)
	require.Error(t, err)
}

func TestGormSubmissionStore_Record(t *testing.T) {
	gormDB, mock := mockGormDB(t)
	store := &GormSubmissionStore{db: gormDB}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `regulatory_submissions`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Record(context.Background(), position.RegulatorySubmission{
		SubmissionID: uuid.New(),
		PositionKey:  "pk-1",
		SubmittedAt:  time.Now(),
		Status:       "PENDING",
	})
	require.NoError(t, err)
}

func TestGormReconciliationBreakStore_Record(t *testing.T) {
	gormDB, mock := mockGormDB(t)
	store := &GormReconciliationBreakStore{db: gormDB}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `reconciliation_breaks`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Record(context.Background(), position.ReconciliationBreak{
		BreakID:     uuid.New(),
		PositionKey: "pk-1",
		Reason:      "magnitude exceeded tolerance",
		OldTotalQty: decimal.NewFromInt(100),
		NewTotalQty: decimal.NewFromInt(150),
		DetectedAt:  time.Now(),
	})
	require.NoError(t, err)
}
