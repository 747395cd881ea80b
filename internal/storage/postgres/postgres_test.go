package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/curve-launchpad/internal/storage"
)

func TestGormLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core))

	l.Info(context.Background(), "hidden %d", 1)
	l.Warn(context.Background(), "slow query %d", 2)
	l.Error(context.Background(), "broken %s", "conn")
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "slow query 2", logs.All()[0].Message)

	verbose := l.LogMode(logger.Info)
	verbose.Info(context.Background(), "shown")
	assert.Equal(t, 3, logs.Len())

	silent := l.LogMode(logger.Silent)
	silent.Error(context.Background(), "nothing")
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("x"))
	assert.Equal(t, 3, logs.Len())
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core))
	sql := func() (string, int64) { return `SELECT * FROM "curves"`, 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("relation does not exist"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, `SELECT * FROM "curves"`, entry.ContextMap()["sql"])
}

func TestNotFoundMapping(t *testing.T) {
	assert.ErrorIs(t, notFound(gorm.ErrRecordNotFound), storage.ErrNotFound)
	other := errors.New("other")
	assert.Equal(t, other, notFound(other))
}

func TestNewStorageGivesUpAfterRetries(t *testing.T) {
	opts := ConnectOptions{MaxTries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	dsn := "host=127.0.0.1 port=1 user=launchpad dbname=launchpad sslmode=disable connect_timeout=1"

	_, err := NewStorage(context.Background(), dsn, zaptest.NewLogger(t), opts)
	assert.Error(t, err)
}

type fakeLocker struct {
	held      bool
	calls     []string
	unlockOK  bool
	unlockErr error
}

func (f *fakeLocker) tryLock(int64) (bool, error) {
	f.calls = append(f.calls, "lock")
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLocker) unlock(int64) (bool, error) {
	f.calls = append(f.calls, "unlock")
	f.held = false
	return f.unlockOK, f.unlockErr
}

func TestWithAdvisoryLock(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		locker    *fakeLocker
		fn        error
		wantErr   error
		wantMsg   string
		wantCalls []string
	}{
		{
			name:      "releases after success",
			locker:    &fakeLocker{unlockOK: true},
			wantCalls: []string{"lock", "run", "unlock"},
		},
		{
			name:      "releases after failure",
			locker:    &fakeLocker{unlockOK: true},
			fn:        boom,
			wantErr:   boom,
			wantCalls: []string{"lock", "run", "unlock"},
		},
		{
			name:      "busy lock skips migration",
			locker:    &fakeLocker{held: true, unlockOK: true},
			wantErr:   ErrMigrationLocked,
			wantCalls: []string{"lock"},
		},
		{
			name:      "unlock of a lock not held",
			locker:    &fakeLocker{unlockOK: false},
			wantMsg:   "not held by this session",
			wantCalls: []string{"lock", "run", "unlock"},
		},
		{
			name:      "unlock error joins run error",
			locker:    &fakeLocker{unlockErr: errors.New("conn reset")},
			fn:        boom,
			wantErr:   boom,
			wantMsg:   "conn reset",
			wantCalls: []string{"lock", "run", "unlock"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := withAdvisoryLock(tt.locker, migrationLockID, func() error {
				tt.locker.calls = append(tt.locker.calls, "run")
				return tt.fn
			})

			assert.Equal(t, tt.wantCalls, tt.locker.calls)
			if tt.wantErr == nil && tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

// LAUNCHPAD_TEST_POSTGRES_URL указывает на тестовую базу, иначе тест пропускается
func TestRunMigrationsReleasesLock(t *testing.T) {
	dsn := os.Getenv("LAUNCHPAD_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("LAUNCHPAD_TEST_POSTGRES_URL not set")
	}

	s, err := NewStorage(context.Background(), dsn, zaptest.NewLogger(t), DefaultConnectOptions())
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RunMigrations())
	}

	// Другая сессия должна получить lock сразу после миграции
	other, err := NewStorage(context.Background(), dsn, zaptest.NewLogger(t), DefaultConnectOptions())
	require.NoError(t, err)
	defer other.Close() //nolint:errcheck

	db := other.(*postgresStorage).db
	require.NoError(t, db.Connection(func(conn *gorm.DB) error {
		return withAdvisoryLock(sessionLocker{conn: conn}, migrationLockID, func() error { return nil })
	}))
}
