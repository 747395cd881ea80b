// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/curve-launchpad/internal/storage"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/models"
)

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

// newGormLogger создает новый логгер для GORM
func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

// LogMode реализация интерфейса logger.Interface
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

// Info реализация интерфейса logger.Interface
func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

// Warn реализация интерфейса logger.Interface
func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

// Error реализация интерфейса logger.Interface
func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace реализация интерфейса logger.Interface
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Debug("trace", fields...)
	}
}

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// ConnectOptions управляет повторными попытками подключения
type ConnectOptions struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxTries:        5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func NewStorage(ctx context.Context, dsn string, zapLogger *zap.Logger, opts ConnectOptions) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.InitialInterval
	eb.MaxInterval = opts.MaxInterval

	// База может подниматься одновременно с нами
	db, err := backoff.Retry(ctx, func() (*gorm.DB, error) {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormLogger,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
			DisableForeignKeyConstraintWhenMigrating: true,
			SkipDefaultTransaction:                   true,
		})
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(opts.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			zapLogger.Warn("Postgres connection failed, retrying",
				zap.Error(err),
				zap.Duration("next_attempt", next))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

const migrationLockID = 101

// ErrMigrationLocked возвращается, пока миграцию выполняет другой процесс
var ErrMigrationLocked = errors.New("another migration is in progress")

// advisoryLocker берет и освобождает advisory lock уровня сессии
type advisoryLocker interface {
	tryLock(id int64) (bool, error)
	unlock(id int64) (bool, error)
}

// sessionLocker выполняет вызовы на одном закрепленном соединении:
// advisory lock принадлежит сессии, которая его взяла
type sessionLocker struct {
	conn *gorm.DB
}

func (s sessionLocker) tryLock(id int64) (bool, error) {
	var ok bool
	err := s.conn.Raw("SELECT pg_try_advisory_lock(?)", id).Scan(&ok).Error
	return ok, err
}

func (s sessionLocker) unlock(id int64) (bool, error) {
	var ok bool
	err := s.conn.Raw("SELECT pg_advisory_unlock(?)", id).Scan(&ok).Error
	return ok, err
}

// withAdvisoryLock выполняет fn под lock id и сообщает о неудачном освобождении
func withAdvisoryLock(l advisoryLocker, id int64, fn func() error) (err error) {
	obtained, err := l.tryLock(id)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !obtained {
		return ErrMigrationLocked
	}
	defer func() {
		released, unlockErr := l.unlock(id)
		if unlockErr == nil && !released {
			unlockErr = fmt.Errorf("lock %d was not held by this session", id)
		}
		if unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release migration lock: %w", unlockErr))
		}
	}()
	return fn()
}

// RunMigrations использует GORM AutoMigrate под advisory lock.
// Lock, миграция и unlock идут через одно соединение пула
func (p *postgresStorage) RunMigrations() error {
	return p.db.Connection(func(conn *gorm.DB) error {
		return withAdvisoryLock(sessionLocker{conn: conn}, migrationLockID, func() error {
			err := conn.AutoMigrate(
				&models.Trade{},
				&models.Curve{},
				&models.Invite{},
				&models.Claim{},
				&models.ParamsChange{},
			)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			return nil
		})
	})
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func (p *postgresStorage) SaveTrade(ctx context.Context, trade *models.Trade) error {
	return p.db.WithContext(ctx).Create(trade).Error
}

func (p *postgresStorage) ListTrades(ctx context.Context, filter storage.TradeFilter) ([]*models.Trade, error) {
	q := p.db.WithContext(ctx).Model(&models.Trade{})
	if filter.Mint != "" {
		q = q.Where("mint = ?", filter.Mint)
	}
	if filter.User != "" {
		q = q.Where("\"user\" = ?", filter.User)
	}
	switch filter.Action {
	case models.ActionBuy:
		q = q.Where("is_buy = ?", true)
	case models.ActionSell:
		q = q.Where("is_buy = ?", false)
	}
	if !filter.Since.IsZero() {
		q = q.Where("block_time >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("block_time <= ?", filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var trades []*models.Trade
	err := q.Order("block_time asc, id asc").Find(&trades).Error
	return trades, err
}

func (p *postgresStorage) SaveCurve(ctx context.Context, curve *models.Curve) error {
	return p.db.WithContext(ctx).Create(curve).Error
}

func (p *postgresStorage) GetCurve(ctx context.Context, mint string) (*models.Curve, error) {
	var curve models.Curve
	err := p.db.WithContext(ctx).Where("mint = ?", mint).First(&curve).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &curve, nil
}

func (p *postgresStorage) MarkCurveComplete(ctx context.Context, mint, user string, at time.Time) error {
	res := p.db.WithContext(ctx).Model(&models.Curve{}).
		Where("mint = ?", mint).
		Updates(map[string]interface{}{
			"complete":     true,
			"completed_by": user,
			"completed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *postgresStorage) SaveInvite(ctx context.Context, invite *models.Invite) error {
	return p.db.WithContext(ctx).Create(invite).Error
}

func (p *postgresStorage) SaveClaim(ctx context.Context, claim *models.Claim) error {
	return p.db.WithContext(ctx).Create(claim).Error
}

func (p *postgresStorage) ListClaims(ctx context.Context, user string, limit, offset int) ([]*models.Claim, error) {
	q := p.db.WithContext(ctx).Where("\"user\" = ?", user)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var claims []*models.Claim
	err := q.Order("claimed_at desc, id desc").Find(&claims).Error
	return claims, err
}

func (p *postgresStorage) SaveParamsChange(ctx context.Context, change *models.ParamsChange) error {
	return p.db.WithContext(ctx).Create(change).Error
}
