package datastore

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm/logger"

	"github.com/deeptracer/deeptracer-go/internal/logging"
)

// gormLogger bridges GORM's logger interface onto the service slog logger.
type gormLogger struct {
	slowThreshold time.Duration
	logLevel      logger.LogLevel
	logger        *slog.Logger
}

func newGormLogger() *gormLogger {
	return &gormLogger{
		slowThreshold: 200 * time.Millisecond,
		logLevel:      logger.Warn,
		logger:        logging.ForService("datastore"),
	}
}

// LogMode implements logger.Interface.
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.logLevel >= logger.Info {
		l.logger.Info(msg, "args", args)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.logLevel >= logger.Warn {
		l.logger.Warn(msg, "args", args)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.logLevel >= logger.Error {
		l.logger.Error(msg, "args", args)
	}
}

// Trace logs completed statements. Only errors and slow queries surface at
// the default level.
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.logLevel >= logger.Error:
		l.logger.Error("query failed", "error", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case elapsed > l.slowThreshold && l.logLevel >= logger.Warn:
		l.logger.Warn("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.logLevel >= logger.Info:
		l.logger.Debug("query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
