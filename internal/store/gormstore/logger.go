package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// zapLogger routes gorm's statement log into the global zap logger.
type zapLogger struct {
	level logger.LogLevel
}

var _ logger.Interface = (*zapLogger)(nil)

func newZapLogger(level logger.LogLevel) *zapLogger {
	return &zapLogger{level: level}
}

func (l *zapLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &zapLogger{level: level}
}

func (l *zapLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		zap.S().Infof(msg, args...)
	}
}

func (l *zapLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		zap.S().Warnf(msg, args...)
	}
}

func (l *zapLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		zap.S().Errorf(msg, args...)
	}
}

func (l *zapLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		zap.L().Error("sql failed",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
			zap.String("namespace", "store"))
	case elapsed > slowQuery && l.level >= logger.Warn:
		sql, rows := fc()
		zap.L().Warn(fmt.Sprintf("slow sql >= %v", slowQuery),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.String("namespace", "store"))
	case l.level >= logger.Info:
		sql, rows := fc()
		zap.L().Debug("sql",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.String("namespace", "store"))
	}
}
