package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	customlogger "tg-exchange/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// CustomGormLogger 把 GORM 的日志转发到我们自己的分级 logger
type CustomGormLogger struct {
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	SkipCallerLookup          bool
	IgnoreRecordNotFoundError bool
}

// NewCustomGormLogger 根据配置的日志级别创建适配器
func NewCustomGormLogger(level string) logger.Interface {
	// GORM 的 Info 会打印每条 SQL，只在 DEBUG 下打开
	logLevel := logger.Warn
	switch customlogger.ParseLevel(level) {
	case customlogger.LevelDebug:
		logLevel = logger.Info
	case customlogger.LevelError:
		logLevel = logger.Error
	}

	return &CustomGormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		customlogger.Infof(msg, data...)
	}
}

func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		customlogger.Warningf(msg, data...)
	}
}

func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		customlogger.Errorf(msg, data...)
	}
}

// Trace 记录 SQL 执行情况：出错记 ERROR，慢查询记 WARNING，其余记 DEBUG
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	prefix := fmt.Sprintf("[%.3fms]", float64(elapsed.Nanoseconds())/1e6)
	if !l.SkipCallerLookup {
		prefix += " [" + utils.FileWithLineNum() + "]"
	}

	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		customlogger.Errorf("%s %s; error=%v", prefix, sql, err)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= logger.Warn:
		customlogger.Warningf("%s %s; SLOW SQL >= %v, rows=%v", prefix, sql, l.SlowThreshold, rows)
	case l.LogLevel == logger.Info:
		customlogger.Debugf("%s %s; rows=%v", prefix, sql, rows)
	}
}
