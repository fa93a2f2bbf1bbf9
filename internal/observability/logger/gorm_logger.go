package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
	// GuardedTables are tables whose UPDATEs are conditional state
	// transitions. An UPDATE on them that matches no row is logged at info.
	GuardedTables []string
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
		GuardedTables:        []string{"billing_periods", "containers", "work_orders"},
	}
}

// GormLogger writes SQL through zap. Lines carry request, org and billing
// period fields taken from the statement context.
type GormLogger struct {
	level                gormlogger.LogLevel
	slowThreshold        time.Duration
	ignoreRecordNotFound bool
	guarded              map[string]struct{}
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	guarded := make(map[string]struct{}, len(cfg.GuardedTables))
	for _, table := range cfg.GuardedTables {
		guarded[strings.ToLower(table)] = struct{}{}
	}
	return &GormLogger{
		level:                cfg.Level,
		slowThreshold:        cfg.SlowThreshold,
		ignoreRecordNotFound: cfg.IgnoreRecordNotFound,
		guarded:              guarded,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.base(ctx).Info(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.base(ctx).Warn(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.base(ctx).Error(msg, zap.Any("data", data))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var level zapcore.Level
	switch {
	case err != nil && l.level >= gormlogger.Error && (!errors.Is(err, gormlogger.ErrRecordNotFound) || !l.ignoreRecordNotFound):
		level = zap.ErrorLevel
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		level = zap.WarnLevel
	case l.level >= gormlogger.Info:
		level = zap.DebugLevel
	default:
		// Guarded misses are reported even when plain queries are not.
		sql, rows := fc()
		if rows == 0 && l.isGuardedUpdate(sql) {
			l.write(ctx, zap.InfoLevel, "gorm.guarded_update_missed", sql, rows, elapsed, nil)
		}
		return
	}

	sql, rows := fc()
	msg := "gorm.query"
	if level == zap.DebugLevel && rows == 0 && l.isGuardedUpdate(sql) {
		level, msg = zap.InfoLevel, "gorm.guarded_update_missed"
	}
	l.write(ctx, level, msg, sql, rows, elapsed, err)
}

// ParamsFilter drops bound values so amounts and emails stay out of logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) base(ctx context.Context) *zap.Logger {
	return FromContext(ctx).With(zap.String("component", "gorm"))
}

func (l *GormLogger) write(ctx context.Context, level zapcore.Level, msg, sql string, rows int64, elapsed time.Duration, err error) {
	operation, table := parseStatement(sql)
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", operation),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if ce := l.base(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (l *GormLogger) isGuardedUpdate(sql string) bool {
	operation, table := parseStatement(sql)
	if operation != "UPDATE" {
		return false
	}
	_, ok := l.guarded[table]
	return ok
}

// parseStatement returns the statement verb and the first table it names.
func parseStatement(sql string) (string, string) {
	tokens := strings.Fields(sql)
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "WITH":
			continue
		case "SELECT", "DELETE", "MERGE":
			return token, tableAfter(tokens[i+1:], "FROM")
		case "INSERT":
			return token, tableAfter(tokens[i+1:], "INTO")
		case "UPDATE":
			if i+1 < len(tokens) {
				return token, cleanTable(tokens[i+1])
			}
			return token, ""
		}
	}
	return "UNKNOWN", ""
}

func tableAfter(tokens []string, keyword string) string {
	for i, token := range tokens {
		if strings.EqualFold(token, keyword) && i+1 < len(tokens) {
			return cleanTable(tokens[i+1])
		}
	}
	return ""
}

func cleanTable(token string) string {
	token = strings.Trim(token, "`\"();,")
	if idx := strings.LastIndex(token, "."); idx >= 0 {
		token = token[idx+1:]
	}
	return strings.ToLower(strings.Trim(token, "`\""))
}

var _ gormlogger.Interface = (*GormLogger)(nil)
