package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogger sends gorm output to the request-scoped zap logger. Bound values are
// never logged and a missing row is not an error: usage records are created lazily.
type SQLLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

// NewSQLLogger logs failures and statements slower than slow. LogMode(Info) adds every statement at debug.
func NewSQLLogger(slow time.Duration) *SQLLogger {
	return &SQLLogger{level: gormlogger.Warn, slow: slow}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		FromContext(ctx).Info(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		FromContext(ctx).Warn(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		FromContext(ctx).Error(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed > l.slow

	switch {
	case failed && l.level >= gormlogger.Error:
		FromContext(ctx).Error("sql_failed", append(statementFields(fc, elapsed), zap.Error(err))...)
	case slow && l.level >= gormlogger.Warn:
		FromContext(ctx).Warn("sql_slow", append(statementFields(fc, elapsed), zap.Duration("threshold", l.slow))...)
	case l.level >= gormlogger.Info:
		FromContext(ctx).Debug("sql", statementFields(fc, elapsed)...)
	}
}

// ParamsFilter drops bound values; user ids and credit amounts stay out of logs.
func (l *SQLLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func statementFields(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	op, table := statementShape(sql)
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("operation", op),
		zap.String("table", table),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	return fields
}

// statementShape returns the first verb of a statement and the table it targets.
func statementShape(sql string) (op, table string) {
	tokens := strings.Fields(sql)
	target := ""
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch {
		case op == "" && (token == "SELECT" || token == "INSERT" || token == "UPDATE" || token == "DELETE"):
			op = token
			if token == "UPDATE" {
				target = tableName(tokens, i+1)
			}
		case op != "" && target == "" && (token == "FROM" || token == "INTO"):
			target = tableName(tokens, i+1)
		}
		if op != "" && target != "" {
			break
		}
	}
	if op == "" {
		op = "UNKNOWN"
	}
	return op, target
}

func tableName(tokens []string, i int) string {
	if i >= len(tokens) {
		return ""
	}
	return strings.Trim(tokens[i], "\"`();")
}

var _ gormlogger.Interface = (*SQLLogger)(nil)
