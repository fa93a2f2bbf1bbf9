package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func statement(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestParseStatement(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{`UPDATE billing_periods SET status = ? WHERE id = ?`, "UPDATE", "billing_periods"},
		{`UPDATE "containers" SET active = false`, "UPDATE", "containers"},
		{`INSERT INTO invoices (id) VALUES (?)`, "INSERT", "invoices"},
		{`SELECT * FROM "public"."work_orders" WHERE id = 1`, "SELECT", "work_orders"},
		{`WITH seq AS (SELECT MAX(invoice_seq) FROM invoices) SELECT 1`, "SELECT", "invoices"},
		{`PRAGMA foreign_keys = ON`, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		operation, table := parseStatement(tc.sql)
		assert.Equal(t, tc.operation, operation, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormLogger_GuardedUpdateMissIsReportedAtWarnLevel(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	orgID := node.Generate()
	ctx := WithBillingPeriodID(orgcontext.WithOrgID(context.Background(), orgID), "42")

	l.Trace(ctx, time.Now(), statement(`UPDATE billing_periods SET status = ? WHERE claim_token = ?`, 0), nil)
	l.Trace(ctx, time.Now(), statement(`UPDATE billing_periods SET status = ? WHERE claim_token = ?`, 1), nil)
	l.Trace(ctx, time.Now(), statement(`UPDATE customers SET consolidated_billing = ?`, 0), nil)
	l.Trace(ctx, time.Now(), statement(`SELECT * FROM containers`, 0), nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "gorm.guarded_update_missed", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "billing_periods", fields["table"])
	assert.Equal(t, "UPDATE", fields["operation"])
	assert.Equal(t, int64(0), fields["rows_affected"])
	assert.Equal(t, orgID.String(), fields["org_id"])
	assert.Equal(t, "42", fields["billing_period_id"])
	assert.Equal(t, "gorm", fields["component"])
}

func TestGormLogger_ErrorsAndSlowQueries(t *testing.T) {
	logs := observeGlobal(t)
	cfg := DefaultGormLoggerConfig()
	cfg.SlowThreshold = time.Millisecond
	l := NewGormLogger(cfg)
	ctx := context.Background()

	l.Trace(ctx, time.Now(), statement(`SELECT * FROM invoices`, -1), gormlogger.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), statement(`INSERT INTO invoices (id) VALUES (?)`, 0), errors.New("boom"))
	l.Trace(ctx, time.Now().Add(-time.Second), statement(`SELECT * FROM invoices`, 3), nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "invoices", entries[1].ContextMap()["table"])
}

func TestGormLogger_SilentLogsNothing(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(DefaultGormLoggerConfig()).LogMode(gormlogger.Silent)

	l.Trace(context.Background(), time.Now(), statement(`UPDATE containers SET active = false`, 0), errors.New("boom"))
	l.Info(context.Background(), "ignored")

	assert.Zero(t, logs.Len())
}
