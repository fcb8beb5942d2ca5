package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type labelRecord struct {
	ID             uint   `gorm:"primaryKey"`
	TrackingNumber string `gorm:"size:64"`
	CreatedAt      time.Time
}

func openTracedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&labelRecord{}))
	return db
}

func newSpanRecorder() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), recorder
}

func sqliteTracingConfig() DBTracingConfig {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	return cfg
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)

	// Statement text and bind parameters stay out of spans unless opted in.
	assert.False(t, cfg.LogFullSQL)
	assert.True(t, cfg.WithoutVariables)
}

func TestRegisterOtelGorm(t *testing.T) {
	t.Run("disabled config leaves the DB untouched", func(t *testing.T) {
		db := openTracedTestDB(t)
		plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
		assert.NoError(t, plugin.RegisterOtelGorm(db))
	})

	t.Run("enabled registers plugin and callbacks", func(t *testing.T) {
		db := openTracedTestDB(t)
		plugin := NewDBTracingPlugin(sqliteTracingConfig(), zap.NewNop())
		assert.NoError(t, plugin.RegisterOtelGorm(db))
	})

	t.Run("full SQL mode registers", func(t *testing.T) {
		db := openTracedTestDB(t)
		cfg := sqliteTracingConfig()
		cfg.LogFullSQL = true
		cfg.WithoutVariables = false
		plugin := NewDBTracingPlugin(cfg, zap.NewNop())
		assert.NoError(t, plugin.RegisterOtelGorm(db))
	})

	t.Run("double registration fails on duplicate names", func(t *testing.T) {
		db := openTracedTestDB(t)
		plugin := NewDBTracingPlugin(sqliteTracingConfig(), zap.NewNop())
		require.NoError(t, plugin.RegisterOtelGorm(db))
		assert.Error(t, plugin.RegisterOtelGorm(db))
	})
}

func TestWithQueryStartTime(t *testing.T) {
	ctx := WithQueryStartTime(context.Background())

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), startTime, time.Second)
}

func TestAnnotateQuerySpan_RowsAffectedAndTable(t *testing.T) {
	db := openTracedTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "label-batch-insert")
	db = db.WithContext(ctx)

	records := []labelRecord{
		{TrackingNumber: "1Z999AA10123456784"},
		{TrackingNumber: "1Z999AA10123456785"},
		{TrackingNumber: "1Z999AA10123456786"},
	}
	result := db.Create(&records)
	require.NoError(t, result.Error)

	plugin := NewDBTracingPlugin(sqliteTracingConfig(), zap.NewNop())
	plugin.annotateQuerySpan(result.Statement.DB)
	span.End()

	spans := recorder.Ended()
	require.NotEmpty(t, spans)

	var gotRows, gotTable bool
	for _, attr := range spans[0].Attributes() {
		switch attr.Key {
		case "db.rows_affected":
			gotRows = true
			assert.Equal(t, int64(3), attr.Value.AsInt64())
		case "db.sql.table":
			gotTable = true
			assert.Equal(t, "label_records", attr.Value.AsString())
		}
	}
	assert.True(t, gotRows, "db.rows_affected missing")
	assert.True(t, gotTable, "db.sql.table missing")
}

func TestAnnotateQuerySpan_RecordNotFoundIsNotAnError(t *testing.T) {
	db := openTracedTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "connection-lookup")
	db = db.WithContext(ctx)

	var rec labelRecord
	tx := db.First(&rec, 99999)
	require.ErrorIs(t, tx.Error, gorm.ErrRecordNotFound)

	plugin := NewDBTracingPlugin(sqliteTracingConfig(), zap.NewNop())
	plugin.annotateQuerySpan(tx)
	span.End()

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestAnnotateQuerySpan_SlowQueryEvent(t *testing.T) {
	db := openTracedTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "slow-lookup")
	ctx = WithQueryStartTime(ctx)
	time.Sleep(time.Millisecond)
	db = db.WithContext(ctx)

	var rec labelRecord
	db.First(&rec)

	cfg := sqliteTracingConfig()
	cfg.SlowQueryThresh = time.Nanosecond
	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	plugin.annotateQuerySpan(db.Statement.DB)
	span.End()

	spans := recorder.Ended()
	require.NotEmpty(t, spans)

	var gotEvent bool
	for _, event := range spans[0].Events() {
		if event.Name == "slow_query_warning" {
			gotEvent = true
			for _, attr := range event.Attributes {
				if attr.Key == "threshold_ms" {
					assert.Equal(t, int64(0), attr.Value.AsInt64())
				}
			}
		}
	}
	assert.True(t, gotEvent, "slow_query_warning event missing")

	var gotSlowAttr bool
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "db.slow_query" {
			gotSlowAttr = attr.Value.AsBool()
		}
	}
	assert.True(t, gotSlowAttr, "db.slow_query attribute missing")
}

func TestAnnotateQuerySpan_ToleratesMissingSpanAndContext(t *testing.T) {
	plugin := NewDBTracingPlugin(sqliteTracingConfig(), zap.NewNop())

	t.Run("no recording span", func(t *testing.T) {
		db := openTracedTestDB(t).WithContext(context.Background())
		assert.NotPanics(t, func() { plugin.annotateQuerySpan(db) })
	})

	t.Run("nil statement context", func(t *testing.T) {
		db := openTracedTestDB(t)
		assert.NotPanics(t, func() { plugin.annotateQuerySpan(db) })
	})
}

func TestMarkQueryStart(t *testing.T) {
	db := openTracedTestDB(t).WithContext(context.Background())
	markQueryStart(db)

	_, ok := db.Statement.Context.Value(queryStartTimeKey).(time.Time)
	assert.True(t, ok)
}

func TestTracedQueriesEndToEnd(t *testing.T) {
	db := openTracedTestDB(t)
	tp, recorder := newSpanRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	cfg := sqliteTracingConfig()
	cfg.LogFullSQL = true
	cfg.WithoutVariables = false
	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	ctx, span := tp.Tracer("test").Start(context.Background(), "void-label")
	db = db.WithContext(ctx)

	require.NoError(t, db.Create(&labelRecord{TrackingNumber: "794644790132"}).Error)

	var found labelRecord
	require.NoError(t, db.First(&found, "tracking_number = ?", "794644790132").Error)
	assert.Equal(t, "794644790132", found.TrackingNumber)

	span.End()
	assert.NotEmpty(t, recorder.Ended())
}

func BenchmarkAnnotateQuerySpan(b *testing.B) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		b.Fatal(err)
	}
	if err := db.AutoMigrate(&labelRecord{}); err != nil {
		b.Fatal(err)
	}

	plugin := NewDBTracingPlugin(sqliteTracingConfig(), zap.NewNop())
	db = db.WithContext(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		plugin.annotateQuerySpan(db)
	}
}
