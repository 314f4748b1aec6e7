package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM invoices":                        "SELECT",
		"  insert into receipts (id) values (1)":        "INSERT",
		"WITH x AS (SELECT 1) UPDATE sessions SET a=1": "SELECT",
		"(DELETE FROM invoice_items)":                   "DELETE",
		"":                                              "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestGormLoggerLogModeCopies(t *testing.T) {
	base := NewGormLogger(DefaultGormLoggerConfig())
	silent := base.LogMode(gormlogger.Silent).(*GormLogger)

	assert.Equal(t, gormlogger.Silent, silent.cfg.Level)
	assert.Equal(t, gormlogger.Warn, base.cfg.Level)
}

func TestParamsFilterDropsValues(t *testing.T) {
	sql, params := NewGormLogger(DefaultGormLoggerConfig()).ParamsFilter(context.Background(), "SELECT ?", "Somchai")
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)
}
