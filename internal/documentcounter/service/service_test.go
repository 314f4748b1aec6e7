package service_test

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/smallbiznis/schoolbill/internal/documentcounter/domain"
	"github.com/smallbiznis/schoolbill/internal/documentcounter/repository"
	"github.com/smallbiznis/schoolbill/internal/documentcounter/service"
	"github.com/smallbiznis/schoolbill/internal/migration"
	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var documentIDPattern = regexp.MustCompile(`^\d{8}\d{4,}$`)

func newService(t *testing.T, c clock.Clock, tz string) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenSQLite(t)
	require.NoError(t, migration.AutoMigrate(db))

	svc, err := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{BillingTimezone: tz},
		Clock: c,
		Repo:  repository.Provide(),
	})
	require.NoError(t, err)
	return svc, db
}

func TestNextDocumentIDFormatsAndIncrements(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC))
	svc, _ := newService(t, c, "UTC")
	ctx := context.Background()

	first, err := svc.NextDocumentID(ctx)
	require.NoError(t, err)
	second, err := svc.NextDocumentID(ctx)
	require.NoError(t, err)

	assert.Equal(t, "202508120001", first)
	assert.Equal(t, "202508120002", second)
	assert.Regexp(t, documentIDPattern, first)
}

func TestNextDocumentIDStartsNewSeriesEachDay(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2025, 8, 12, 23, 0, 0, 0, time.UTC))
	svc, _ := newService(t, c, "UTC")
	ctx := context.Background()

	_, err := svc.NextDocumentID(ctx)
	require.NoError(t, err)
	_, err = svc.NextDocumentID(ctx)
	require.NoError(t, err)

	c.Advance(2 * time.Hour)
	next, err := svc.NextDocumentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "202508130001", next)
}

func TestNextDocumentIDUsesBillingTimezone(t *testing.T) {
	// 20:00 UTC is already the next day in Bangkok.
	c := clock.NewFakeClock(time.Date(2025, 8, 12, 20, 0, 0, 0, time.UTC))
	svc, _ := newService(t, c, "Asia/Bangkok")

	next, err := svc.NextDocumentID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "202508130001", next)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	db := testutil.OpenSQLite(t)
	_, err := service.New(service.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Cfg:  config.Config{BillingTimezone: "Mars/Olympus"},
		Repo: repository.Provide(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestPeekDoesNotAllocate(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC))
	svc, _ := newService(t, c, "UTC")
	ctx := context.Background()

	peek, err := svc.PeekNextDocumentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "202508120001", peek)

	again, err := svc.PeekNextDocumentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, peek, again)

	next, err := svc.NextDocumentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, peek, next)

	peek, err = svc.PeekNextDocumentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "202508120002", peek)
}

func TestNextRollsBackWithCallerTransaction(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC))
	svc, db := newService(t, c, "UTC")
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		id, err := svc.Next(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, "202508120001", id)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	next, err := svc.NextDocumentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "202508120001", next)
}

func TestNextDocumentIDConcurrentCallsAreDistinct(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC))
	svc, _ := newService(t, c, "UTC")
	ctx := context.Background()

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  []string
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.NextDocumentID(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids = append(ids, id)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, ids, workers)

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	sort.Strings(ids)
	assert.Equal(t, "202508120001", ids[0])
	assert.Equal(t, "202508120020", ids[workers-1])
}

func TestFormatWidensPastFourDigits(t *testing.T) {
	assert.Equal(t, "202508129999", service.Format("20250812", 9999))
	assert.Equal(t, "2025081210000", service.Format("20250812", 10000))
	assert.Equal(t, "202508120042", service.Format("20250812", 42))
}
