package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/cache"
	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/importer"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	stores, err := database.OpenStores(":memory:", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	return NewService(stores, cache.NewCache(100, time.Minute), logger.NewNop())
}

func record(caseType casenum.CaseType, serial int, bench database.BenchType, hearing, next string) importer.ImportRecord {
	return importer.ImportRecord{
		CaseType:        caseType,
		SerialNumber:    serial,
		PlaceOfFiling:   "NAG",
		YearOfFiling:    2023,
		FiledBy:         importer.FiledByCodeAssessee,
		BenchType:       bench,
		AssesseeName:    "Acme Corp",
		AssessmentYear:  "2022-23",
		DisputedAmount:  50000,
		ArguedBy:        database.ArguedByCITDR,
		HearingDate:     hearing,
		NextHearingDate: next,
	}
}

func seed(t *testing.T, s *Service, store database.StoreName, records ...importer.ImportRecord) {
	t.Helper()
	db, err := s.stores.Get(store)
	require.NoError(t, err)

	summary, err := importer.NewPipeline(db, logger.NewNop(), importer.WithStoreName(store)).
		ImportBatch(context.Background(), records)
	require.NoError(t, err)
	require.Empty(t, summary.Failed)
}

func TestCaseByNumber(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging,
		record(casenum.CaseTypeITA, 108, database.BenchDB, "2023-05-20", ""),
		record(casenum.CaseTypeITA, 108, database.BenchDB, "2023-03-10", ""),
	)
	ctx := context.Background()

	c, err := s.CaseByNumber(ctx, database.StoreStaging, "ITA 108/NAG/2023")
	require.NoError(t, err)
	assert.Equal(t, "ITA 108/NAG/2023", c.CaseNo)
	require.Len(t, c.Hearings, 2)
	assert.Equal(t, "2023-03-10", c.Hearings[0].HearingDate)
	assert.Equal(t, "2023-05-20", c.Hearings[1].HearingDate)

	// Second lookup is served from the cache.
	_, err = s.CaseByNumber(ctx, database.StoreStaging, "ITA 108/NAG/2023")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.cache.Stats().Hits)

	// Main is a separate store.
	_, err = s.CaseByNumber(ctx, database.StoreMain, "ITA 108/NAG/2023")
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestCaseByNumberErrors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, caseNo := range []string{"", "ITA108/NAG/2023", "XYZ 1/NAG/2023", "ITA 1/nag/2023"} {
		_, err := s.CaseByNumber(ctx, database.StoreStaging, caseNo)
		assert.ErrorIs(t, err, ErrInvalidCaseNo, caseNo)
	}

	_, err := s.CaseByNumber(ctx, database.StoreStaging, "MA 9/NAG/2020")
	assert.ErrorIs(t, err, ErrCaseNotFound)

	_, err = s.CaseByNumber(ctx, "archive", "MA 9/NAG/2020")
	assert.ErrorIs(t, err, database.ErrUnknownStore)
}

func TestCaseByNumberConcurrent(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging, record(casenum.CaseTypeSA, 3, database.BenchSMC, "2023-03-10", ""))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.CaseByNumber(context.Background(), database.StoreStaging, "SA 3/NAG/2023")
			if err == nil && c.CaseNo != "SA 3/NAG/2023" {
				err = errors.New("wrong case returned")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCaseByNumberInvalidatedAfterImport(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging, record(casenum.CaseTypeITA, 1, database.BenchDB, "2023-03-10", ""))
	ctx := context.Background()

	_, err := s.CaseByNumber(ctx, database.StoreStaging, "ITA 1/NAG/2023")
	require.NoError(t, err)

	seed(t, s, database.StoreStaging, record(casenum.CaseTypeITA, 1, database.BenchDB, "2023-04-10", ""))
	s.Invalidate(database.StoreStaging, "ITA 1/NAG/2023")

	c, err := s.CaseByNumber(ctx, database.StoreStaging, "ITA 1/NAG/2023")
	require.NoError(t, err)
	assert.Len(t, c.Hearings, 2)
}

func TestCasesByHearingDate(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging,
		record(casenum.CaseTypeITA, 20, database.BenchSMC, "2023-03-10", ""),
		record(casenum.CaseTypeMA, 5, database.BenchDB, "2023-03-10", "2023-04-01"),
		record(casenum.CaseTypeITA, 7, database.BenchDB, "2023-03-10", ""),
		record(casenum.CaseTypeITA, 2, database.BenchDB, "2023-03-11", ""),
	)

	rows, err := s.CasesByHearingDate(context.Background(), database.StoreStaging, "2023-03-10")
	require.NoError(t, err)

	got := make([]string, 0, len(rows))
	for _, r := range rows {
		assert.Equal(t, "2023-03-10", r.HearingDate)
		got = append(got, r.CaseNo)
	}
	assert.Equal(t, []string{"ITA 7/NAG/2023", "MA 5/NAG/2023", "ITA 20/NAG/2023"}, got)

	_, err = s.CasesByHearingDate(context.Background(), database.StoreStaging, "10-03-2023")
	assert.ErrorIs(t, err, ErrInvalidDate)

	rows, err = s.CasesByHearingDate(context.Background(), database.StoreStaging, "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCaseByNumberIgnoresZeroPadding(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging, record(casenum.CaseTypeITA, 108, database.BenchDB, "2023-03-10", ""))

	c, err := s.CaseByNumber(context.Background(), database.StoreStaging, " ITA 0108/NAG/2023 ")
	require.NoError(t, err)
	assert.Equal(t, "ITA 108/NAG/2023", c.CaseNo)
}

// onCaseQuery runs fn before every query that loads a single case row.
func onCaseQuery(t *testing.T, s *Service, fn func()) {
	t.Helper()
	db, err := s.stores.Get(database.StoreStaging)
	require.NoError(t, err)
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:case_query", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*database.Case); ok {
			fn()
		}
	}))
}

func TestCaseByNumberSharedFetchSurvivesCallerCancel(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging, record(casenum.CaseTypeITA, 5, database.BenchDB, "2023-03-10", ""))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var queries int32
	onCaseQuery(t, s, func() {
		if atomic.AddInt32(&queries, 1) == 1 {
			cancel()
		}
	})

	// The first caller leaves; whichever way it returns, the fetch it started
	// still completes and is reused.
	_, _ = s.CaseByNumber(ctx, database.StoreStaging, "ITA 5/NAG/2023")

	c, err := s.CaseByNumber(context.Background(), database.StoreStaging, "ITA 5/NAG/2023")
	require.NoError(t, err)
	assert.Equal(t, "ITA 5/NAG/2023", c.CaseNo)
	assert.Equal(t, int32(1), atomic.LoadInt32(&queries))
}

func TestCaseByNumberCancelledCaller(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging, record(casenum.CaseTypeITA, 6, database.BenchDB, "2023-03-10", ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	onCaseQuery(t, s, func() { <-block })

	_, err := s.CaseByNumber(ctx, database.StoreStaging, "ITA 6/NAG/2023")
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	c, err := s.CaseByNumber(context.Background(), database.StoreStaging, "ITA 6/NAG/2023")
	require.NoError(t, err)
	assert.Equal(t, "ITA 6/NAG/2023", c.CaseNo)
}

func TestCaseByNumberDoesNotCacheAcrossInvalidate(t *testing.T) {
	s := newTestService(t)
	seed(t, s, database.StoreStaging, record(casenum.CaseTypeITA, 7, database.BenchDB, "2023-03-10", ""))

	var once sync.Once
	onCaseQuery(t, s, func() {
		// An import commits while the read is in flight.
		once.Do(func() { s.Invalidate(database.StoreStaging, "ITA 7/NAG/2023") })
	})

	_, err := s.CaseByNumber(context.Background(), database.StoreStaging, "ITA 7/NAG/2023")
	require.NoError(t, err)

	_, found := s.cache.Get(cache.GenerateCacheKey(database.StoreStaging, "ITA 7/NAG/2023"))
	assert.False(t, found)
}
