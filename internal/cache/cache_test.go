package cache

import (
	"testing"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detail(caseNo string) *database.Case {
	return &database.Case{
		CaseNo:   caseNo,
		Hearings: []database.Hearing{{CaseNo: caseNo, HearingDate: "2023-03-10"}},
	}
}

func TestCacheGetSet(t *testing.T) {
	c := NewCache(10, time.Minute)
	key := GenerateCacheKey(database.StoreStaging, "ITA 108/NAG/2023")

	_, found := c.Get(key)
	assert.False(t, found)

	require.NoError(t, c.Set(key, detail("ITA 108/NAG/2023")))

	got, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, "ITA 108/NAG/2023", got.CaseNo)
	assert.Len(t, got.Hearings, 1)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestCacheKeysAreScopedByStore(t *testing.T) {
	assert.Equal(t, "case:staging:ITA 1/NAG/2023", GenerateCacheKey(database.StoreStaging, " ITA 1/NAG/2023 "))
	assert.NotEqual(t,
		GenerateCacheKey(database.StoreStaging, "ITA 1/NAG/2023"),
		GenerateCacheKey(database.StoreMain, "ITA 1/NAG/2023"),
	)
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(10, time.Minute)
	for _, caseNo := range []string{"ITA 1/NAG/2023", "ITA 2/NAG/2023"} {
		require.NoError(t, c.Set(GenerateCacheKey(database.StoreStaging, caseNo), detail(caseNo)))
	}
	require.NoError(t, c.Set(GenerateCacheKey(database.StoreMain, "ITA 1/NAG/2023"), detail("ITA 1/NAG/2023")))

	c.Invalidate(database.StoreStaging, "ITA 1/NAG/2023")

	_, found := c.Get(GenerateCacheKey(database.StoreStaging, "ITA 1/NAG/2023"))
	assert.False(t, found)
	_, found = c.Get(GenerateCacheKey(database.StoreStaging, "ITA 2/NAG/2023"))
	assert.True(t, found)
	_, found = c.Get(GenerateCacheKey(database.StoreMain, "ITA 1/NAG/2023"))
	assert.True(t, found)
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	c := NewCache(2, time.Minute)

	for _, caseNo := range []string{"ITA 1/NAG/2023", "ITA 2/NAG/2023", "ITA 3/NAG/2023"} {
		require.NoError(t, c.Set(GenerateCacheKey(database.StoreMain, caseNo), detail(caseNo)))
		time.Sleep(2 * time.Millisecond)
	}

	_, found := c.Get(GenerateCacheKey(database.StoreMain, "ITA 1/NAG/2023"))
	assert.False(t, found)
	_, found = c.Get(GenerateCacheKey(database.StoreMain, "ITA 3/NAG/2023"))
	assert.True(t, found)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestCacheClearResetsStats(t *testing.T) {
	c := NewCache(10, time.Minute)
	key := GenerateCacheKey(database.StoreMain, "MA 4/NAG/2022")
	require.NoError(t, c.Set(key, detail("MA 4/NAG/2022")))
	c.Get(key)

	c.Clear()

	assert.Equal(t, CacheStats{}, c.Stats())
}

func TestCacheRejectsNil(t *testing.T) {
	c := NewCache(10, time.Minute)
	assert.Error(t, c.Set("k", nil))
}
