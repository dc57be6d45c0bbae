package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: DATABASE_DSN not set")
	}

	// Migrations resolve relative to the module root.
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origWD); err != nil {
			t.Errorf("restore wd: %v", err)
		}
	})

	repo, err := NewPostgresRepository(dsn)
	if err != nil {
		t.Skipf("Skipping integration test: PostgreSQL not available (%v)", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// saveURL inserts a record and removes it when the test finishes; the cascade
// takes its daily_clicks rows with it.
func saveURL(t *testing.T, repo *PostgresRepository, alias, originalURL string) {
	t.Helper()

	require.NoError(t, repo.SaveURL(context.Background(), alias, originalURL))

	t.Cleanup(func() {
		repo.pool.Exec(context.Background(), "DELETE FROM urls WHERE alias = $1", alias) //nolint:errcheck
	})
}

func TestSaveURLClassifiesUniqueViolations(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	alias := fmt.Sprintf("it%d", suffix)
	originalURL := fmt.Sprintf("https://example.com/classify/%d", suffix)

	saveURL(t, repo, alias, originalURL)

	err := repo.SaveURL(ctx, alias, originalURL+"/other")
	assert.ErrorIs(t, err, ErrAliasTaken, "same alias must report an alias collision")

	err = repo.SaveURL(ctx, alias+"x", originalURL)
	assert.ErrorIs(t, err, ErrURLTaken, "same url must report a url collision")
}

func TestLookupRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	alias := fmt.Sprintf("rt%d", suffix)
	originalURL := fmt.Sprintf("https://example.com/roundtrip/%d", suffix)

	saveURL(t, repo, alias, originalURL)

	gotURL, err := repo.GetOriginalURL(ctx, alias)
	require.NoError(t, err)
	assert.Equal(t, originalURL, gotURL)

	gotAlias, err := repo.GetAliasByURL(ctx, originalURL)
	require.NoError(t, err)
	assert.Equal(t, alias, gotAlias)

	exists, err := repo.AliasExists(ctx, alias)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.GetOriginalURL(ctx, alias+"missing")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err = repo.AliasExists(ctx, alias+"missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecordClickUpsert(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	alias := fmt.Sprintf("up%d", suffix)

	saveURL(t, repo, alias, fmt.Sprintf("https://example.com/upsert/%d", suffix))

	today := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordClick(ctx, alias, today))
	}

	total, err := repo.TotalClicks(ctx, alias)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	counts, err := repo.DailyClicks(ctx, alias, today.AddDate(0, 0, -6), today)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[today.Format("2006-01-02")],
		"all clicks must land on today's row")
}

func TestRecordClickConcurrent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	alias := fmt.Sprintf("cc%d", suffix)

	saveURL(t, repo, alias, fmt.Sprintf("https://example.com/clicks/%d", suffix))

	const n = 50

	today := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.RecordClick(ctx, alias, today); err != nil {
				t.Errorf("RecordClick failed: %v", err)
			}
		}()
	}
	wg.Wait()

	total, err := repo.TotalClicks(ctx, alias)
	require.NoError(t, err)
	assert.Equal(t, int64(n), total, "no click may be lost under concurrency")
}

func TestSaveURLConcurrentSameURL(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	originalURL := fmt.Sprintf("https://example.com/race/%d", suffix)

	t.Cleanup(func() {
		repo.pool.Exec(context.Background(), "DELETE FROM urls WHERE original_url = $1", originalURL) //nolint:errcheck
	})

	const n = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		taken    int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			err := repo.SaveURL(ctx, fmt.Sprintf("rc%d-%d", suffix, i), originalURL)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, ErrURLTaken):
				taken++
			default:
				t.Errorf("SaveURL failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, inserted, "exactly one insert of a contended url may win")
	assert.Equal(t, n-1, taken, "every loser must see the url-taken classification")
}
