package routine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (g *sequenceIDProvider) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("cache-%d", g.next), nil
}

type fakeGenerator struct {
	response string
	err      error
	calls    int
	// waitForCtx makes the generator block until the context expires.
	waitForCtx bool
}

func (g *fakeGenerator) GenerateRoutine(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.waitForCtx {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func newTestService(t *testing.T, generator Generator, timeout time.Duration) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:routine_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Generator:  generator,
		IDProvider: &sequenceIDProvider{},
		Timeout:    timeout,
		Pick:       func(n int) int { return 0 },
	})
	if err != nil {
		t.Fatalf("failed to construct routine service: %v", err)
	}

	return service, db
}

func TestGetOrGenerateProcessesAndCachesOnMiss(t *testing.T) {
	generator := &fakeGenerator{response: "1. Drink water\n- Stretch\nJournal"}
	service, db := newTestService(t, generator, time.Minute)

	result, err := service.GetOrGenerate(context.Background(), "fitness", "easy", 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generator.calls != 1 {
		t.Fatalf("expected one generator call, got %d", generator.calls)
	}

	expected := []string{"Drink water", "Stretch", "Journal"}
	if len(result.Activities) != len(expected) {
		t.Fatalf("unexpected activities: %v", result.Activities)
	}
	for index, line := range expected {
		if result.Activities[index] != line {
			t.Fatalf("activity %d: got %q, want %q", index, result.Activities[index], line)
		}
	}
	if result.Original != generator.response {
		t.Fatalf("expected raw response carried through, got %q", result.Original)
	}

	var stored CacheEntry
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("failed to load cache entry: %v", err)
	}
	if stored.Key != "fitnesseasy15" {
		t.Fatalf("unexpected cache key %q", stored.Key)
	}
	if len(stored.Activities) != 3 || stored.Activities[0] != "Drink water" {
		t.Fatalf("unexpected cached activities: %v", stored.Activities)
	}
}

func TestGetOrGenerateServesFromCacheWithoutGenerating(t *testing.T) {
	generator := &fakeGenerator{response: "1. Drink water"}
	service, _ := newTestService(t, generator, time.Minute)

	first, err := service.GetOrGenerate(context.Background(), "mind", "medium", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Original == "" {
		t.Fatalf("expected original text on a miss")
	}

	second, err := service.GetOrGenerate(context.Background(), "mind", "medium", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generator.calls != 1 {
		t.Fatalf("expected cache hit to skip the generator, got %d calls", generator.calls)
	}
	if second.Original != "" {
		t.Fatalf("expected empty original on a cache hit, got %q", second.Original)
	}
	if len(second.Activities) != 1 || second.Activities[0] != "Drink water" {
		t.Fatalf("unexpected cached activities: %v", second.Activities)
	}
}

func TestGetOrGenerateSelectsAmongCandidatePool(t *testing.T) {
	generator := &fakeGenerator{response: "unused"}
	service, db := newTestService(t, generator, time.Minute)
	service.pick = func(n int) int { return n - 1 }

	entries := []CacheEntry{
		{ID: "pool-1", Key: "fitnesshard60", Activities: []string{"First"}},
		{ID: "pool-2", Key: "fitnesshard60", Activities: []string{"Second"}},
	}
	if err := db.Create(&entries).Error; err != nil {
		t.Fatalf("failed to seed cache pool: %v", err)
	}

	result, err := service.GetOrGenerate(context.Background(), "fitness", "hard", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generator.calls != 0 {
		t.Fatalf("expected no generator call, got %d", generator.calls)
	}
	if len(result.Activities) != 1 || result.Activities[0] != "Second" {
		t.Fatalf("expected the picked candidate, got %v", result.Activities)
	}
}

func TestGetOrGenerateKeyIsRawConcatenation(t *testing.T) {
	// No delimiter between fields: ambiguous across field boundaries, kept
	// for compatibility with historical entries.
	if key := CacheKey("a1", "", 5); key != "a15" {
		t.Fatalf("unexpected key %q", key)
	}
	if CacheKey("a1", "", 5) != CacheKey("a", "1", 5) {
		t.Fatalf("expected colliding keys to collide")
	}
}

func TestGetOrGenerateFailsOnGeneratorError(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("boom")}
	service, db := newTestService(t, generator, time.Minute)

	_, err := service.GetOrGenerate(context.Background(), "fitness", "easy", 15)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	var count int64
	if err := db.Model(&CacheEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count cache entries: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no cache entry after failure, got %d", count)
	}
}

func TestGetOrGenerateFailsOnUnusableOutput(t *testing.T) {
	generator := &fakeGenerator{response: "\n   \n\t\n"}
	service, _ := newTestService(t, generator, time.Minute)

	_, err := service.GetOrGenerate(context.Background(), "fitness", "easy", 15)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed for blank output, got %v", err)
	}
}

func TestGetOrGenerateTimeoutSurfacesAsUpstreamUnavailable(t *testing.T) {
	generator := &fakeGenerator{waitForCtx: true}
	service, _ := newTestService(t, generator, 10*time.Millisecond)

	_, err := service.GetOrGenerate(context.Background(), "fitness", "easy", 15)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
