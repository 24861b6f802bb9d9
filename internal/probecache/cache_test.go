package probecache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipper/internal/logging"
	"clipper/internal/media/ffprobe"
	"clipper/internal/probecache"
)

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":640,"height":360}],"format":{"duration":"12.0"}}`

func openCache(t *testing.T) *probecache.Cache {
	t.Helper()
	cache, err := probecache.Open(filepath.Join(t.TempDir(), "cache", "probe.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func writeMedia(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStoreAndLookup(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()
	media := writeMedia(t, "frames")

	if _, ok, err := cache.Lookup(ctx, media); err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	result, err := ffprobe.Parse([]byte(probeJSON))
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.Store(ctx, media, result); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	got, ok, err := cache.Lookup(ctx, media)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.DurationSeconds() != 12 {
		t.Fatalf("unexpected cached duration %v", got.DurationSeconds())
	}
}

func TestLookupMissesWhenFileChanges(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()
	media := writeMedia(t, "frames")

	result, _ := ffprobe.Parse([]byte(probeJSON))
	if err := cache.Store(ctx, media, result); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(media, []byte("different frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(media, later, later); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cache.Lookup(ctx, media); err != nil || ok {
		t.Fatalf("expected miss after change, got ok=%v err=%v", ok, err)
	}
}

func TestWrapCallsProbeOnce(t *testing.T) {
	cache := openCache(t)
	media := writeMedia(t, "frames")
	calls := 0
	probe := func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		calls++
		return ffprobe.Parse([]byte(probeJSON))
	}
	wrapped := cache.Wrap(probe)
	for i := 0; i < 3; i++ {
		if _, err := wrapped(context.Background(), "ffprobe", media); err != nil {
			t.Fatalf("wrapped probe error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one underlying probe, got %d", calls)
	}
}

func TestWrapPropagatesProbeErrors(t *testing.T) {
	cache := openCache(t)
	media := writeMedia(t, "frames")
	boom := errors.New("boom")
	wrapped := cache.Wrap(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, boom
	})
	if _, err := wrapped(context.Background(), "ffprobe", media); !errors.Is(err, boom) {
		t.Fatalf("expected probe error, got %v", err)
	}
}

func TestNilCacheWrapIsPassthrough(t *testing.T) {
	var cache *probecache.Cache
	called := false
	wrapped := cache.Wrap(func(context.Context, string, string) (ffprobe.Result, error) {
		called = true
		return ffprobe.Result{}, nil
	})
	if _, err := wrapped(context.Background(), "ffprobe", "x"); err != nil || !called {
		t.Fatalf("expected passthrough, called=%v err=%v", called, err)
	}
}

func TestPruneRemovesMissingFiles(t *testing.T) {
	cache := openCache(t)
	ctx := context.Background()
	media := writeMedia(t, "frames")
	result, _ := ffprobe.Parse([]byte(probeJSON))
	if err := cache.Store(ctx, media, result); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(media); err != nil {
		t.Fatal(err)
	}
	removed, err := cache.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", removed)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "probe.db")
	media := writeMedia(t, "frames")
	ctx := context.Background()

	first, err := probecache.Open(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	result, _ := ffprobe.Parse([]byte(probeJSON))
	if err := first.Store(ctx, media, result); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second, err := probecache.Open(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, ok, err := second.Lookup(ctx, media); err != nil || !ok {
		t.Fatalf("expected persisted hit, got ok=%v err=%v", ok, err)
	}
}
