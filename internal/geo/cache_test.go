package geo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dokzlo13/duskd/internal/db"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "duskd.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewCache(database.DB)
}

func TestCacheRoundtrip(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()

	if _, found := cache.Get(ctx, "berlin"); found {
		t.Fatal("Get() on empty cache reported a hit")
	}

	want := &Location{Name: "Berlin, Deutschland", Latitude: 52.52, Longitude: 13.40}
	if err := cache.Put(ctx, "berlin", want); err != nil {
		t.Fatalf("Put() = %v", err)
	}

	got, found := cache.Get(ctx, "berlin")
	if !found {
		t.Fatal("Get() after Put() reported a miss")
	}
	if got.Name != want.Name || got.Latitude != want.Latitude || got.Longitude != want.Longitude {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestCacheOverwrite(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()

	cache.Put(ctx, "city", &Location{Name: "First", Latitude: 1, Longitude: 1})
	cache.Put(ctx, "city", &Location{Name: "Second", Latitude: 2, Longitude: 2})

	got, found := cache.Get(ctx, "city")
	if !found || got.Name != "Second" || got.Latitude != 2 {
		t.Errorf("Get() = %+v/%v, want the second write", got, found)
	}
}
