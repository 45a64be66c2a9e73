package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	_ = store.GetOrCreate("alice")
	if !mr.Exists("trivia:session:alice") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("trivia:session:alice"); ttl != time.Minute {
		t.Fatalf("expected ttl of a minute, got %v", ttl)
	}

	store.Delete("alice")
	if mr.Exists("trivia:session:alice") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("alice"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreLivenessExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	store.GetOrCreate("alice")
	store.GetOrCreate("bob")

	mr.FastForward(30 * time.Second)
	_, _ = store.Get("alice") // refreshes alice only
	mr.FastForward(45 * time.Second)

	active, err := store.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	sort.Strings(active)
	if len(active) != 1 || active[0] != "alice" {
		t.Fatalf("expected only alice live, got %v", active)
	}
}
