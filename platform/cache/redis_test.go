package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), false)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := mr.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}

func TestNewRedisClientRequiresURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "", false); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestHealthAdapterReportsOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), false)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	health := NewHealthAdapter(client)
	if err := health.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}

	mr.Close()
	if err := health.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail after shutdown")
	}
}
