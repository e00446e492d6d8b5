package redisx

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestParseURL(t *testing.T) {
	opts, err := ParseURL("redis://user:pw@localhost:6380/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "pw" || opts.Username != "user" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.TLSConfig != nil {
		t.Fatalf("plain redis must not enable tls")
	}

	tlsOpts, err := ParseURL("rediss://cache.example.com:6379")
	if err != nil || tlsOpts.TLSConfig == nil || tlsOpts.TLSConfig.ServerName != "cache.example.com" {
		t.Fatalf("rediss must enable tls: %+v %v", tlsOpts, err)
	}

	for _, bad := range []string{"http://localhost", "redis://localhost/abc"} {
		if _, err := ParseURL(bad); err == nil {
			t.Fatalf("%s: expected error", bad)
		}
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()
	if err := rdb.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := Connect(context.Background(), ""); err == nil {
		t.Fatalf("empty url must fail")
	}
}
