package oauth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleTokens() *Tokens {
	return &Tokens{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		TokenType:    "Bearer",
		Scope:        "listings_r",
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "shop-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store = %v, want ErrNotFound", err)
	}

	want := sampleTokens()
	if err := store.Put(ctx, "shop-1", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "shop-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// The store holds its own copy; mutating the returned value must not
	// leak back in.
	got.AccessToken = "tampered"
	again, _ := store.Get(ctx, "shop-1")
	if again.AccessToken != "at" {
		t.Error("stored credential aliased the returned value")
	}

	if err := store.Delete(ctx, "shop-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "shop-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "shop-1"); err != nil {
		t.Errorf("Delete on missing owner: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	want := sampleTokens()
	if err := store.Put(ctx, "shop-1", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "shop-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != want.AccessToken || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := store.Delete(ctx, "shop-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "shop-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestFileStoreMissingOwner(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := store.Get(context.Background(), "never-stored"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
	if err := store.Delete(context.Background(), "never-stored"); err != nil {
		t.Errorf("Delete on missing owner: %v", err)
	}
}

func TestFileStorePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "shop-1", sampleTokens()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("dir mode = %o, want 700", perm)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir = %v entries, err %v", len(entries), err)
	}
	finfo, err := entries[0].Info()
	if err != nil {
		t.Fatalf("file info: %v", err)
	}
	if perm := finfo.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFileStoreOwnerWithPathCharacters(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	// Owner identifiers must not be able to escape the base directory.
	owner := "../evil/owner"
	if err := store.Put(ctx, owner, sampleTokens()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, owner)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != "at" {
		t.Errorf("AccessToken = %q", got.AccessToken)
	}
}

func TestTokensExpiresWithin(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		tokens Tokens
		want   bool
	}{
		{"zero expiry", Tokens{}, true},
		{"already expired", Tokens{ExpiresAt: now.Add(-time.Minute)}, true},
		{"inside buffer", Tokens{ExpiresAt: now.Add(2 * time.Minute)}, true},
		{"outside buffer", Tokens{ExpiresAt: now.Add(time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tokens.ExpiresWithin(now, 5*time.Minute); got != tt.want {
				t.Errorf("ExpiresWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}
