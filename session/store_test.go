package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "hs"), mr
}

func testSession(id, credentialID string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CredentialID: credentialID,
		TokenPrefix:  "c2lnbmF0dXJlcHJl",
		DeviceInfo:   "Firefox on Linux",
		IPAddress:    "10.1.2.3",
		Active:       true,
		CreatedAt:    now.Unix(),
		LastActiveAt: now.Unix(),
		ExpiresAt:    now.Add(time.Hour).Unix(),
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	sess := testSession("sess-1", "cred-1", now)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CredentialID != "cred-1" || got.TokenPrefix != sess.TokenPrefix {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.DeviceInfo != sess.DeviceInfo || got.IPAddress != sess.IPAddress {
		t.Fatalf("unexpected session metadata: %+v", got)
	}
	if !got.Active {
		t.Fatal("expected session to be active")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-session")
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestStoreGetStoredExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	sess := testSession("sess-1", "cred-1", now)
	sess.ExpiresAt = now.Add(-time.Minute).Unix()
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for stored expiry, got %v", err)
	}
	if mr.Exists("hs:sess-1") {
		t.Fatal("expected expired session key to be deleted")
	}
	if mr.Exists("hsidx:cred-1") {
		t.Fatal("expected index entry to be removed")
	}
}

func TestStoreTouchUpdatesLastActive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, testSession("sess-1", "cred-1", now), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	later := now.Add(10 * time.Minute)
	if err := store.Touch(ctx, "sess-1", later); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastActiveAt != later.Unix() {
		t.Fatalf("expected LastActiveAt %d, got %d", later.Unix(), got.LastActiveAt)
	}
}

func TestStoreTouchDoesNotResurrectRevoked(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, testSession("sess-1", "cred-1", now), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Revoke(ctx, "sess-1", now); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if err := store.Touch(ctx, "sess-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("Touch of revoked session should be a no-op, got %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Active {
		t.Fatal("expected session to stay revoked")
	}
	if got.LastActiveAt != now.Unix() {
		t.Fatal("expected LastActiveAt unchanged on revoked session")
	}
}

func TestStoreRevokeLeavesTombstone(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, testSession("sess-1", "cred-1", now), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Revoke(ctx, "sess-1", now); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	// The blob survives as a tombstone so token validation keeps failing.
	if !mr.Exists("hs:sess-1") {
		t.Fatal("expected revoked session key to remain")
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Active {
		t.Fatal("expected session to be inactive")
	}
	if got.RevokedAt != now.Unix() {
		t.Fatalf("expected RevokedAt %d, got %d", now.Unix(), got.RevokedAt)
	}

	active, err := store.ListActive(ctx, "cred-1")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(active))
	}
}

func TestStoreRevokeIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, testSession("sess-1", "cred-1", now), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Revoke(ctx, "sess-1", now); err != nil {
		t.Fatalf("first Revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, "sess-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RevokedAt != now.Unix() {
		t.Fatal("expected RevokedAt from the first revocation to stick")
	}
}

func TestStoreRevokeAllExcept(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		if err := store.Save(ctx, testSession(id, "cred-1", now), time.Hour); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}

	revoked, err := store.RevokeAllExcept(ctx, "cred-1", "sess-2", now)
	if err != nil {
		t.Fatalf("RevokeAllExcept failed: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("expected 2 revocations, got %d", revoked)
	}

	active, err := store.ListActive(ctx, "cred-1")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "sess-2" {
		t.Fatalf("expected only sess-2 to survive, got %+v", active)
	}
}

func TestStoreListActiveSkipsVanishedEntries(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, testSession("sess-1", "cred-1", now), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, testSession("sess-2", "cred-1", now), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Simulate natural key expiry with a stale index entry left behind.
	mr.Del("hs:sess-1")

	active, err := store.ListActive(ctx, "cred-1")
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "sess-2" {
		t.Fatalf("expected only sess-2, got %+v", active)
	}
}

func TestStoreDelete(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, testSession("sess-1", "cred-1", now), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if mr.Exists("hs:sess-1") {
		t.Fatal("expected session key to be deleted")
	}
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}

	count, err := store.ActiveCount(ctx, "cred-1")
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty index, got %d", count)
	}

	// Deleting a missing session is not an error.
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("repeat Delete failed: %v", err)
	}
}

func TestStoreActiveCount(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"sess-1", "sess-2"} {
		if err := store.Save(ctx, testSession(id, "cred-1", now), time.Hour); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}

	count, err := store.ActiveCount(ctx, "cred-1")
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now()
	sess := testSession("sess-1", "cred-1", now)
	sess.Active = false
	sess.RevokedAt = now.Add(30 * time.Minute).Unix()

	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got.ID = sess.ID

	if *got != *sess {
		t.Fatalf("round trip mismatch: %+v != %+v", got, sess)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := Encode(testSession("sess-1", "cred-1", time.Now()))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data[0] = 99

	if _, err := Decode(data); err == nil {
		t.Fatal("expected unknown version to be rejected")
	}
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	data, err := Encode(testSession("sess-1", "cred-1", time.Now()))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := Decode(data[:len(data)/2]); err == nil {
		t.Fatal("expected truncated blob to be rejected")
	}
}
