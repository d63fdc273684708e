package policy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ekarulf/authchain/api"
)

func TestPipelineCachedRestriction(t *testing.T) {
	var calls int64
	v := api.VerifierFunc(func(ctx context.Context, user string, password api.PasswordString) (bool, error) {
		atomic.AddInt64(&calls, 1)
		return user == "carol@asl.wustl.edu" && password == "secret", nil
	})
	cache, err := NewCache(CacheConfig{TTL: 15 * time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	restrict, err := NewRequireDomain("asl.wustl.edu")
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline(v, cache, restrict)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if result, err := p.Verify(ctx, "carol@asl.wustl.edu", "secret"); err != nil || !result {
		t.Fatalf("expected allow, got %t, %v", result, err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected 1 verifier call, got %d", got)
	}
	// Out-of-domain users are refused before any verifier work.
	if result, err := p.Verify(ctx, "carol@other.org", "secret"); err != nil || result {
		t.Fatalf("expected deny, got %t, %v", result, err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("the restrictor leaked a call to the verifier, got %d", got)
	}
	// Repeats of both verdicts replay from the cache.
	if result, _ := p.Verify(ctx, "carol@asl.wustl.edu", "secret"); !result {
		t.Error("expected the cached allow")
	}
	if result, _ := p.Verify(ctx, "carol@other.org", "secret"); result {
		t.Error("expected the cached deny")
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected 1 verifier call in total, got %d", got)
	}
}

func TestPipelineNameCompletion(t *testing.T) {
	f := &fakeVerifier{script: []verdict{{true, nil}}}
	dd, err := NewDefaultDomain("asl.wustl.edu")
	if err != nil {
		t.Fatal(err)
	}
	cache, err := NewCache(CacheConfig{TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline(f, dd, NewRequireValidEmail(), cache)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if result, err := p.Verify(ctx, "carol", "secret"); err != nil || !result {
		t.Fatalf("expected allow, got %t, %v", result, err)
	}
	if users := f.seenUsers(); len(users) != 1 || users[0] != "carol@asl.wustl.edu" {
		t.Errorf("expected the verifier to see the completed name, got %v", users)
	}
	// The cache keys on the completed name, so the short form hits too.
	p.Verify(ctx, "carol", "secret")
	if f.callCount() != 1 {
		t.Errorf("expected the repeat to come from the cache, got %d calls", f.callCount())
	}
	// Names that are still invalid after completion never reach the verifier.
	if result, err := p.Verify(ctx, ";", "secret"); err != nil || result {
		t.Fatalf("expected deny, got %t, %v", result, err)
	}
	if f.callCount() != 1 {
		t.Errorf("expected an invalid name to be cut off, got %d calls", f.callCount())
	}
}

func TestPipelineUnknownUserCachedAndCounted(t *testing.T) {
	var calls int64
	v := api.VerifierFunc(func(ctx context.Context, user string, password api.PasswordString) (bool, error) {
		atomic.AddInt64(&calls, 1)
		return false, api.NoMatch
	})
	cache, err := NewCache(CacheConfig{TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	lf, err := NewLimitFailures(LimitConfig{MaxFailures: 3, Window: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline(v, cache, lf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// An unknown user is a verified deny: Basic Auth resends of the same
	// credential replay from the cache instead of re-hitting the backend.
	for i := 0; i < 5; i++ {
		result, err := p.Verify(ctx, "mallory@example.org", "pw")
		if err != nil || result {
			t.Fatalf("call %d: expected deny, got %t, %v", i, result, err)
		}
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected the unknown-user deny to be cached, got %d verifier calls", got)
	}
	if got := failureCount(lf, "mallory@example.org"); got != 1 {
		t.Errorf("expected the unknown-user deny to be recorded, got %d failures", got)
	}
}

func TestPipelineDefaultOrder(t *testing.T) {
	f := &fakeVerifier{script: []verdict{{false, nil}}}
	dd, err := NewDefaultDomain("example.com")
	if err != nil {
		t.Fatal(err)
	}
	rd, err := NewRequireDomain("example.com")
	if err != nil {
		t.Fatal(err)
	}
	cache, err := NewCache(CacheConfig{TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	lf, err := NewLimitFailures(LimitConfig{MaxFailures: 2, Window: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline(f, dd, NewRequireValidEmail(), rd, cache, lf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	p.Verify(ctx, "bob", "wrong")
	// The replayed credential comes from the cache and does not advance the count.
	p.Verify(ctx, "bob", "wrong")
	if f.callCount() != 1 {
		t.Fatalf("expected 1 verifier call, got %d", f.callCount())
	}
	if got := failureCount(lf, "bob@example.com"); got != 1 {
		t.Fatalf("expected 1 recorded failure under the completed name, got %d", got)
	}

	p.Verify(ctx, "bob", "also wrong")
	if f.callCount() != 2 {
		t.Fatalf("expected 2 verifier calls, got %d", f.callCount())
	}
	// Two distinct failures exhaust the allowance; the third is cut off.
	p.Verify(ctx, "bob", "third wrong")
	if f.callCount() != 2 {
		t.Errorf("expected the limiter to stop the call, got %d verifier calls", f.callCount())
	}
}
