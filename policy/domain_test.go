package policy

import (
	"context"
	"testing"
)

func TestDefaultDomain(t *testing.T) {
	cases := []struct {
		user     string
		domain   string
		expected string
	}{
		{"alice", "example.com", "alice@example.com"},
		{"carol", "asl.wustl.edu", "carol@asl.wustl.edu"},
		// Already an address: untouched.
		{"bob@other.org", "example.com", "bob@other.org"},
		// Appending would still not form a valid address: untouched.
		{";", "example.com", ";"},
		{"two words", "example.com", "two words"},
		{"", "example.com", ""},
	}
	for i, c := range cases {
		s, err := NewDefaultDomain(c.domain)
		if err != nil {
			t.Fatal(err)
		}
		f := &fakeVerifier{script: []verdict{{true, nil}}}
		p, err := NewPipeline(f, s)
		if err != nil {
			t.Fatal(err)
		}
		if result, err := p.Verify(context.Background(), c.user, "pw"); err != nil || !result {
			t.Errorf("%d: expected allow, got %t, %v", i, result, err)
		}
		if users := f.seenUsers(); len(users) != 1 || users[0] != c.expected {
			t.Errorf("%d: expected verifier to see %q, got %v", i, c.expected, users)
		}
	}
}

func TestNewDefaultDomain(t *testing.T) {
	if _, err := NewDefaultDomain(""); err == nil {
		t.Error("expected an error for an empty domain")
	}
}

func TestRequireDomain(t *testing.T) {
	cases := []struct {
		domains []string
		user    string
		allowed bool
	}{
		{[]string{"example.com"}, "bob@example.com", true},
		{[]string{"example.com"}, "bob@other.com", false},
		{[]string{"example.com"}, "not-an-email", false},
		{[]string{"example.com"}, "BOB@EXAMPLE.COM", true},
		{[]string{"EXAMPLE.COM"}, "bob@example.com", true},
		{[]string{"example.com", "example.org"}, "bob@example.org", true},
		{[]string{"example.com", "example.org"}, "bob@example.net", false},
		{[]string{"sub.example.com"}, "bob@example.com", false},
	}
	for i, c := range cases {
		s, err := NewRequireDomain(c.domains...)
		if err != nil {
			t.Fatal(err)
		}
		f := &fakeVerifier{script: []verdict{{true, nil}}}
		p, err := NewPipeline(f, s)
		if err != nil {
			t.Fatal(err)
		}
		result, err := p.Verify(context.Background(), c.user, "pw")
		if err != nil {
			t.Errorf("%d: unexpected error: %v", i, err)
			continue
		}
		if result != c.allowed {
			t.Errorf("%d: %s: expected %t, got %t", i, c.user, c.allowed, result)
		}
		expectedCalls := 0
		if c.allowed {
			expectedCalls = 1
		}
		if f.callCount() != expectedCalls {
			t.Errorf("%d: %s: expected %d verifier calls, got %d", i, c.user, expectedCalls, f.callCount())
		}
	}
}

func TestNewRequireDomain(t *testing.T) {
	if _, err := NewRequireDomain(); err == nil {
		t.Error("expected an error for no domains")
	}
	if _, err := NewRequireDomain("example.com", ""); err == nil {
		t.Error("expected an error for an empty domain")
	}
}

func TestRequireValidEmail(t *testing.T) {
	cases := []struct {
		user    string
		allowed bool
	}{
		{"carol@example.org", true},
		{"carol", false},
		{"", false},
		{"carol@nodot", false},
	}
	s := NewRequireValidEmail()
	for i, c := range cases {
		f := &fakeVerifier{script: []verdict{{true, nil}}}
		p, err := NewPipeline(f, s)
		if err != nil {
			t.Fatal(err)
		}
		result, err := p.Verify(context.Background(), c.user, "pw")
		if err != nil {
			t.Errorf("%d: unexpected error: %v", i, err)
			continue
		}
		if result != c.allowed {
			t.Errorf("%d: %s: expected %t, got %t", i, c.user, c.allowed, result)
		}
		if !c.allowed && f.callCount() != 0 {
			t.Errorf("%d: %s: verifier called %d times for an invalid name", i, c.user, f.callCount())
		}
	}
}
