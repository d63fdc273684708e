package authn

import "testing"

func TestNewLDAP(t *testing.T) {
	if _, err := NewLDAP(&LDAPConfig{}); err == nil {
		t.Error("expected an error for a missing host")
	}
	c := &LDAPConfig{Host: "ldap.example.com"}
	if _, err := NewLDAP(c); err != nil {
		t.Fatal(err)
	}
	if c.Port != 389 {
		t.Errorf("expected default port 389, got %d", c.Port)
	}
	c = &LDAPConfig{Host: "ldap.example.com", TLS: true}
	if _, err := NewLDAP(c); err != nil {
		t.Fatal(err)
	}
	if c.Port != 636 {
		t.Errorf("expected default TLS port 636, got %d", c.Port)
	}
}
