package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "fileshare",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParseHS256(t *testing.T) {
	m := newHSManager(t)

	tok, err := m.Issue("sid-1", 4242)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SID != "sid-1" || claims.Code != 4242 || claims.Issuer != "fileshare" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestIssueAndParseEd25519(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Issue("sid-ed", 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(tok); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	m := newHSManager(t)
	tok, err := m.Issue("sid-1", 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(tok, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := m.Parse(strings.Join(parts, ".")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bad signature, got %v", err)
	}
	if _, err := m.Parse("not-a-token"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}

func TestParseRejectsOtherKey(t *testing.T) {
	m := newHSManager(t)
	other, err := NewManager(Config{
		TTL:           time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "fileshare",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := other.Issue("sid-1", 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newHSManager(t)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.Issue("sid-1", 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for expired token, got %v", err)
	}
}

func TestParseRejectsAlgorithmSwitch(t *testing.T) {
	m := newHSManager(t)
	claims := OwnerClaims{
		SID:  "sid-1",
		Code: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sid-1",
			Issuer:    "fileshare",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for alg=none, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{TTL: 0, SigningMethod: MethodHS256, PrivateKey: testSecret},
		{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{TTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: []byte("bad")},
		{TTL: time.Hour, SigningMethod: "rs256", PrivateKey: testSecret},
		{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestIssueRejectsEmptyBinding(t *testing.T) {
	m := newHSManager(t)
	if _, err := m.Issue("", 1); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty sid, got %v", err)
	}
	if _, err := m.Issue("sid", 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for zero code, got %v", err)
	}
}
