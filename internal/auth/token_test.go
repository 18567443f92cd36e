package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := IssueSessionToken(testSecret, "usr_1", "Ana", "student", "jti_1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseSessionToken(testSecret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "usr_1" || claims.Name != "Ana" || claims.Role != "student" || claims.ID != "jti_1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := IssueSessionToken(testSecret, "usr_1", "Ana", "student", "jti_1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseSessionToken(testSecret, token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("want ErrExpiredToken, got %v", err)
	}
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := IssueSessionToken(testSecret, "usr_1", "Ana", "student", "jti_1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseSessionToken([]byte("other-secret"), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestInviteTokenRoundTrip(t *testing.T) {
	in := InviteClaims{
		DocumentID:    "doc_1",
		InvitedUserID: "usr_2",
		Role:          "editor",
		InvitedBy:     "usr_1",
	}
	token, err := IssueInviteToken(testSecret, in, time.Now().Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	out, err := ParseInviteToken(testSecret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.DocumentID != "doc_1" || out.InvitedUserID != "usr_2" || out.Role != "editor" || out.InvitedBy != "usr_1" {
		t.Fatalf("unexpected claims: %+v", out)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	session, err := IssueSessionToken(testSecret, "usr_1", "Ana", "student", "jti_1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	invite, err := IssueInviteToken(testSecret, InviteClaims{
		DocumentID:    "doc_1",
		InvitedUserID: "usr_2",
		Role:          "viewer",
		InvitedBy:     "usr_1",
	}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue invite: %v", err)
	}
	if _, err := ParseInviteToken(testSecret, session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("session token accepted as invite: %v", err)
	}
	if _, err := ParseSessionToken(testSecret, invite); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("invite token accepted as session: %v", err)
	}
}

func TestParseGarbage(t *testing.T) {
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := ParseSessionToken(testSecret, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: want ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestHashTokenIsStableAndDistinct(t *testing.T) {
	a := HashToken("refresh-one")
	b := HashToken("refresh-one")
	c := HashToken("refresh-two")
	if a != b {
		t.Fatal("same input hashed to different values")
	}
	if a == c {
		t.Fatal("different inputs hashed to same value")
	}
	if len(a) != 64 {
		t.Fatalf("want 64 hex chars, got %d", len(a))
	}
}
