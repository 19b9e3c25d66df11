// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package service

import (
	"testing"
	"time"
)

func TestSessionServiceLifecycle(t *testing.T) {
	svc := NewSessionService(time.Hour)

	id := svc.CreateSession("user@example.com")
	if id == "" {
		t.Fatal("Expected non-empty session ID")
	}

	if !svc.ValidateSession(id) {
		t.Error("Expected session to be valid")
	}

	session := svc.GetSession(id)
	if session == nil || session.Email != "user@example.com" {
		t.Errorf("Unexpected session: %+v", session)
	}

	svc.DeleteSession(id)
	if svc.ValidateSession(id) {
		t.Error("Expected session to be invalid after deletion")
	}
}

func TestSessionServiceExpiry(t *testing.T) {
	svc := NewSessionService(-time.Minute)

	id := svc.CreateSession("user@example.com")
	if svc.ValidateSession(id) {
		t.Error("Expected expired session to be invalid")
	}
}

func TestSessionServiceUnknownID(t *testing.T) {
	svc := NewSessionService(time.Hour)

	if svc.ValidateSession("no-such-session") {
		t.Error("Expected unknown session ID to be invalid")
	}
}
