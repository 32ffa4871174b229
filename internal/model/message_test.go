package model

import (
	"testing"
	"time"
)

func TestIsReadForBothNeedsAdminAndHR(t *testing.T) {
	m := &Message{Recipient: RecipientBoth}
	now := time.Now()

	m.AddReceipt("a1", RoleAdmin, now)
	m.AddReceipt("a2", RoleAdmin, now)
	if m.IsRead {
		t.Fatal("two admin reads must not mark a 'both' message read")
	}

	m.AddReceipt("h1", RoleHR, now)
	if !m.IsRead {
		t.Fatal("expected read after admin and hr receipts")
	}
}

func TestIsReadForSingleRole(t *testing.T) {
	m := &Message{Recipient: RecipientHR}
	m.AddReceipt("a1", RoleAdmin, time.Now())
	if m.IsRead {
		t.Fatal("admin receipt must not mark an hr message read")
	}
	m.AddReceipt("h1", RoleHR, time.Now())
	if !m.IsRead {
		t.Fatal("expected read after first hr receipt")
	}
}

func TestAddReceiptIsIdempotentPerActor(t *testing.T) {
	m := &Message{Recipient: RecipientAdmin}
	if !m.AddReceipt("a1", RoleAdmin, time.Now()) {
		t.Fatal("first receipt should be added")
	}
	if m.AddReceipt("a1", RoleAdmin, time.Now()) {
		t.Fatal("duplicate receipt should be ignored")
	}
	if len(m.ReadBy) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(m.ReadBy))
	}
}

func TestVisibleTo(t *testing.T) {
	cases := []struct {
		recipient MessageRecipient
		role      string
		want      bool
	}{
		{RecipientBoth, RoleAdmin, true},
		{RecipientBoth, RoleHR, true},
		{RecipientHR, RoleHR, true},
		{RecipientHR, RoleAdmin, false},
		{RecipientAdmin, RoleHR, false},
	}
	for _, c := range cases {
		m := &Message{Recipient: c.recipient}
		if got := m.VisibleTo(c.role); got != c.want {
			t.Errorf("VisibleTo(%s) on %s = %v, want %v", c.role, c.recipient, got, c.want)
		}
	}
}
