package executor

import (
	"testing"
	"time"
)

func TestTicketTableDedupe(t *testing.T) {
	now := time.Now()
	tab := newTicketTable(5 * time.Second)
	tab.now = func() time.Time { return now }

	if !tab.Begin("click") {
		t.Fatal("first Begin rejected")
	}
	if tab.Begin("click") {
		t.Error("duplicate inside window accepted")
	}
	if !tab.Begin("swipe") {
		t.Error("different key rejected")
	}

	// 2 seconds later the ticket is still live.
	now = now.Add(2 * time.Second)
	if tab.Begin("click") {
		t.Error("duplicate at 2s accepted, window is 5s")
	}

	// Past the window the ticket has expired.
	now = now.Add(3 * time.Second)
	if !tab.Begin("click") {
		t.Error("Begin after window expiry rejected")
	}
}

func TestTicketTableReset(t *testing.T) {
	tab := newTicketTable(5 * time.Second)

	tab.Begin("click")
	tab.Begin("swipe")
	if tab.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tab.Len())
	}

	tab.Reset()
	if tab.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", tab.Len())
	}
	if !tab.Begin("click") {
		t.Error("Begin after Reset rejected")
	}
}

func TestTicketTablePrunesExpired(t *testing.T) {
	now := time.Now()
	tab := newTicketTable(time.Second)
	tab.now = func() time.Time { return now }

	tab.Begin("click")
	tab.Begin("swipe")

	now = now.Add(2 * time.Second)
	tab.Begin("scroll")
	if tab.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after pruning", tab.Len())
	}
}
