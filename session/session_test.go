package session

import (
	"fmt"
	"strings"
	"testing"
)

func TestHistoryUnknownSessionIsEmpty(t *testing.T) {
	m := NewManager(2)

	if turns := m.History("never-seen"); len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}
}

func TestAddExchangeOrdersTurns(t *testing.T) {
	m := NewManager(2)
	m.AddExchange("s1", "What is a vector?", "A quantity with magnitude and direction.")

	turns := m.History("s1")
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "What is a vector?" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestExchangeCapEvictsOldestFirst(t *testing.T) {
	m := NewManager(2)
	for i := 1; i <= 3; i++ {
		m.AddExchange("s1", fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	turns := m.History("s1")
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns after cap, got %d", len(turns))
	}
	if turns[0].Content != "question 2" || turns[3].Content != "answer 3" {
		t.Fatalf("expected the two most recent exchanges, got %+v", turns)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewManager(2)
	m.AddExchange("a", "first question", "first answer")
	m.AddExchange("b", "other question", "other answer")

	if turns := m.History("a"); len(turns) != 2 || turns[0].Content != "first question" {
		t.Fatalf("session a polluted: %+v", turns)
	}
	if turns := m.History("b"); len(turns) != 2 || turns[0].Content != "other question" {
		t.Fatalf("session b polluted: %+v", turns)
	}
}

func TestHistoryReturnsACopy(t *testing.T) {
	m := NewManager(2)
	m.AddExchange("s1", "question", "answer")

	turns := m.History("s1")
	turns[0].Content = "mutated"

	if fresh := m.History("s1"); fresh[0].Content != "question" {
		t.Fatalf("caller mutation leaked into stored history: %+v", fresh)
	}
}

func TestNewSessionIDIsUnique(t *testing.T) {
	m := NewManager(2)

	a, b := m.NewSessionID(), m.NewSessionID()
	if a == b {
		t.Fatalf("expected distinct session ids, got %q twice", a)
	}
	if !strings.HasPrefix(a, "session_") {
		t.Fatalf("unexpected session id format: %q", a)
	}
}
