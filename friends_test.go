// Zvonki Copyright 2026 zvonki.app. All rights reserved.
package main

import "testing"

func containsID(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestFriendGraphAddMutual(t *testing.T) {
	fg := NewFriendGraph()
	if err := fg.AddMutual("a", "b"); err != nil {
		t.Fatalf("AddMutual(a,b) err=%v", err)
	}
	if !containsID(fg.Neighbors("a"), "b") {
		t.Errorf("Neighbors(a) does not contain b")
	}
	if !containsID(fg.Neighbors("b"), "a") {
		t.Errorf("Neighbors(b) does not contain a")
	}
}

func TestFriendGraphAddIsIdempotent(t *testing.T) {
	fg := NewFriendGraph()
	fg.AddMutual("a", "b")
	fg.AddMutual("a", "b")
	fg.AddMutual("b", "a")
	if got := len(fg.Neighbors("a")); got != 1 {
		t.Errorf("Neighbors(a) len = %d, want 1", got)
	}
	if got := len(fg.Neighbors("b")); got != 1 {
		t.Errorf("Neighbors(b) len = %d, want 1", got)
	}
}

func TestFriendGraphSelfAdd(t *testing.T) {
	fg := NewFriendGraph()
	if err := fg.AddMutual("a", "a"); err != ErrInvalidOperation {
		t.Fatalf("AddMutual(a,a) err=%v, want ErrInvalidOperation", err)
	}
	if got := len(fg.Neighbors("a")); got != 0 {
		t.Errorf("Neighbors(a) len = %d after rejected self-add, want 0", got)
	}
}

func TestFriendGraphUnknownUser(t *testing.T) {
	fg := NewFriendGraph()
	if got := fg.Neighbors("ghost"); len(got) != 0 {
		t.Errorf("Neighbors(ghost) = %v, want empty", got)
	}
}
