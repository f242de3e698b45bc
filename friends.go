// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// FriendGraph holds the mutual contact graph. Edges are created only by
// an explicit mutual add (referral link accepted); there is no delete.
// The graph only feeds the contacts list; the signaling router does NOT
// consult it before relaying.

package main

import (
	"errors"
	"sync"
)

var ErrInvalidOperation = errors.New("invalid operation")

type FriendGraph struct {
	mutex sync.RWMutex
	edges map[string]map[string]struct{} // userID -> set of friend userIDs
}

func NewFriendGraph() *FriendGraph {
	return &FriendGraph{
		edges: make(map[string]map[string]struct{}),
	}
}

// AddMutual inserts the edge a<->b in both directions. Adding an
// existing edge is a no-op. a==b is rejected.
func (fg *FriendGraph) AddMutual(a string, b string) error {
	if a == b {
		return ErrInvalidOperation
	}
	fg.mutex.Lock()
	fg.addOneWay(a, b)
	fg.addOneWay(b, a)
	fg.mutex.Unlock()
	return nil
}

// caller must hold fg.mutex
func (fg *FriendGraph) addOneWay(from string, to string) {
	set, ok := fg.edges[from]
	if !ok {
		set = make(map[string]struct{})
		fg.edges[from] = set
	}
	set[to] = struct{}{}
}

// Neighbors returns the friends of userID; empty for an unknown user.
func (fg *FriendGraph) Neighbors(userID string) []string {
	fg.mutex.RLock()
	set := fg.edges[userID]
	friends := make([]string, 0, len(set))
	for friendID := range set {
		friends = append(friends, friendID)
	}
	fg.mutex.RUnlock()
	return friends
}
