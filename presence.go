// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// PresenceMap is the authoritative "who is online" registry.
// It maps a userID to the WsClient that currently represents it.
// Register() replaces any previous binding for the same userID; the
// replaced connection stays open but is orphaned from routing until
// it closes on its own. RemoveClient() is keyed by connection identity,
// not just by userID: the close handler of a stale connection must not
// evict an entry that a newer connection has since taken over.

package main

import (
	"sync"
)

type PresenceMap struct {
	mutex   sync.RWMutex
	clients map[string]*WsClient // userID -> current connection
}

func NewPresenceMap() *PresenceMap {
	return &PresenceMap{
		clients: make(map[string]*WsClient),
	}
}

func (pm *PresenceMap) Register(userID string, client *WsClient) {
	pm.mutex.Lock()
	pm.clients[userID] = client
	pm.mutex.Unlock()
}

func (pm *PresenceMap) Lookup(userID string) *WsClient {
	pm.mutex.RLock()
	client := pm.clients[userID]
	pm.mutex.RUnlock()
	return client
}

// RemoveClient removes the entry for userID only if it still points at
// client. Returns true if the entry was removed.
func (pm *PresenceMap) RemoveClient(userID string, client *WsClient) bool {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	if pm.clients[userID] != client {
		// userID has re-registered on a newer connection
		return false
	}
	delete(pm.clients, userID)
	return true
}

func (pm *PresenceMap) Count() int {
	pm.mutex.RLock()
	count := len(pm.clients)
	pm.mutex.RUnlock()
	return count
}
