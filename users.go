// Zvonki Copyright 2026 zvonki.app. All rights reserved.

package main

import (
	"sync"
)

// UserProfile is the last-known profile of a user. Created or updated on
// registration (ws register msg or /api/register); never deleted.
// LastSeen is unix millis, updated when the user's connection closes.
type UserProfile struct {
	Id        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	LastSeen  int64  `json:"lastSeen"`
}

// displayName is what we show the callee in a fallback notification.
func (profile UserProfile) displayName() string {
	if profile.FirstName != "" {
		return profile.FirstName
	}
	if profile.Username != "" {
		return profile.Username
	}
	return profile.Id
}

type UserMap struct {
	mutex sync.RWMutex
	users map[string]UserProfile // userID -> profile
}

func NewUserMap() *UserMap {
	return &UserMap{
		users: make(map[string]UserProfile),
	}
}

func (um *UserMap) Upsert(profile UserProfile) {
	um.mutex.Lock()
	um.users[profile.Id] = profile
	um.mutex.Unlock()
}

func (um *UserMap) Get(userID string) (UserProfile, bool) {
	um.mutex.RLock()
	profile, ok := um.users[userID]
	um.mutex.RUnlock()
	return profile, ok
}

// GetOrStub returns the stored profile, or a stub carrying only the id
// for users we have never seen a profile of.
func (um *UserMap) GetOrStub(userID string) UserProfile {
	um.mutex.RLock()
	profile, ok := um.users[userID]
	um.mutex.RUnlock()
	if !ok {
		return UserProfile{Id: userID}
	}
	return profile
}

func (um *UserMap) SetLastSeen(userID string, lastSeen int64) {
	um.mutex.Lock()
	if profile, ok := um.users[userID]; ok {
		profile.LastSeen = lastSeen
		um.users[userID] = profile
	}
	um.mutex.Unlock()
}

func (um *UserMap) Count() int {
	um.mutex.RLock()
	count := len(um.users)
	um.mutex.RUnlock()
	return count
}
