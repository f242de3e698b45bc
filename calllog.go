// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// CallLog is the bounded in-memory ledger of completed/attempted calls.
// It is a fixed-capacity ring: once maxCallLogs entries are stored, a
// new Add() overwrites the oldest entry. Entries are immutable once
// stored; the caller/receiver profile snapshots are refreshed with the
// current profiles at query time (httpHistory).

package main

import (
	"sync"

	"github.com/google/uuid"
)

const maxCallLogs = 500      // keep last N logs in memory
const maxHistoryEntries = 50 // max entries per /api/history response

type CallLogEntry struct {
	Id           string      `json:"id"`
	CallerId     string      `json:"callerId"`
	ReceiverId   string      `json:"receiverId"`
	CallerName   UserProfile `json:"callerName"`
	ReceiverName UserProfile `json:"receiverName"`
	StartTime    int64       `json:"startTime"` // unix millis
	Duration     int64       `json:"duration"`  // millis
	Type         string      `json:"type"`      // "audio" or "video"
	Status       string      `json:"status"`    // "completed", "missed", "rejected", "busy", ...
}

type CallLog struct {
	mutex   sync.RWMutex
	entries []CallLogEntry
	head    int // index of the oldest entry
	count   int
}

func NewCallLog(capacity int) *CallLog {
	return &CallLog{
		entries: make([]CallLogEntry, capacity),
	}
}

// Add stores entry, assigning a unique id if none is given, and evicts
// the oldest entry once the ring is full. Returns the stored entry.
func (cl *CallLog) Add(entry CallLogEntry) CallLogEntry {
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	cl.mutex.Lock()
	idx := (cl.head + cl.count) % len(cl.entries)
	cl.entries[idx] = entry
	if cl.count == len(cl.entries) {
		cl.head = (cl.head + 1) % len(cl.entries)
	} else {
		cl.count++
	}
	cl.mutex.Unlock()
	return entry
}

// QueryUser returns up to limit entries where userID is caller or
// receiver, most recent first.
func (cl *CallLog) QueryUser(userID string, limit int) []CallLogEntry {
	result := make([]CallLogEntry, 0, limit)
	cl.mutex.RLock()
	for i := cl.count - 1; i >= 0 && len(result) < limit; i-- {
		entry := cl.entries[(cl.head+i)%len(cl.entries)]
		if entry.CallerId == userID || entry.ReceiverId == userID {
			result = append(result, entry)
		}
	}
	cl.mutex.RUnlock()
	return result
}

func (cl *CallLog) Count() int {
	cl.mutex.RLock()
	count := cl.count
	cl.mutex.RUnlock()
	return count
}
