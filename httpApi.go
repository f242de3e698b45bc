// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// REST handlers consumed by the Mini App frontend:
// /api/register    profile upsert (also happens on ws register)
// /api/contacts    friends of a user, each with an online flag
// /api/add-friend  mutual friendship via accepted referral link
// /api/call-log    append one entry to the bounded call history
// /api/history     up to 50 most recent entries of a user

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

func writeJson(w http.ResponseWriter, obj interface{}) {
	data, err := json.Marshal(obj)
	if err != nil {
		fmt.Printf("# writeJson err=%v\n", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func writeJsonError(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(map[string]string{"error": errMsg})
	w.Write(data)
}

func httpStatus(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]interface{}{
		"status":     "ok",
		"online":     presenceMap.Count(),
		"registered": userMap.Count(),
	})
}

func httpHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]interface{}{
		"status": "ok",
		"uptime": int64(time.Now().Sub(serverStartTime).Seconds()),
	})
}

func httpRegisterProfile(w http.ResponseWriter, r *http.Request, remoteAddr string) {
	if r.Method != "POST" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Id        flexId `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Username  string `json:"username"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || string(req.Id) == "" {
		writeJsonError(w, http.StatusBadRequest, "id required")
		return
	}
	userMap.Upsert(UserProfile{
		Id:        string(req.Id),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		LastSeen:  timeNowMillis(),
	})
	if logWantedFor("register") {
		fmt.Printf("/api/register (%s) rip=%s\n", req.Id, remoteAddr)
	}
	writeJson(w, map[string]bool{"ok": true})
}

type contactEntry struct {
	UserProfile
	Online   bool `json:"online"`
	IsFriend bool `json:"isFriend"`
}

func httpContacts(w http.ResponseWriter, r *http.Request, remoteAddr string) {
	uid := r.URL.Query().Get("userId")
	if uid == "" {
		uid = r.URL.Query().Get("exclude") // older frontends
	}
	friendIDs := friendGraph.Neighbors(uid)
	list := make([]contactEntry, 0, len(friendIDs))
	for _, friendID := range friendIDs {
		profile, ok := userMap.Get(friendID)
		if !ok {
			continue
		}
		online := false
		client := presenceMap.Lookup(friendID)
		if client != nil && client.isOnline.Get() {
			online = true
		}
		list = append(list, contactEntry{UserProfile: profile, Online: online, IsFriend: true})
	}
	// online first
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Online && !list[j].Online
	})
	writeJson(w, list)
}

func httpAddFriend(w http.ResponseWriter, r *http.Request, remoteAddr string) {
	if r.Method != "POST" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		UserId   flexId `json:"userId"`
		FriendId flexId `json:"friendId"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || string(req.UserId) == "" || string(req.FriendId) == "" {
		writeJsonError(w, http.StatusBadRequest, "userId and friendId required")
		return
	}
	err = friendGraph.AddMutual(string(req.UserId), string(req.FriendId))
	if err != nil {
		writeJsonError(w, http.StatusBadRequest, "cannot add yourself")
		return
	}
	fmt.Printf("friends (%s) <-> (%s) rip=%s\n", req.UserId, req.FriendId, remoteAddr)
	writeJson(w, map[string]bool{"ok": true})
}

func httpCallLog(w http.ResponseWriter, r *http.Request, remoteAddr string) {
	if r.Method != "POST" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		CallerId   flexId `json:"callerId"`
		ReceiverId flexId `json:"receiverId"`
		StartTime  int64  `json:"startTime"`
		Duration   int64  `json:"duration"`
		Type       string `json:"type"`
		Status     string `json:"status"`
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || string(req.CallerId) == "" || string(req.ReceiverId) == "" {
		writeJsonError(w, http.StatusBadRequest, "callerId and receiverId required")
		return
	}
	entry := CallLogEntry{
		CallerId:     string(req.CallerId),
		ReceiverId:   string(req.ReceiverId),
		CallerName:   userMap.GetOrStub(string(req.CallerId)),
		ReceiverName: userMap.GetOrStub(string(req.ReceiverId)),
		StartTime:    req.StartTime,
		Duration:     req.Duration,
		Type:         req.Type,
		Status:       req.Status,
	}
	if entry.StartTime == 0 {
		entry.StartTime = timeNowMillis()
	}
	if entry.Type == "" {
		entry.Type = "audio"
	}
	if entry.Status == "" {
		entry.Status = "completed"
	}
	stored := callLog.Add(entry)
	statsMutex.Lock()
	numberOfCallSecondsToday += int(stored.Duration / 1000)
	statsMutex.Unlock()
	if logWantedFor("calllog") {
		fmt.Printf("/api/call-log (%s)->(%s) %s %s dur=%d\n",
			stored.CallerId, stored.ReceiverId, stored.Type, stored.Status, stored.Duration)
	}
	writeJson(w, map[string]interface{}{"ok": true, "log": stored})
}

func httpHistory(w http.ResponseWriter, r *http.Request, remoteAddr string) {
	uid := r.URL.Query().Get("userId")
	if uid == "" {
		writeJsonError(w, http.StatusBadRequest, "userId required")
		return
	}
	history := callLog.QueryUser(uid, maxHistoryEntries)
	// show the current profiles, not the ones snapshotted at call time
	for i := range history {
		history[i].CallerName = userMap.GetOrStub(history[i].CallerId)
		history[i].ReceiverName = userMap.GetOrStub(history[i].ReceiverId)
	}
	writeJson(w, history)
}
