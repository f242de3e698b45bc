// Zvonki Copyright 2026 zvonki.app. All rights reserved.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/lesismal/nbio/nbhttp"
)

// startSignalingServer runs the real nbio websocket stack on a free
// localhost port and returns the ws url.
func startSignalingServer(t *testing.T) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen err=%v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	mux := &http.ServeMux{}
	mux.HandleFunc("/ws", serveWs)
	server := nbhttp.NewServer(nbhttp.Config{
		Network:                 "tcp",
		Addrs:                   []string{addr},
		MaxLoad:                 1000,
		ReleaseWebsocketPayload: true,
		NPoller:                 runtime.NumCPU(),
	}, mux, nil)
	if err := server.Start(); err != nil {
		t.Fatalf("nbio.Start err=%v", err)
	}
	return "ws://" + addr + "/ws", func() { server.Stop() }
}

func dialSignaling(t *testing.T, url string) *gws.Conn {
	t.Helper()
	var conn *gws.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, _, err = gws.DefaultDialer.Dial(url, nil)
		if err == nil {
			return conn
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Dial %s err=%v", url, err)
	return nil
}

func readFrame(t *testing.T, conn *gws.Conn) wsMsg {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage err=%v", err)
	}
	var msg wsMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unparseable frame %s: %v", data, err)
	}
	return msg
}

func registerOn(t *testing.T, conn *gws.Conn, userID string) {
	t.Helper()
	frame := fmt.Sprintf(`{"type":"register","userId":"%s"}`, userID)
	if err := conn.WriteMessage(gws.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("register write err=%v", err)
	}
	ack := readFrame(t, conn)
	if ack.Type != "registered" || string(ack.UserId) != userID {
		t.Fatalf("register ack = %+v", ack)
	}
}

func TestEndToEndSignaling(t *testing.T) {
	initTestState()
	url, stop := startSignalingServer(t)
	defer stop()

	alice := dialSignaling(t, url)
	defer alice.Close()
	bob := dialSignaling(t, url)

	registerOn(t, alice, "5")
	registerOn(t, bob, "77")

	// alice calls bob
	err := alice.WriteMessage(gws.TextMessage,
		[]byte(`{"type":"call","targetUserId":"77","payload":{"sdp":"offer"}}`))
	if err != nil {
		t.Fatalf("call write err=%v", err)
	}
	call := readFrame(t, bob)
	if call.Type != "call" || call.From != "5" {
		t.Fatalf("bob got %+v, want call from 5", call)
	}
	if string(call.Payload) != `{"sdp":"offer"}` {
		t.Fatalf("payload = %s", call.Payload)
	}

	// bob rejects
	err = bob.WriteMessage(gws.TextMessage, []byte(`{"type":"reject","targetUserId":"5"}`))
	if err != nil {
		t.Fatalf("reject write err=%v", err)
	}
	reject := readFrame(t, alice)
	if reject.Type != "reject" || reject.From != "77" {
		t.Fatalf("alice got %+v, want reject from 77", reject)
	}

	// calling an unknown user yields the offline reply
	err = alice.WriteMessage(gws.TextMessage, []byte(`{"type":"call","targetUserId":"99"}`))
	if err != nil {
		t.Fatalf("call write err=%v", err)
	}
	offline := readFrame(t, alice)
	if offline.Type != "offline" || string(offline.TargetUserId) != "99" {
		t.Fatalf("alice got %+v, want offline for 99", offline)
	}
	if offline.Message != msgOfflineNotified {
		t.Fatalf("offline message = %q", offline.Message)
	}

	// closing bob's connection releases his presence entry
	bob.Close()
	deadline := time.Now().Add(3 * time.Second)
	for presenceMap.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("presence Count() = %d after close, want 1", presenceMap.Count())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if presenceMap.Lookup("5") == nil {
		t.Fatalf("alice lost her presence entry")
	}
}
