// Zvonki Copyright 2026 zvonki.app. All rights reserved.
package main

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/lesismal/nbio/nbhttp/websocket"
)

// initTestState resets the shared registries before each test.
func initTestState() {
	presenceMap = NewPresenceMap()
	userMap = NewUserMap()
	friendGraph = NewFriendGraph()
	callLog = NewCallLog(maxCallLogs)
	notifyMgr = NewNotifyMgr()
	clientRequestsMap = make(map[string][]time.Time)
	telegramClient = nil
	serverStartTime = time.Now()
	logeventMutex.Lock()
	logeventMap = make(map[string]bool)
	logeventMutex.Unlock()
	readConfigLock.Lock()
	maxClientRequestsPer30min = 0
	webAppUrl = ""
	botToken = ""
	readConfigLock.Unlock()
}

// fakeConn implements wsConnection for driving the message handler
// without a live socket.
type fakeConn struct {
	mutex      sync.Mutex
	written    [][]byte
	pings      int
	session    interface{}
	closed     bool
	failWrites bool
}

func (fc *fakeConn) WriteMessage(messageType websocket.MessageType, data []byte) error {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	if fc.failWrites {
		return errors.New("write fail")
	}
	switch messageType {
	case websocket.TextMessage:
		cp := make([]byte, len(data))
		copy(cp, data)
		fc.written = append(fc.written, cp)
	case websocket.PingMessage:
		fc.pings++
	}
	return nil
}

func (fc *fakeConn) SetReadDeadline(t time.Time) error { return nil }

func (fc *fakeConn) SetSession(session interface{}) {
	fc.mutex.Lock()
	fc.session = session
	fc.mutex.Unlock()
}

func (fc *fakeConn) Session() interface{} {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	return fc.session
}

func (fc *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345}
}

func (fc *fakeConn) Close() error {
	fc.mutex.Lock()
	fc.closed = true
	fc.mutex.Unlock()
	return nil
}

func (fc *fakeConn) sentMessages() [][]byte {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	out := make([][]byte, len(fc.written))
	copy(out, fc.written)
	return out
}

// newTestClient returns a connected but not yet registered WsClient.
func newTestClient() (*WsClient, *fakeConn) {
	fc := &fakeConn{}
	client := &WsClient{wsConn: fc, connType: "serveWs", RemoteAddr: "127.0.0.1:12345"}
	client.isOnline.Set(true)
	return client, fc
}
