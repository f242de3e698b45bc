// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// Method serve() is the Websocket handler for http-to-ws upgrade.
// Method handleClientMessage() is the signaling message handler:
// "register" binds the connection into the PresenceMap, "call" relays
// a call offer (or falls back to a bot notification when the target is
// offline), "signal"/"hangup"/"reject"/"busy" are pure relays.
// KeepAliveMgr takes care of keeping ws-clients connected.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lesismal/nbio/nbhttp/websocket"
	"zvonki/atombool"
)

const (
	pingPeriod = 30
	// we send a ping to the client when we didn't hear from it for pingPeriod secs
	// whenever we receive something from the client (data or a ping or a pong)
	// we reset the time for our next ping to pingPeriod secs after that moment
	// when we send a ping, we set a read deadline: we expect a pong (or anything)
	// within max 20 secs; if there is still nothing from the client by then, the
	// read deadline caps the connection and its presence entry is released
	// through the normal close transition
	// in other words: we cap a connection we don't hear from for pingPeriod + 20 secs
)

var keepAliveMgr *KeepAliveMgr
var ErrWriteNotConnected = errors.New("Write not connected")

const msgOfflineNotified = "Не в сети. Уведомление отправлено."

// wsConnection is the slice of *websocket.Conn the signaling router
// needs. Keeping it narrow lets the message handling be driven without
// a live socket.
type wsConnection interface {
	WriteMessage(messageType websocket.MessageType, data []byte) error
	SetReadDeadline(t time.Time) error
	SetSession(session interface{})
	Session() interface{}
	RemoteAddr() net.Addr
	Close() error
}

type WsClient struct {
	wsConn           wsConnection
	isOnline         atombool.AtomBool // connected to signaling server
	userID           string            // bound by "register"; empty until then
	connType         string            // "serveWs" or "serveWss"
	RemoteAddr       string            // with port
	RemoteAddrNoPort string
	userAgent        string
	pingSent         uint64
	pongReceived     uint64
	pongSent         uint64
	pingReceived     uint64
	clearOnCloseDone bool
}

// wsMsg is both the client->server and the server->client frame.
// Payload is an opaque blob (sdp/ice/whatever), relayed verbatim.
type wsMsg struct {
	Type         string          `json:"type"`
	UserId       flexId          `json:"userId,omitempty"`
	TargetUserId flexId          `json:"targetUserId,omitempty"`
	From         string          `json:"from,omitempty"`
	Profile      *wsProfile      `json:"profile,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Message      string          `json:"message,omitempty"`
}

type wsProfile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

// flexId accepts a JSON string or a raw number: Telegram user ids
// arrive as either, depending on the client version.
type flexId string

func (f *flexId) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexId(s)
		return nil
	}
	s := strings.TrimSpace(string(data))
	if s == "null" {
		s = ""
	}
	*f = flexId(s)
	return nil
}

func serveWs(w http.ResponseWriter, r *http.Request) {
	serve(w, r, false)
}

func serveWss(w http.ResponseWriter, r *http.Request) {
	serve(w, r, true)
}

func serve(w http.ResponseWriter, r *http.Request, tls bool) {
	if logWantedFor("wsverbose") {
		fmt.Printf("serve url=%s tls=%v\n", r.URL.String(), tls)
	}

	if keepAliveMgr == nil {
		keepAliveMgr = NewKeepAliveMgr()
		go keepAliveMgr.Run()
	}

	readConfigLock.RLock()
	inMaintenance := maintenanceMode
	readConfigLock.RUnlock()
	if inMaintenance {
		// no new connections while in maintenance
		http.Error(w, "service maintenance", http.StatusServiceUnavailable)
		return
	}

	remoteAddr := r.RemoteAddr
	realIpFromRevProxy := r.Header.Get("X-Real-Ip")
	if realIpFromRevProxy != "" {
		remoteAddr = realIpFromRevProxy
	}
	remoteAddrNoPort := remoteAddr
	idxPort := strings.Index(remoteAddrNoPort, ":")
	if idxPort >= 0 {
		remoteAddrNoPort = remoteAddrNoPort[:idxPort]
	}

	upgrader := websocket.NewUpgrader()
	upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("# Upgrade err=%v\n", err)
		return
	}
	wsConn := conn.(*websocket.Conn)

	// the only time clients can be expected to send anything, is after we
	// sent a ping; this is why we set NO read deadline here; we do it when
	// we send a ping
	wsConn.SetReadDeadline(time.Time{})

	client := &WsClient{wsConn: wsConn}
	client.isOnline.Set(true)
	client.RemoteAddr = remoteAddr
	client.RemoteAddrNoPort = remoteAddrNoPort
	client.userAgent = r.UserAgent()
	if tls {
		client.connType = "serveWss"
	} else {
		client.connType = "serveWs"
	}

	upgrader.OnMessage(func(wsConn *websocket.Conn, messageType websocket.MessageType, data []byte) {
		// clear read deadline; don't expect data from this cli for now
		wsConn.SetReadDeadline(time.Time{})
		// whenever a client sends anything, we postpone our next ping
		keepAliveMgr.SetPingDeadline(wsConn, pingPeriod, client)

		switch messageType {
		case websocket.TextMessage:
			n := len(data)
			if n > 0 {
				if logWantedFor("wsreceive") {
					max := n
					if max > 40 {
						max = 40
					}
					fmt.Printf("%s (%s) received n=%d (%s)\n",
						client.connType, client.userID, n, data[:max])
				}
				client.handleClientMessage(data)
			}
		case websocket.BinaryMessage:
			fmt.Printf("# %s binary dataLen=%d\n", client.connType, len(data))
		}
	})

	upgrader.SetPongHandler(func(wsConn *websocket.Conn, s string) {
		// we received a pong from the client
		if logWantedFor("gotpong") {
			fmt.Printf("gotPong (%s) %s\n", client.userID, wsConn.RemoteAddr().String())
		}
		wsConn.SetReadDeadline(time.Time{})
		keepAliveMgr.SetPingDeadline(wsConn, pingPeriod, client)
		client.pongReceived++
	})

	upgrader.SetPingHandler(func(wsConn *websocket.Conn, s string) {
		// received a ping from the client (rare; usually we ping the client)
		if logWantedFor("gotping") {
			fmt.Printf("gotPing (%s)\n", client.userID)
		}
		client.pingReceived++
		wsConn.SetReadDeadline(time.Time{})
		err := wsConn.WriteMessage(websocket.PongMessage, nil)
		if err != nil {
			fmt.Printf("# sendPong (%s) %s err=%v\n",
				client.userID, wsConn.RemoteAddr().String(), err)
			client.isOnline.Set(false)
			wsConn.Close()
			return
		}
		keepAliveMgr.SetPingDeadline(wsConn, pingPeriod, client)
		client.pongSent++
	})

	wsConn.OnClose(func(c *websocket.Conn, err error) {
		if err != nil && strings.Index(err.Error(), "read timeout") < 0 {
			fmt.Printf("%s (%s) OnClose err=%v %s\n",
				client.connType, client.userID, err, client.RemoteAddr)
		} else {
			if logWantedFor("wsclose") {
				fmt.Printf("%s (%s) OnClose noerr %s\n",
					client.connType, client.userID, client.RemoteAddr)
			}
		}
		client.clearOnClose()
	})

	keepAliveMgr.Add(wsConn)
	// set the time for sending the next ping
	keepAliveMgr.SetPingDeadline(wsConn, pingPeriod, client)

	if logWantedFor("wsverbose") {
		fmt.Printf("%s connected %s ua=%s\n", client.connType, remoteAddr, client.userAgent)
	}
}

func (c *WsClient) handleClientMessage(message []byte) {
	var msg wsMsg
	err := json.Unmarshal(message, &msg)
	if err != nil {
		// malformed -> ignore; never close the connection over this
		if logWantedFor("wsreceive") {
			fmt.Printf("%s (%s) discard unparseable msg err=%v\n", c.connType, c.userID, err)
		}
		return
	}

	switch msg.Type {
	case "register":
		userID := string(msg.UserId)
		if userID == "" {
			// malformed -> ignore
			return
		}
		// a 2nd register on the same connection is a fresh bind, not an error
		c.userID = userID
		presenceMap.Register(userID, c)
		if msg.Profile != nil {
			userMap.Upsert(UserProfile{
				Id:        userID,
				FirstName: msg.Profile.FirstName,
				LastName:  msg.Profile.LastName,
				Username:  msg.Profile.Username,
				LastSeen:  timeNowMillis(),
			})
		}
		if logWantedFor("register") {
			fmt.Printf("%s (%s) registered %s\n", c.connType, userID, c.RemoteAddr)
		}
		ack, _ := json.Marshal(wsMsg{Type: "registered", UserId: msg.UserId})
		err = c.Write(ack)
		if err != nil {
			fmt.Printf("# %s (%s) send registered err=%v\n", c.connType, userID, err)
		}

	case "call":
		if c.userID == "" {
			// not registered -> ignore
			return
		}
		targetID := string(msg.TargetUserId)
		if targetID == "" {
			return
		}
		target := presenceMap.Lookup(targetID)
		if target != nil && target.isOnline.Get() {
			forward, _ := json.Marshal(wsMsg{Type: "call", From: c.userID, Payload: msg.Payload})
			err = target.Write(forward)
			if err == nil {
				if logWantedFor("call") {
					fmt.Printf("call (%s) -> (%s) relayed\n", c.userID, targetID)
				}
				statsMutex.Lock()
				numberOfCallsToday++
				statsMutex.Unlock()
				return
			}
			fmt.Printf("# call (%s) -> (%s) write err=%v\n", c.userID, targetID, err)
			// fall through to the offline path
		}
		// target is not reachable: throttled bot notification + offline reply
		notifyOfflineUser(targetID, userMap.GetOrStub(c.userID))
		reply, _ := json.Marshal(wsMsg{
			Type:         "offline",
			TargetUserId: flexId(targetID),
			Message:      msgOfflineNotified,
		})
		err = c.Write(reply)
		if err != nil {
			fmt.Printf("# call (%s) send offline reply err=%v\n", c.userID, err)
		}

	case "signal", "hangup", "reject", "busy":
		if c.userID == "" {
			// not registered -> ignore
			return
		}
		targetID := string(msg.TargetUserId)
		if targetID == "" {
			return
		}
		target := presenceMap.Lookup(targetID)
		if target == nil || !target.isOnline.Get() {
			// silent drop: no reply, no notification
			// (this is what keeps negotiation retries from spamming the bot)
			return
		}
		forward, _ := json.Marshal(wsMsg{Type: msg.Type, From: c.userID, Payload: msg.Payload})
		err = target.Write(forward)
		if err != nil {
			fmt.Printf("# %s (%s) -> (%s) write err=%v\n", msg.Type, c.userID, targetID, err)
		}

	default:
		// unknown type -> ignore
		if logWantedFor("wsreceive") {
			fmt.Printf("%s (%s) discard unknown type (%s)\n", c.connType, c.userID, msg.Type)
		}
	}
}

// clearOnClose releases this connection's presence entry and stamps
// lastSeen. Removal is keyed by connection identity: if the same user
// has since re-registered on a newer connection, that entry stays.
func (c *WsClient) clearOnClose() {
	c.isOnline.Set(false)
	if c.clearOnCloseDone {
		return
	}
	c.clearOnCloseDone = true
	if keepAliveMgr != nil {
		keepAliveMgr.Delete(c.wsConn)
	}
	if c.userID != "" {
		if presenceMap.RemoveClient(c.userID, c) {
			userMap.SetLastSeen(c.userID, timeNowMillis())
		}
	}
}

func (c *WsClient) Write(b []byte) error {
	if !c.isOnline.Get() {
		return ErrWriteNotConnected
	}
	if logWantedFor("wswrite") {
		max := len(b)
		if max > 40 {
			max = 40
		}
		fmt.Printf("%s Write (%s) to (%s)\n", c.connType, b[:max], c.userID)
	}
	return c.wsConn.WriteMessage(websocket.TextMessage, b)
}

func (c *WsClient) SendPing(maxWaitMS int) {
	// we expect a pong (or anything) from the client within max 20 secs
	if maxWaitMS < 0 {
		maxWaitMS = 20000
	}
	if logWantedFor("sendping") {
		fmt.Printf("sendPing (%s) %s maxWaitMS=%d\n",
			c.userID, c.wsConn.RemoteAddr().String(), maxWaitMS)
	}
	err := c.wsConn.WriteMessage(websocket.PingMessage, nil)
	if err != nil {
		fmt.Printf("# sendPing (%s) %s err=%v\n", c.userID, c.wsConn.RemoteAddr().String(), err)
		c.isOnline.Set(false)
		c.wsConn.Close()
		return
	}
	c.pingSent++
	if maxWaitMS > 0 {
		// the time by when a (pong) response from this client would be too late
		c.wsConn.SetReadDeadline(time.Now().Add(time.Duration(maxWaitMS) * time.Millisecond))
	}
	// set the time for sending the next ping in pingPeriod secs from now
	keepAliveMgr.SetPingDeadline(c.wsConn, pingPeriod, c)
}

// KeepAliveMgr done with kind support from lesismal of github.com/lesismal/nbio
// Keeping many idle clients alive: https://github.com/lesismal/nbio/issues/92
type KeepAliveMgr struct {
	mux     sync.RWMutex
	clients map[wsConnection]struct{}
}

func NewKeepAliveMgr() *KeepAliveMgr {
	return &KeepAliveMgr{
		clients: make(map[wsConnection]struct{}),
	}
}

type KeepAliveSessionData struct {
	pingSendTime time.Time
	client       *WsClient
}

func (kaMgr *KeepAliveMgr) SetPingDeadline(wsConn wsConnection, secs int, client *WsClient) {
	// set the absolute time for sending the next ping
	wsConn.SetSession(&KeepAliveSessionData{
		time.Now().Add(time.Duration(secs) * time.Second), client})
}

func (kaMgr *KeepAliveMgr) Add(c wsConnection) {
	kaMgr.mux.Lock()
	defer kaMgr.mux.Unlock()
	kaMgr.clients[c] = struct{}{}
}

func (kaMgr *KeepAliveMgr) Delete(c wsConnection) {
	kaMgr.mux.Lock()
	defer kaMgr.mux.Unlock()
	delete(kaMgr.clients, c)
}

func (kaMgr *KeepAliveMgr) Run() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		<-ticker.C
		if shutdownStarted.Get() {
			break
		}
		kaMgr.mux.RLock()
		myClients := make([]wsConnection, len(kaMgr.clients))
		i := 0
		for wsConn := range kaMgr.clients {
			myClients[i] = wsConn
			i++
		}
		kaMgr.mux.RUnlock()

		var nPing int64 = 0
		timeNow := time.Now()
		for _, wsConn := range myClients {
			keepAliveSessionData, ok := wsConn.Session().(*KeepAliveSessionData)
			if ok && keepAliveSessionData != nil {
				if timeNow.After(keepAliveSessionData.pingSendTime) {
					keepAliveSessionData.client.SendPing(-1)
					nPing++
				}
			}
		}
		atomic.AddInt64(&pingSentCounter, nPing)
	}
}

func timeNowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
