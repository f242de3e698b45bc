// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// Zvonki server is the signaling hub for the Звонки Telegram Mini App.
// Its main task is to connect two clients, so that they can establish
// a peer-to-peer call, and to ping the callee through the Telegram bot
// when it is not connected.
//
// main.go calls readConfig(), opens the websocket handlers for ws and
// wss communication, starts the httpServer() REST glue and a couple of
// background processes (tickers). The server will run until it
// receives a SIGTERM event. It will then run the shutdown procedure.
//
// Clients connect via websocket (wsClient.go), register their Telegram
// id and exchange call/signal/hangup/reject/busy messages. Who is
// online lives in presence.go, profiles in users.go, the contact graph
// in friends.go, the bounded call ledger in calllog.go and the
// rate-limited bot notification fallback in notify.go.

package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/lesismal/llib/std/crypto/tls"
	"github.com/lesismal/nbio/nbhttp"
	"zvonki/atombool"
	"zvonki/iptools"
	"zvonki/telegram"
)

var version = flag.Bool("version", false, "show version")
var builddate string
var codetag string

const configFileName = "config.ini"
const statsFileName = "stats.ini"

var readConfigLock sync.RWMutex
var shutdownStarted atombool.AtomBool

// shared registries; the only authoritative state of the hub
var presenceMap *PresenceMap
var userMap *UserMap
var friendGraph *FriendGraph
var callLog *CallLog
var notifyMgr *NotifyMgr
var telegramClient *telegram.Client

var serverStartTime time.Time
var outboundIP = ""
var pingSentCounter int64 = 0

var clientRequestsMutex sync.RWMutex
var clientRequestsMap map[string][]time.Time // remoteAddr -> recent request times

var httpRequestCountMutex sync.RWMutex
var httpRequestCount = 0
var httpResponseCount = 0
var httpResponseTime time.Duration

var wsAddr string
var wssAddr string
var svr *nbhttp.Server
var svrs *nbhttp.Server

// config keywords: must be evaluated with readConfigLock
var httpPort = 0
var wsPort = 0
var wssPort = 0
var insecureSkipVerify = false
var pprofPort = 0
var timeLocationString = ""
var timeLocation *time.Location = nil
var maintenanceMode = false
var botToken = ""
var webAppUrl = ""
var maxClientRequestsPer30min = 0
var logevents = ""
var logeventMap map[string]bool
var logeventMutex sync.RWMutex

func main() {
	flag.Parse()
	if *version {
		if codetag != "" {
			fmt.Printf("version %s\n", codetag)
		}
		fmt.Printf("builddate %s\n", builddate)
		return
	}

	fmt.Printf("--------------- zvonki startup ---------------\n")
	serverStartTime = time.Now()
	presenceMap = NewPresenceMap()
	userMap = NewUserMap()
	friendGraph = NewFriendGraph()
	callLog = NewCallLog(maxCallLogs)
	notifyMgr = NewNotifyMgr()
	clientRequestsMap = make(map[string][]time.Time)
	readConfig(true)
	readStatsFile()

	var err error
	outboundIP, err = iptools.GetOutboundIP()
	if err != nil {
		fmt.Printf("# GetOutboundIP err=%v\n", err)
	}
	fmt.Printf("outboundIP %s\n", outboundIP)

	// websocket handler
	if wsPort > 0 {
		wsAddr = fmt.Sprintf(":%d", wsPort)
		mux := &http.ServeMux{}
		mux.HandleFunc("/ws", serveWs)
		svr = nbhttp.NewServer(nbhttp.Config{
			Network:                 "tcp",
			Addrs:                   []string{wsAddr},
			MaxLoad:                 1000000,
			ReleaseWebsocketPayload: true,
			NPoller:                 runtime.NumCPU() * 4,
		}, mux, nil)
		err = svr.Start()
		if err != nil {
			fmt.Printf("# nbio.Start wsPort failed: %v\n", err)
			return
		}
		defer svr.Stop()
		fmt.Printf("websocket listening on %s\n", wsAddr)
	}
	if wssPort > 0 {
		cer, err := tls.LoadX509KeyPair("tls.pem", "tls.key")
		if err != nil {
			fmt.Printf("# tls.LoadX509KeyPair err=(%v)\n", err)
			os.Exit(-1)
		}
		tlsConfig := &tls.Config{
			Certificates:       []tls.Certificate{cer},
			InsecureSkipVerify: insecureSkipVerify,
			// Causes servers to use Go's default ciphersuite preferences,
			// which are tuned to avoid attacks. Does nothing on clients.
			PreferServerCipherSuites: true,
			// Only use curves which have assembly implementations
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
			MinVersion: tls.VersionTLS12,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
				tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		}
		tlsConfig.BuildNameToCertificate()

		wssAddr = fmt.Sprintf(":%d", wssPort)
		mux := &http.ServeMux{}
		mux.HandleFunc("/ws", serveWss)
		svrs = nbhttp.NewServerTLS(nbhttp.Config{
			Network:                 "tcp",
			Addrs:                   []string{wssAddr},
			MaxLoad:                 1000000,
			ReleaseWebsocketPayload: true,
			NPoller:                 runtime.NumCPU() * 4,
		}, mux, nil, tlsConfig)
		err = svrs.Start()
		if err != nil {
			fmt.Printf("# nbio.Start wssPort failed: %v\n", err)
			return
		}
		defer svrs.Stop()
		fmt.Printf("websocket tls listening on %s\n", wssAddr)
	}

	go httpServer()
	go ticker30sec() // log stats
	go ticker10sec() // call readConfig()
	go ticker2sec()  // check for new day
	if pprofPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", pprofPort)
			fmt.Printf("starting pprofServer on %s\n", addr)
			pprofServer := &http.Server{Addr: addr}
			pprofServer.ListenAndServe()
		}()
	}

	time.Sleep(1 * time.Second)
	fmt.Printf("awaiting SIGTERM for shutdown...\n")
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc

	// shutdown
	fmt.Printf("received os.Interrupt/SIGTERM signal: shutting down...\n")
	// shutdownStarted.Set(true) will end all timer routines
	// but it will not end ListenAndServe(); this is why we call os.Exit() below
	shutdownStarted.Set(true)
	writeStatsFile()
	time.Sleep(2 * time.Second)
	os.Exit(0)
}
