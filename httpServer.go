// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// All REST client activity starts in httpServer.go. The Mini App
// frontend sends XHR requests to the "/api/" handlers implemented in
// httpApi.go; "/" and "/health" answer monitoring probes.

package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

func httpServer() {
	http.HandleFunc("/", httpApiHandler)

	readConfigLock.RLock()
	myHttpPort := httpPort
	readConfigLock.RUnlock()
	if myHttpPort <= 0 {
		fmt.Printf("# httpServer not starting, httpPort=%d\n", myHttpPort)
		return
	}
	addrPort := fmt.Sprintf(":%d", myHttpPort)
	fmt.Printf("httpServer listening on %v\n", addrPort)
	srv := &http.Server{
		Addr:              addrPort,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	err := srv.ListenAndServe()
	if err != nil {
		fmt.Printf("# httpServer ListenAndServe err=%v\n", err)
	}
}

func httpApiHandler(w http.ResponseWriter, r *http.Request) {
	startRequestTime := time.Now()

	remoteAddrWithPort := r.RemoteAddr
	if strings.HasPrefix(remoteAddrWithPort, "[::1]") {
		remoteAddrWithPort = "127.0.0.1" + remoteAddrWithPort[5:]
	}
	altIp := r.Header.Get("X-Real-IP")
	if len(altIp) >= 7 && !strings.HasPrefix(remoteAddrWithPort, altIp) {
		remoteAddrWithPort = altIp
		altPort := r.Header.Get("X-Real-Port")
		if altPort != "" {
			remoteAddrWithPort = remoteAddrWithPort + ":" + altPort
		}
	}
	remoteAddr := remoteAddrWithPort
	idxPort := strings.Index(remoteAddrWithPort, ":")
	if idxPort >= 0 {
		remoteAddr = remoteAddrWithPort[:idxPort]
	}

	urlPath := r.URL.Path
	if logWantedFor("http") {
		fmt.Printf("httpApi (%v) %s rip=%s\n", urlPath, r.Method, remoteAddrWithPort)
	}

	// the Mini App frontend is served from a different origin
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// deny a remoteAddr to do more than X requests per 30min
	readConfigLock.RLock()
	myMaxClientRequestsPer30min := maxClientRequestsPer30min
	readConfigLock.RUnlock()
	if myMaxClientRequestsPer30min > 0 && remoteAddr != outboundIP && remoteAddr != "127.0.0.1" {
		clientRequestsMutex.RLock()
		clientRequestsSlice, ok := clientRequestsMap[remoteAddr]
		clientRequestsMutex.RUnlock()
		if ok {
			for len(clientRequestsSlice) > 0 {
				if time.Now().Sub(clientRequestsSlice[0]) < 30*time.Minute {
					break
				}
				if len(clientRequestsSlice) > 1 {
					clientRequestsSlice = clientRequestsSlice[1:]
				} else {
					clientRequestsSlice = clientRequestsSlice[:0]
				}
			}
			if len(clientRequestsSlice) >= myMaxClientRequestsPer30min {
				if logWantedFor("overload") {
					fmt.Printf("httpApi rip=%s %d >= %d requests/30m (%s)\n",
						remoteAddr, len(clientRequestsSlice), myMaxClientRequestsPer30min, urlPath)
				}
				fmt.Fprintf(w, "Too many requests in short order. Please take a pause.")
				clientRequestsMutex.Lock()
				clientRequestsMap[remoteAddr] = clientRequestsSlice
				clientRequestsMutex.Unlock()
				return
			}
		}
		clientRequestsSlice = append(clientRequestsSlice, time.Now())
		clientRequestsMutex.Lock()
		clientRequestsMap[remoteAddr] = clientRequestsSlice
		clientRequestsMutex.Unlock()
	}

	httpRequestCountMutex.Lock()
	httpRequestCount++
	httpRequestCountMutex.Unlock()

	switch {
	case urlPath == "/":
		httpStatus(w, r)
	case urlPath == "/health":
		httpHealth(w, r)
	case urlPath == "/api/register":
		httpRegisterProfile(w, r, remoteAddr)
	case urlPath == "/api/contacts":
		httpContacts(w, r, remoteAddr)
	case urlPath == "/api/add-friend":
		httpAddFriend(w, r, remoteAddr)
	case urlPath == "/api/call-log":
		httpCallLog(w, r, remoteAddr)
	case urlPath == "/api/history":
		httpHistory(w, r, remoteAddr)
	default:
		http.NotFound(w, r)
	}

	httpRequestCountMutex.Lock()
	httpResponseCount++
	httpResponseTime = time.Now().Sub(startRequestTime)
	httpRequestCountMutex.Unlock()
}
