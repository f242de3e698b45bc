// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// Daily operational counters (calls relayed, call seconds logged,
// notifications sent). They are logged by ticker30sec(), reset on day
// change by ticker2sec() and kept over restarts in stats.ini. This is
// the only file-backed state of the server; all signaling state is
// in-memory by design.

package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/ini.v1"
)

var statsMutex sync.RWMutex
var numberOfCallsToday = 0         // ws call relays, incremented by wsClient.go
var numberOfCallSecondsToday = 0   // fed by /api/call-log durations
var numberOfNotificationsToday = 0 // bot notifications actually sent
var lastCurrentDayOfMonth = 0      // set by ticker2sec()

// getStats() creates a string with live info about the number of
// online clients, registered users and today's call counters
func getStats() string {
	statsMutex.RLock()
	retStr := fmt.Sprintf("stats online:%d registered:%d calls:%d callSecs:%d notifs:%d ping:%d gor:%d",
		presenceMap.Count(), userMap.Count(),
		numberOfCallsToday, numberOfCallSecondsToday, numberOfNotificationsToday,
		atomic.LoadInt64(&pingSentCounter),
		runtime.NumGoroutine())
	statsMutex.RUnlock()
	return retStr
}

// if timeLocationString is specified, operationalNow() will return
// the current time for the given location
// this is useful if your server is hosted in a timezone diffrent
// than you.
func operationalNow() time.Time {
	if timeLocationString != "" {
		if timeLocation == nil {
			loc, err := time.LoadLocation(timeLocationString)
			if err != nil {
				panic(err)
			}
			timeLocation = loc
		}
		return time.Now().In(timeLocation)
	}
	return time.Now()
}

// logWantedFor(), together with the logevents config keyword,
// allows for topic specific logging
func logWantedFor(topic string) bool {
	logeventMutex.RLock()
	if logeventMap[topic] {
		logeventMutex.RUnlock()
		return true
	}
	logeventMutex.RUnlock()
	return false
}

// readStatsFile() reads the file "stats.ini" in which the daily
// counters are kept persisted, so that they survive a restart
func readStatsFile() {
	statsIni, err := ini.Load(statsFileName)
	if err != nil {
		// we ignore this; the server works fine without a statsFile
		return
	}
	statsMutex.Lock()
	numberOfCallsToday = readStatsInt(statsIni, "numberOfCallsToday", numberOfCallsToday)
	numberOfCallSecondsToday = readStatsInt(statsIni, "numberOfCallSecondsToday", numberOfCallSecondsToday)
	numberOfNotificationsToday = readStatsInt(statsIni, "numberOfNotificationsToday", numberOfNotificationsToday)
	lastCurrentDayOfMonth = readStatsInt(statsIni, "lastCurrentDayOfMonth", lastCurrentDayOfMonth)
	statsMutex.Unlock()
}

// writeStatsFile() writes the file read by readStatsFile()
func writeStatsFile() {
	filename := statsFileName
	os.Remove(filename)
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("# error creating statsFile (%s) err=%v\n", filename, err)
		return
	}
	defer func() {
		if file != nil {
			if err := file.Close(); err != nil {
				fmt.Printf("# error closing statsFile (%s) err=%s\n", filename, err)
			}
		}
	}()
	fwr := bufio.NewWriter(file)

	statsMutex.RLock()
	data := fmt.Sprintf("numberOfCallsToday = %d\n"+
		"numberOfCallSecondsToday = %d\n"+
		"numberOfNotificationsToday = %d\n"+
		"lastCurrentDayOfMonth = %d\n",
		numberOfCallsToday, numberOfCallSecondsToday,
		numberOfNotificationsToday, lastCurrentDayOfMonth)
	statsMutex.RUnlock()
	wrlen, err := fwr.WriteString(data)
	if err != nil {
		fmt.Printf("# error writing statsFile (%s) data err=%s\n", filename, err)
		return
	}
	if wrlen != len(data) {
		fmt.Printf("# error writing statsFile (%s) dlen=%d wrlen=%d\n",
			filename, len(data), wrlen)
		return
	}
	fwr.Flush()
	fmt.Printf("statsFile written (%s) dlen=%d\n", filename, len(data))
}

func readStatsInt(statsIni *ini.File, iniKeyword string, currentVal int) int {
	iniValue, ok := readIniEntry(statsIni, iniKeyword)
	if !ok || iniValue == "" {
		return currentVal
	}
	i64, err := strconv.ParseInt(iniValue, 10, 64)
	if err != nil {
		fmt.Printf("# stats val %s: %s=%v err=%v\n", statsFileName, iniKeyword, iniValue, err)
		return currentVal
	}
	return int(i64)
}
