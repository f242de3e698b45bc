// Zvonki Copyright 2026 zvonki.app. All rights reserved.
package main

import (
	"fmt"
	"time"
)

// 30s-ticker: logs the stats line
func ticker30sec() {
	thirtySecTicker := time.NewTicker(30 * time.Second)
	defer thirtySecTicker.Stop()
	for {
		<-thirtySecTicker.C
		if shutdownStarted.Get() {
			break
		}
		fmt.Printf("%s\n", getStats())
	}
	fmt.Printf("ticker30sec ending\n")
}

// 10s-ticker: periodically call readConfig()
func ticker10sec() {
	tenSecTicker := time.NewTicker(10 * time.Second)
	defer tenSecTicker.Stop()
	for ; true; <-tenSecTicker.C {
		if shutdownStarted.Get() {
			break
		}
		readConfig(false)
	}
}

// 2s-ticker: detect day change, reset the daily counters
func ticker2sec() {
	twoSecTicker := time.NewTicker(2 * time.Second)
	defer twoSecTicker.Stop()
	for ; true; <-twoSecTicker.C {
		if shutdownStarted.Get() {
			break
		}
		timeNow := operationalNow()
		if timeNow.Day() != lastCurrentDayOfMonth {
			fmt.Printf("we have a new day\n")
			statsMutex.Lock()
			lastCurrentDayOfMonth = timeNow.Day()
			numberOfCallsToday = 0
			numberOfCallSecondsToday = 0
			numberOfNotificationsToday = 0
			statsMutex.Unlock()
			writeStatsFile()
		}
	}
}
