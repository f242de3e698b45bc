// Zvonki Copyright 2026 zvonki.app. All rights reserved.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1" // https://pkg.go.dev/gopkg.in/go-ini/ini.v1
	"zvonki/telegram"
)

func readIniEntry(configIni *ini.File, keyword string) (string, bool) {
	if configIni == nil {
		return "", false
	}
	if !configIni.Section("").HasKey(keyword) {
		return "", false
	}
	cfgEntry := configIni.Section("").Key(keyword).String()
	commentIdx := strings.Index(cfgEntry, "#")
	if commentIdx >= 0 {
		cfgEntry = cfgEntry[:commentIdx]
	}
	return strings.TrimSpace(cfgEntry), true
}

func readIniBoolean(configIni *ini.File, cfgKeyword string, currentVal bool, defaultValue bool) bool {
	newVal := defaultValue
	cfgValue, ok := readIniEntry(configIni, cfgKeyword)
	if ok && cfgValue != "" {
		if cfgValue == "true" {
			newVal = true
		} else {
			newVal = false
		}
	}
	if currentVal != newVal {
		isDefault := ""
		if newVal == defaultValue {
			isDefault = "*"
		}
		fmt.Printf("%s bool %s=%v %s\n", configFileName, cfgKeyword, newVal, isDefault)
	}
	currentVal = newVal
	return currentVal
}

func readIniInt(configIni *ini.File, cfgKeyword string, currentVal int, defaultValue int, factor int) int {
	newVal := defaultValue
	cfgValue, ok := readIniEntry(configIni, cfgKeyword)
	if ok && cfgValue != "" {
		i64, err := strconv.ParseInt(cfgValue, 10, 64)
		if err != nil {
			fmt.Printf("# %s int  %s=%v err=%v\n", configFileName, cfgKeyword, cfgValue, err)
		} else {
			newVal = int(i64) * factor
		}
	}
	if newVal != currentVal {
		isDefault := ""
		if newVal == defaultValue {
			isDefault = "*"
		}
		fmt.Printf("%s int  %s=%d %s\n", configFileName, cfgKeyword, newVal, isDefault)
	}
	currentVal = newVal
	return currentVal
}

func readIniString(configIni *ini.File, cfgKeyword string, currentVal string, defaultValue string) string {
	newVal := defaultValue
	cfgValue, ok := readIniEntry(configIni, cfgKeyword)
	if ok && cfgValue != "" {
		newVal = cfgValue
	}
	// don't log entries ending in 'Token'
	if newVal != currentVal && !strings.HasSuffix(cfgKeyword, "Token") {
		isDefault := ""
		if newVal == defaultValue {
			isDefault = "*"
		}
		fmt.Printf("%s str  %s=(%v) %s\n", configFileName, cfgKeyword, newVal, isDefault)
	}
	currentVal = newVal
	return currentVal
}

// readConfig() supports two types of config keywords
// those that are only evaluated once during startup (see "init")
// and those that are evaluated every time readConfig() is called
func readConfig(init bool) {
	configIni, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, configFileName)
	if err != nil {
		// ignore the read error and instead use the default values
		configIni = nil
	}

	readConfigLock.Lock()
	if init {
		httpPort = readIniInt(configIni, "httpPort", httpPort, 3000, 1)
		wsPort = readIniInt(configIni, "wsPort", wsPort, 3001, 1)
		wssPort = readIniInt(configIni, "wssPort", wssPort, 0, 1)
		insecureSkipVerify = readIniBoolean(configIni, "insecureSkipVerify", insecureSkipVerify, false)
		pprofPort = readIniInt(configIni, "pprofPort", pprofPort, 0, 1)
		timeLocationString = readIniString(configIni, "timeLocation", timeLocationString, "")
	}

	maintenanceMode = readIniBoolean(configIni, "maintenanceMode", maintenanceMode, false)

	botToken = readIniString(configIni, "botToken", botToken, "")
	webAppUrl = readIniString(configIni, "webAppUrl", webAppUrl, "")
	if botToken != "" {
		if telegramClient == nil || telegramClient.BotToken != botToken {
			telegramClient = telegram.NewClient(botToken)
		}
	} else {
		telegramClient = nil
	}

	maxClientRequestsPer30min = readIniInt(configIni,
		"maxClientRequestsPer30min", maxClientRequestsPer30min, 1800, 1)

	logevents = readIniString(configIni, "logevents", logevents, "")
	logeventSlice := strings.Split(logevents, ",")
	logeventMutex.Lock()
	logeventMap = make(map[string]bool)
	for _, s := range logeventSlice {
		logeventMap[strings.TrimSpace(s)] = true
	}
	logeventMutex.Unlock()

	readConfigLock.Unlock()
}
