// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// When a call target is not connected, we ping it out-of-band through
// the Telegram bot, so the user can open the Mini App and pick up.
// NotifyMgr.TryConsume() is the per-target cooldown gate: the check and
// the timestamp update happen in one atomic step, so two concurrent
// calls to the same offline target can not both pass. The actual bot
// request runs in its own goroutine, strictly after the gate; a failed
// delivery is logged and otherwise ignored.

package main

import (
	"fmt"
	"sync"
	"time"
)

const notifyCooldownSecs = 120 // min secs between notifications to same user

type NotifyMgr struct {
	mutex        sync.Mutex
	lastNotified map[string]time.Time // userID -> last notification timestamp
}

func NewNotifyMgr() *NotifyMgr {
	return &NotifyMgr{
		lastNotified: make(map[string]time.Time),
	}
}

// TryConsume reports whether a notification to targetUserID may fire
// now. If the cooldown has elapsed (or the target was never notified),
// now is recorded as the new last-notified time and allowed=true is
// returned. Otherwise nothing is recorded and retryAfter tells how long
// the cooldown still runs.
func (nm *NotifyMgr) TryConsume(targetUserID string, now time.Time) (bool, time.Duration) {
	nm.mutex.Lock()
	defer nm.mutex.Unlock()
	last, ok := nm.lastNotified[targetUserID]
	if ok {
		elapsed := now.Sub(last)
		if elapsed < notifyCooldownSecs*time.Second {
			return false, notifyCooldownSecs*time.Second - elapsed
		}
	}
	nm.lastNotified[targetUserID] = now
	return true, 0
}

// notifyOfflineUser sends the throttled "incoming call" bot message to
// targetUserID. Fire-and-forget: the router never waits for (or learns
// about) the delivery outcome.
func notifyOfflineUser(targetUserID string, caller UserProfile) {
	readConfigLock.RLock()
	botCli := telegramClient
	myWebAppUrl := webAppUrl
	readConfigLock.RUnlock()
	if botCli == nil || botCli.BotToken == "" {
		return
	}

	allowed, retryAfter := notifyMgr.TryConsume(targetUserID, time.Now())
	if !allowed {
		if logWantedFor("notify") {
			fmt.Printf("notify (%s) rate limited (cooldown %ds)\n",
				targetUserID, int(retryAfter.Seconds()+0.999))
		}
		return
	}

	callerName := caller.displayName()
	text := fmt.Sprintf("📞 Входящий звонок от <b>%s</b>!\n\nОткройте приложение, чтобы принять.",
		callerName)

	go func() {
		err := botCli.SendMessage(targetUserID, text, "📞 Открыть Звонки", myWebAppUrl)
		if err != nil {
			fmt.Printf("# notify (%s) from=(%s) send err=%v\n", targetUserID, caller.Id, err)
			return
		}
		if logWantedFor("notify") {
			fmt.Printf("notify (%s) from=(%s) sent\n", targetUserID, caller.Id)
		}
		statsMutex.Lock()
		numberOfNotificationsToday++
		statsMutex.Unlock()
	}()
}
