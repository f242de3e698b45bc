// Zvonki Copyright 2026 zvonki.app. All rights reserved.
package telegram

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessageRequestShape(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = ioutil.ReadAll(r.Body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cli := NewClient("123:abc")
	cli.ApiBase = srv.URL
	err := cli.SendMessage("77", "<b>hi</b>", "Open", "https://zvonki.example/app")
	if err != nil {
		t.Fatalf("SendMessage err=%v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %s", gotPath)
	}

	var req struct {
		ChatId      string `json:"chat_id"`
		Text        string `json:"text"`
		ParseMode   string `json:"parse_mode"`
		ReplyMarkup *struct {
			InlineKeyboard [][]struct {
				Text   string `json:"text"`
				WebApp struct {
					Url string `json:"url"`
				} `json:"web_app"`
			} `json:"inline_keyboard"`
		} `json:"reply_markup"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("bad body %s: %v", gotBody, err)
	}
	if req.ChatId != "77" || req.Text != "<b>hi</b>" || req.ParseMode != "HTML" {
		t.Errorf("req = %+v", req)
	}
	if req.ReplyMarkup == nil || len(req.ReplyMarkup.InlineKeyboard) != 1 {
		t.Fatalf("keyboard missing")
	}
	btn := req.ReplyMarkup.InlineKeyboard[0][0]
	if btn.Text != "Open" || btn.WebApp.Url != "https://zvonki.example/app" {
		t.Errorf("button = %+v", btn)
	}
}

func TestSendMessageNoKeyboardWithoutUrl(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = ioutil.ReadAll(r.Body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cli := NewClient("123:abc")
	cli.ApiBase = srv.URL
	if err := cli.SendMessage("77", "hi", "Open", ""); err != nil {
		t.Fatalf("SendMessage err=%v", err)
	}
	if strings.Contains(string(gotBody), "reply_markup") {
		t.Errorf("reply_markup sent without a webAppUrl: %s", gotBody)
	}
}

func TestSendMessageApiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	cli := NewClient("123:abc")
	cli.ApiBase = srv.URL
	err := cli.SendMessage("77", "hi", "", "")
	if err == nil {
		t.Fatalf("SendMessage did not report the api error")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want error_code 403 mentioned", err)
	}
}

func TestSendMessageNoToken(t *testing.T) {
	cli := NewClient("")
	if err := cli.SendMessage("77", "hi", "", ""); err != ErrNoBotToken {
		t.Fatalf("err = %v, want ErrNoBotToken", err)
	}
}
