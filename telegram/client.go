// Zvonki Copyright 2026 zvonki.app. All rights reserved.
//
// Minimal Telegram Bot API client. The server only needs sendMessage
// with an optional web_app inline keyboard button (the deep link that
// opens the Mini App ready-to-call). https://core.telegram.org/bots/api
package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"
)

const API_BASE string = "https://api.telegram.org"

var ErrNoBotToken = errors.New("no bot token")

type Client struct {
	HttpCli  *http.Client
	BotToken string
	ApiBase  string // overridable for testing; defaults to API_BASE
}

func NewClient(botToken string) *Client {
	return &Client{
		HttpCli:  &http.Client{Timeout: 10 * time.Second},
		BotToken: botToken,
		ApiBase:  API_BASE,
	}
}

type webAppInfo struct {
	Url string `json:"url"`
}

type inlineKeyboardButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatId      string                `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	Ok          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendMessage posts a HTML-formatted message to chatId. If webAppUrl is
// set, the message carries one inline keyboard button (buttonText) that
// opens webAppUrl as a Telegram web app.
func (c *Client) SendMessage(chatId string, text string, buttonText string, webAppUrl string) error {
	if c.BotToken == "" {
		return ErrNoBotToken
	}

	req := sendMessageRequest{
		ChatId:    chatId,
		Text:      text,
		ParseMode: "HTML",
	}
	if webAppUrl != "" {
		req.ReplyMarkup = &inlineKeyboardMarkup{
			InlineKeyboard: [][]inlineKeyboardButton{
				{{Text: buttonText, WebApp: &webAppInfo{Url: webAppUrl}}},
			},
		}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	apiBase := c.ApiBase
	if apiBase == "" {
		apiBase = API_BASE
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", apiBase, c.BotToken)

	httpCli := c.HttpCli
	if httpCli == nil {
		httpCli = &http.Client{Timeout: 10 * time.Second}
	}
	response, err := httpCli.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer response.Body.Close()
	body, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return err
	}

	var apiResp apiResponse
	err = json.Unmarshal(body, &apiResp)
	if err != nil {
		return fmt.Errorf("sendMessage status=%d unparseable response (%s)", response.StatusCode, body)
	}
	if !apiResp.Ok {
		return fmt.Errorf("sendMessage error_code=%d (%s)", apiResp.ErrorCode, apiResp.Description)
	}
	return nil
}
