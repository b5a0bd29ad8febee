package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fitstash/reelbot/internal/chat"
)

// Outbound text longer than this is truncated; the Bot API rejects
// messages past 4096 characters.
const maxTextRunes = 3900

// Client is a minimal Telegram Bot API client implementing chat.Gateway.
type Client struct {
	apiBase    string
	httpClient *http.Client
}

var _ chat.Gateway = (*Client)(nil)

// NewClient creates a Telegram client for the given bot API base URL
// (e.g. "https://api.telegram.org/bot<token>").
func NewClient(apiBase string, requestTimeout time.Duration) *Client {
	return &Client{
		apiBase: apiBase,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Response is the generic Telegram API response wrapper.
type Response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
}

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message,omitempty"`
}

type tgMessage struct {
	MessageID int64   `json:"message_id"`
	Chat      tgChat  `json:"chat"`
	Text      *string `json:"text,omitempty"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgButton struct {
	Text string `json:"text"`
}

type tgReplyMarkup struct {
	Keyboard        [][]tgButton `json:"keyboard"`
	OneTimeKeyboard bool         `json:"one_time_keyboard"`
	ResizeKeyboard  bool         `json:"resize_keyboard"`
}

// GetUpdates calls the getUpdates API and maps text messages into gateway
// updates. Non-text updates are skipped.
func (c *Client) GetUpdates(offset int64, timeout int) ([]chat.Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeout))

	resp, err := c.httpClient.Get(c.apiBase + "/getUpdates?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read getUpdates response: %w", err)
	}

	var tgResp Response
	if err := json.Unmarshal(body, &tgResp); err != nil {
		return nil, fmt.Errorf("failed to parse getUpdates response: %w", err)
	}

	if !tgResp.OK {
		return nil, nil
	}

	var raws []tgUpdate
	if err := json.Unmarshal(tgResp.Result, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse getUpdates result: %w", err)
	}
	updates := make([]chat.Update, 0, len(raws))
	for _, ru := range raws {
		ev, ok := eventFromUpdate(ru)
		if !ok {
			// Still advance past non-text updates.
			updates = append(updates, chat.Update{UpdateID: ru.UpdateID})
			continue
		}
		updates = append(updates, chat.Update{UpdateID: ru.UpdateID, Event: ev})
	}
	return updates, nil
}

// DecodeUpdate parses a single webhook update body. ok is false when the
// update carries no text message to dispatch.
func DecodeUpdate(r io.Reader) (chat.Update, bool, error) {
	var ru tgUpdate
	if err := json.NewDecoder(r).Decode(&ru); err != nil {
		return chat.Update{}, false, fmt.Errorf("failed to parse webhook update: %w", err)
	}
	ev, ok := eventFromUpdate(ru)
	return chat.Update{UpdateID: ru.UpdateID, Event: ev}, ok, nil
}

func eventFromUpdate(ru tgUpdate) (chat.Event, bool) {
	if ru.Message == nil || ru.Message.Text == nil {
		return chat.Event{}, false
	}
	text := strings.TrimSpace(*ru.Message.Text)
	if text == "" {
		return chat.Event{}, false
	}
	return chat.Event{
		ChatID:    ru.Message.Chat.ID,
		MessageID: ru.Message.MessageID,
		Text:      text,
	}, true
}

// Send sends a plain text message to the given chat and returns the sent
// message's id. Empty or whitespace-only text is suppressed without a call.
func (c *Client) Send(chatID int64, text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, nil
	}
	payload := map[string]any{
		"chat_id": chatID,
		"text":    truncate(trimmed, maxTextRunes),
	}
	result, err := c.post("sendMessage", payload)
	if err != nil {
		return 0, err
	}
	var msg tgMessage
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("failed to parse sendMessage result: %w", err)
	}
	return msg.MessageID, nil
}

// SendKeyboard sends a text message with a reply keyboard grid.
func (c *Client) SendKeyboard(chatID int64, text string, kb chat.Keyboard) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	rows := make([][]tgButton, 0, len(kb.Rows))
	for _, labels := range kb.Rows {
		row := make([]tgButton, 0, len(labels))
		for _, l := range labels {
			row = append(row, tgButton{Text: l})
		}
		rows = append(rows, row)
	}
	payload := map[string]any{
		"chat_id": chatID,
		"text":    truncate(trimmed, maxTextRunes),
		"reply_markup": tgReplyMarkup{
			Keyboard:        rows,
			OneTimeKeyboard: kb.OneShot,
			ResizeKeyboard:  true,
		},
	}
	_, err := c.post("sendMessage", payload)
	return err
}

// DeleteMessage deletes one message. The API rejecting the deletion
// (already gone, too old) surfaces as an error for the caller to journal.
func (c *Client) DeleteMessage(chatID int64, messageID int64) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	_, err := c.post("deleteMessage", payload)
	return err
}

// SetWebhook registers the public webhook URL for update delivery.
func (c *Client) SetWebhook(publicURL string) error {
	_, err := c.post("setWebhook", map[string]any{"url": publicURL})
	return err
}

func (c *Client) post(method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram %s marshal failed: %w", method, err)
	}
	resp, err := c.httpClient.Post(
		c.apiBase+"/"+method,
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}
	var tgResp Response
	if err := json.Unmarshal(respBody, &tgResp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if !tgResp.OK {
		return nil, fmt.Errorf("telegram %s rejected: %s", method, tgResp.Description)
	}
	return tgResp.Result, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
