package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fitstash/reelbot/internal/chat"
)

type recordingDispatcher struct {
	events []chat.Event
}

func (d *recordingDispatcher) HandleEvent(ev chat.Event) error {
	d.events = append(d.events, ev)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingDispatcher) {
	t.Helper()
	dispatcher := &recordingDispatcher{}
	srv := httptest.NewServer(New("secret-token", dispatcher).Router())
	t.Cleanup(srv.Close)
	return srv, dispatcher
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWebhook_DispatchesUpdate(t *testing.T) {
	srv, dispatcher := newTestServer(t)

	body := `{"update_id":12,"message":{"message_id":34,"chat":{"id":56},"text":" hello "}}`
	resp, err := http.Post(srv.URL+"/webhook/secret-token", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected 1 dispatched event, got %d", len(dispatcher.events))
	}
	ev := dispatcher.events[0]
	if ev.ChatID != 56 || ev.MessageID != 34 || ev.Text != "hello" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWebhook_WrongSecret(t *testing.T) {
	srv, dispatcher := newTestServer(t)

	body := `{"update_id":12,"message":{"message_id":34,"chat":{"id":56},"text":"hello"}}`
	resp, err := http.Post(srv.URL+"/webhook/wrong", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("expected no dispatched events, got %d", len(dispatcher.events))
	}
}

func TestWebhook_TextlessUpdateIgnored(t *testing.T) {
	srv, dispatcher := newTestServer(t)

	body := `{"update_id":12,"message":{"message_id":34,"chat":{"id":56}}}`
	resp, err := http.Post(srv.URL+"/webhook/secret-token", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("expected no dispatched events, got %d", len(dispatcher.events))
	}
}

func TestWebhook_MalformedBodyStillOK(t *testing.T) {
	srv, dispatcher := newTestServer(t)

	resp, err := http.Post(srv.URL+"/webhook/secret-token", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("expected no dispatched events, got %d", len(dispatcher.events))
	}
}
