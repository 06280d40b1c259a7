package httpapi

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	optionsvc "github.com/covenant-network/option-layer/internal/app/services/option"
)

func dialHub(t *testing.T, server *httptest.Server, hub *Hub, want int) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	for i := 0; i < 100 && hub.SubscriberCount() < want; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.SubscriberCount() < want {
		t.Fatalf("subscriber never registered")
	}
	return conn
}

func TestHub_ConcurrentPublish(t *testing.T) {
	api := newTestAPI(t, nil)
	server := httptest.NewServer(api.handler)
	defer server.Close()

	conn := dialHub(t, server, api.hub, 1)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	const events = 20
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			api.hub.Publish(optionsvc.Event{Action: "create", Height: 100})
		}()
	}
	wg.Wait()

	for i := 0; i < events; i++ {
		var ev struct {
			Action string `json:"action"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if ev.Action != "create" {
			t.Fatalf("event %d action = %q, want create", i, ev.Action)
		}
	}
	if api.hub.SubscriberCount() != 1 {
		t.Fatalf("subscriber dropped during publish")
	}
}

func TestHub_FanOut(t *testing.T) {
	api := newTestAPI(t, nil)
	server := httptest.NewServer(api.handler)
	defer server.Close()

	first := dialHub(t, server, api.hub, 1)
	second := dialHub(t, server, api.hub, 2)

	api.hub.Publish(optionsvc.Event{Action: "burn", Height: 250})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev struct {
			Action string `json:"action"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Action != "burn" {
			t.Fatalf("action = %q, want burn", ev.Action)
		}
	}
}
