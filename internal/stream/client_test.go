package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/alphalab-research/alphalab/models"
)

// mockWSServer runs handler against each upgraded connection.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// acceptAuth plays the server side of the handshake: consume the auth
// action, confirm it, then consume the subscribe action.
func acceptAuth(t *testing.T, conn *websocket.Conn, wantKey, wantTopics string) bool {
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Logf("read auth: %v", err)
		return false
	}
	var act action
	if err := json.Unmarshal(data, &act); err != nil || act.Action != actionAuth {
		t.Errorf("first action = %s, want auth", data)
		return false
	}
	if act.Params != wantKey {
		t.Errorf("auth params = %q, want %q", act.Params, wantKey)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`[{"ev":"status","status":"connected","message":"Connected Successfully"}]`))
	conn.WriteMessage(websocket.TextMessage, []byte(`[{"ev":"status","status":"auth_success"}]`))

	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Logf("read subscribe: %v", err)
		return false
	}
	if err := json.Unmarshal(data, &act); err != nil || act.Action != actionSubscribe {
		t.Errorf("second action = %s, want subscribe", data)
		return false
	}
	if act.Params != wantTopics {
		t.Errorf("subscribe params = %q, want %q", act.Params, wantTopics)
	}
	return true
}

func TestEventBar(t *testing.T) {
	tests := []struct {
		name       string
		ev         event
		wantSymbol string
		wantOK     bool
	}{
		{
			name:       "stock aggregate",
			ev:         event{Ev: "AM", Symbol: "AAPL", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100, VWAP: 1.2, StartMS: 1610144640000},
			wantSymbol: "AAPL",
			wantOK:     true,
		},
		{
			name:       "forex aggregate",
			ev:         event{Ev: "CA", Pair: "EUR/USD", Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 20, StartMS: 1610144640000},
			wantSymbol: "EURUSD",
			wantOK:     true,
		},
		{
			name:   "status frame",
			ev:     event{Ev: "status", Status: "success"},
			wantOK: false,
		},
		{
			name:   "unknown event type",
			ev:     event{Ev: "T", Symbol: "AAPL", StartMS: 1610144640000},
			wantOK: false,
		},
		{
			name:   "aggregate without timestamp",
			ev:     event{Ev: "AM", Symbol: "AAPL"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb, ok := tt.ev.bar()
			if ok != tt.wantOK {
				t.Fatalf("bar() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if sb.Symbol != tt.wantSymbol {
				t.Errorf("bar() symbol = %q, want %q", sb.Symbol, tt.wantSymbol)
			}
			if sb.Bar.Time != time.UnixMilli(tt.ev.StartMS).UTC() {
				t.Errorf("bar() time = %v, want %v", sb.Bar.Time, time.UnixMilli(tt.ev.StartMS).UTC())
			}
			if sb.Bar.Close != tt.ev.Close {
				t.Errorf("bar() close = %v, want %v", sb.Bar.Close, tt.ev.Close)
			}
		})
	}
}

func TestDecodeEventsMixedFrame(t *testing.T) {
	frame := `[{"ev":"status","status":"success","message":"subscribed to: AM.AAPL"},` +
		`{"ev":"AM","sym":"AAPL","o":181.5,"h":182,"l":181.2,"c":181.8,"v":52000,"vw":181.7,"s":1610144640000,"e":1610144700000}]`

	events, err := decodeEvents([]byte(frame))
	if err != nil {
		t.Fatalf("decodeEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("decodeEvents() returned %d events, want 2", len(events))
	}
	if events[0].Ev != "status" {
		t.Errorf("events[0].Ev = %q, want status", events[0].Ev)
	}
	if events[1].Symbol != "AAPL" || events[1].Close != 181.8 {
		t.Errorf("events[1] = %+v, want AAPL close 181.8", events[1])
	}

	if _, err := decodeEvents([]byte(`{"not":"an array"}`)); err == nil {
		t.Error("decodeEvents() on non-array frame expected error, got nil")
	}
}

func TestClientConnectHandshake(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if !acceptAuth(t, conn, "test-key", "AM.AAPL,AM.MSFT") {
			return
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	cfg := Config{URL: wsURL(server), APIKey: "test-key", Topics: []string{"AM.AAPL", "AM.MSFT"}}
	client := NewClient(cfg, zerolog.Nop())

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClientConnectAuthFailed(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"ev":"status","status":"auth_failed","message":"invalid api key"}]`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	cfg := Config{URL: wsURL(server), APIKey: "bad-key", Topics: []string{"AM.AAPL"}}
	client := NewClient(cfg, zerolog.Nop())

	err := client.Connect(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Connect() error = %v, want ErrAuthFailed", err)
	}
}

func TestClientConnectRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{APIKey: "k", Topics: []string{"AM.AAPL"}}},
		{"missing key", Config{URL: "ws://localhost:1", Topics: []string{"AM.AAPL"}}},
		{"no topics", Config{URL: "ws://localhost:1", APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.cfg, zerolog.Nop())
			if err := client.Connect(context.Background()); err == nil {
				t.Error("Connect() expected error, got nil")
			}
		})
	}
}

func TestClientListenDeliversBars(t *testing.T) {
	frame := `[{"ev":"AM","sym":"AAPL","o":181.5,"h":182,"l":181.2,"c":181.8,"v":52000,"vw":181.7,"s":1610144640000,"e":1610144700000},` +
		`{"ev":"CA","pair":"EUR/USD","o":1.1,"h":1.2,"l":1.0,"c":1.15,"v":20,"s":1610144640000,"e":1610144700000}]`

	server := mockWSServer(t, func(conn *websocket.Conn) {
		if !acceptAuth(t, conn, "test-key", "AM.AAPL") {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(time.Second)
	})
	defer server.Close()

	cfg := Config{URL: wsURL(server), APIKey: "test-key", Topics: []string{"AM.AAPL"}}
	client := NewClient(cfg, zerolog.Nop())

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bars := make(chan models.SymbolBar, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Listen(ctx, func(sb models.SymbolBar) { bars <- sb })
	}()

	var got []models.SymbolBar
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case sb := <-bars:
			got = append(got, sb)
		case <-timeout:
			t.Fatalf("timeout waiting for bars, received %d of 2", len(got))
		}
	}

	if got[0].Symbol != "AAPL" || got[0].Bar.Close != 181.8 {
		t.Errorf("first bar = %s close %v, want AAPL close 181.8", got[0].Symbol, got[0].Bar.Close)
	}
	if got[1].Symbol != "EURUSD" || got[1].Bar.Volume != 20 {
		t.Errorf("second bar = %s volume %v, want EURUSD volume 20", got[1].Symbol, got[1].Bar.Volume)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Listen() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Listen() did not return after cancel")
	}
}

func TestManagerAuthFailureIsFatal(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"ev":"status","status":"auth_failed","message":"invalid api key"}]`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	cfg := Config{URL: wsURL(server), APIKey: "bad-key", Topics: []string{"AM.AAPL"}}
	m := NewManager(cfg, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- m.Run(context.Background(), func(models.SymbolBar) {})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("Run() error = %v, want ErrAuthFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() kept retrying after auth failure")
	}
}

func TestManagerStopsOnCancel(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if !acceptAuth(t, conn, "test-key", "AM.AAPL") {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := Config{URL: wsURL(server), APIKey: "test-key", Topics: []string{"AM.AAPL"}}
	m := NewManager(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, func(models.SymbolBar) {})
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Run() did not return after cancel")
	}
}
