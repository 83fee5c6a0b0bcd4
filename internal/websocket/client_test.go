package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/atcrelay/agent/internal/aviation"
	"github.com/atcrelay/agent/internal/executor"
	"github.com/atcrelay/agent/internal/handlers"
	"github.com/atcrelay/agent/internal/parser"
	"github.com/atcrelay/agent/internal/pipeline"
	"github.com/atcrelay/agent/internal/registry"
	"github.com/atcrelay/agent/internal/resolver"
	"github.com/atcrelay/agent/internal/sim"
)

const (
	testID       = "3f1c2a9e-0000-4000-8000-000000000001"
	testPassword = "hunter2"
)

func checkAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if r.URL.Path != "/ws/open" {
		t.Errorf("path %q", r.URL.Path)
	}
	q := r.URL.Query()
	if q.Get("authorization") != testID || q.Get("password") != testPassword {
		t.Errorf("query %q", r.URL.RawQuery)
	}
}

func newClient(url string, q Submitter, onState func(bool)) *Client {
	return New(Options{
		ServerURL:      url,
		InstallationID: testID,
		Password:       testPassword,
		ReconnectDelay: 10 * time.Millisecond,
		OnConnState:    onState,
	}, q, nil)
}

func runClient(t *testing.T, c *Client) (cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- c.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, ch
}

func newPipeline(t *testing.T) *pipeline.Queue {
	t.Helper()
	ap, err := aviation.ParseAirport([]byte(`
icao: KSEA
runways:
  - {id: 16L, heading: 163, length_ft: 11901}
`))
	if err != nil {
		t.Fatal(err)
	}
	w := sim.NewWorld(ap)
	ex := executor.New(nil)
	handlers.NewAircraft().Register(ex)
	handlers.NewSystem(w).Register(ex)

	q := pipeline.New(parser.New(), resolver.New(registry.New(w)), ex, nil, nil, pipeline.Options{
		Sleep: func(context.Context, time.Duration) {},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q
}

func TestRunwayDetailsRoundTrip(t *testing.T) {
	replies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkAuth(t, r)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if err := conn.Write(ctx, websocket.MessageText, []byte(`{"command":"rd","correlation_id":"x1"}`)); err != nil {
			t.Error(err)
			return
		}
		_, b, err := conn.Read(ctx)
		if err != nil {
			return
		}
		select {
		case replies <- string(b):
		default:
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	c := newClient(srv.URL, newPipeline(t), nil)
	runClient(t, c)

	select {
	case got := <-replies:
		want := `{"correlation_id":"x1","success":true,"message":{"icao":"KSEA","runways":` +
			`{"16L":{"heading":163,"length_ft":11901,"occupied":false,"occupied_by":[]}}}}`
		if got != want {
			t.Errorf("got  %s\nwant %s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
}

func TestMalformedFrameAnswered(t *testing.T) {
	replies := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		conn.Write(ctx, websocket.MessageText, []byte(`{"correlation_id":"x9"}`))
		_, b, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m map[string]any
		json.Unmarshal(b, &m)
		select {
		case replies <- m:
		default:
		}
	}))
	defer srv.Close()

	runClient(t, newClient(srv.URL, newPipeline(t), nil))

	select {
	case m := <-replies:
		if m["correlation_id"] != "x9" || m["success"] != false {
			t.Errorf("reply %v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
}

func TestAuthRejectedByCloseCode(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Close(StatusAuthRejected, "bad password")
	}))
	defer srv.Close()

	_, done := runClient(t, newClient(srv.URL, newPipeline(t), nil))
	select {
	case err := <-done:
		if !errors.Is(err, ErrAuthRejected) {
			t.Errorf("got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client kept running")
	}
	if n := dials.Load(); n != 1 {
		t.Errorf("%d dials after rejection", n)
	}
}

func TestAuthRejectedAtHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, done := runClient(t, newClient(srv.URL, newPipeline(t), nil))
	select {
	case err := <-done:
		if !errors.Is(err, ErrAuthRejected) {
			t.Errorf("got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client kept running")
	}
}

// heldSubmitter records submissions without processing them.
type heldSubmitter struct {
	mu     sync.Mutex
	origin pipeline.Origin
	tokens chan pipeline.Token
}

func (h *heldSubmitter) Submit(origin pipeline.Origin, tok pipeline.Token, _ string) {
	h.mu.Lock()
	h.origin = origin
	h.mu.Unlock()
	h.tokens <- tok
}

func TestReplyFlushedAfterReconnect(t *testing.T) {
	var conns atomic.Int32
	replies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		if n == 1 {
			conn.Write(ctx, websocket.MessageText, []byte(`{"command":"roster","correlation_id":"x1"}`))
			// Drop the connection before any reply.
			conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		_, b, err := conn.Read(ctx)
		if err != nil {
			return
		}
		select {
		case replies <- string(b):
		default:
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	sub := &heldSubmitter{tokens: make(chan pipeline.Token, 4)}
	down := make(chan struct{}, 4)
	c := newClient(srv.URL, sub, func(up bool) {
		if !up {
			select {
			case down <- struct{}{}:
			default:
			}
		}
	})
	runClient(t, c)

	var tok pipeline.Token
	select {
	case tok = <-sub.tokens:
	case <-time.After(5 * time.Second):
		t.Fatal("instruction not submitted")
	}
	select {
	case <-down:
	case <-time.After(5 * time.Second):
		t.Fatal("first connection never dropped")
	}

	sub.mu.Lock()
	origin := sub.origin
	sub.mu.Unlock()
	origin.Deliver(pipeline.Outcome{Token: tok, Success: true, Message: "ok"})

	select {
	case got := <-replies:
		if got != `{"correlation_id":"x1","success":true,"message":"ok"}` {
			t.Errorf("got %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reply not flushed after reconnect")
	}
}

func TestDialURL(t *testing.T) {
	c := newClient("ws://localhost:8000", nil, nil)
	got, err := c.dialURL()
	if err != nil {
		t.Fatal(err)
	}
	want := "ws://localhost:8000/ws/open?authorization=" + testID + "&password=" + testPassword
	if got != want {
		t.Errorf("got %s", got)
	}
}

func TestOutboxDropDuringWriteKeepsUnsent(t *testing.T) {
	c := newClient("ws://localhost:8000", nil, nil)
	for i := range maxOutbox {
		c.enqueue([]byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	// The head is being written when one more reply arrives and the full
	// outbox drops it.
	writing, ok := c.head()
	if !ok {
		t.Fatal("empty outbox")
	}
	c.enqueue([]byte(`{"n":"late"}`))
	c.sent(writing.seq)

	if n := c.Pending(); n != maxOutbox {
		t.Fatalf("pending %d, want %d", n, maxOutbox)
	}
	next, _ := c.head()
	if string(next.frame) != `{"n":1}` {
		t.Errorf("head %s, want the first unsent reply", next.frame)
	}

	c.sent(next.seq)
	if n := c.Pending(); n != maxOutbox-1 {
		t.Errorf("pending %d after sending head", n)
	}
}
