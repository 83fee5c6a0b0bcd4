package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/atcrelay/agent/internal/config"
	"github.com/atcrelay/agent/internal/log"
	"github.com/atcrelay/agent/internal/pipeline"
	"github.com/atcrelay/agent/internal/protocol"
)

const (
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
	readLimit         = 64 << 10
	maxOutbox         = 256

	// StatusAuthRejected is the close code the server uses when the
	// installation id or password is not accepted.
	StatusAuthRejected websocket.StatusCode = 4001
)

// ErrAuthRejected is terminal: Run does not reconnect after it.
var ErrAuthRejected = errors.New("authentication rejected by server")

// Submitter admits instructions; *pipeline.Queue implements it.
type Submitter interface {
	Submit(origin pipeline.Origin, tok pipeline.Token, text string)
}

type Options struct {
	ServerURL      string
	InstallationID string
	Password       string
	ReconnectDelay time.Duration

	// OnConnState, when set, is called as the connection comes up and
	// goes down.
	OnConnState func(connected bool)
}

// Client holds one connection to the remote controller at a time. It
// feeds inbound instructions to the queue and is itself the origin that
// outcomes for those instructions are delivered to.
type Client struct {
	opts  Options
	queue Submitter
	lg    *log.Logger

	mu      sync.Mutex
	outbox  []reply
	nextSeq uint64
	flush   chan struct{}
}

// reply is an encoded outbound frame. seq identifies it in the outbox
// across the unlocked write.
type reply struct {
	seq   uint64
	frame []byte
}

func New(opts Options, q Submitter, lg *log.Logger) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = config.DefaultReconnectDelay
	}
	return &Client{
		opts:  opts,
		queue: q,
		lg:    lg.With(slog.String("component", "ws")),
		flush: make(chan struct{}, 1),
	}
}

// Run connects and reconnects after a fixed delay until ctx is done or the
// server rejects the credentials.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrAuthRejected) {
			c.lg.Error("authentication rejected, not reconnecting")
			return err
		}
		c.lg.Warn("disconnected", slog.Any("error", err), slog.Duration("retry_in", c.opts.ReconnectDelay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// Deliver queues the reply frame for an outcome. Replies produced while
// disconnected are sent once the connection is back.
func (c *Client) Deliver(o pipeline.Outcome) {
	frame, err := protocol.NewOutbound(o).Encode()
	if err != nil {
		c.lg.Error("encode reply", slog.String("token", string(o.Token)), slog.Any("error", err))
		if frame, err = protocol.Failure(string(o.Token), errors.New("internal error")).Encode(); err != nil {
			return
		}
	}
	c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) {
	c.mu.Lock()
	if len(c.outbox) >= maxOutbox {
		c.outbox = c.outbox[1:]
		c.lg.Warn("outbox full, dropping oldest reply")
	}
	c.nextSeq++
	c.outbox = append(c.outbox, reply{seq: c.nextSeq, frame: frame})
	c.mu.Unlock()

	select {
	case c.flush <- struct{}{}:
	default:
	}
}

// Pending returns the number of replies waiting for a connection.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outbox)
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.opts.ServerURL)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	u = u.JoinPath("ws", "open")
	q := url.Values{}
	q.Set("authorization", c.opts.InstallationID)
	q.Set("password", c.opts.Password)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) setConnected(up bool) {
	if c.opts.OnConnState != nil {
		c.opts.OnConnState(up)
	}
}

func (c *Client) connect(ctx context.Context) error {
	u, err := c.dialURL()
	if err != nil {
		return err
	}

	conn, resp, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return ErrAuthRejected
		}
		return err
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	c.lg.Info("connected", slog.String("server", c.opts.ServerURL))
	c.setConnected(true)
	defer c.setConnected(false)

	// Reads use their own context: cancelling a read context closes the
	// connection, and replies still need flushing on shutdown.
	connCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recvErr := make(chan error, 1)
	go c.readLoop(connCtx, conn, recvErr)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	if err := c.flushOutbox(connCtx, conn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := c.flushOutbox(connCtx, conn); err != nil {
				c.lg.Warn("flush on shutdown", slog.Any("error", err), slog.Int("unsent", c.Pending()))
			}
			conn.Close(websocket.StatusNormalClosure, "shutting down")
			return nil
		case err := <-recvErr:
			if websocket.CloseStatus(err) == StatusAuthRejected {
				return ErrAuthRejected
			}
			return err
		case <-c.flush:
			if err := c.flushOutbox(connCtx, conn); err != nil {
				return err
			}
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(connCtx, writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, errc chan<- error) {
	for {
		typ, b, err := conn.Read(ctx)
		if err != nil {
			errc <- err
			return
		}
		if typ != websocket.MessageText {
			c.lg.Warn("ignoring binary frame", slog.Int("bytes", len(b)))
			continue
		}

		in, err := protocol.DecodeInbound(b)
		if err != nil {
			c.lg.Warn("bad frame", slog.Any("error", err), slog.String("correlation_id", in.CorrelationID))
			if in.CorrelationID != "" {
				if frame, err := protocol.Failure(in.CorrelationID, err).Encode(); err == nil {
					c.enqueue(frame)
				}
			}
			continue
		}

		c.lg.Debug("instruction received", slog.String("correlation_id", in.CorrelationID),
			slog.String("command", in.Command))
		c.queue.Submit(c, pipeline.Token(in.CorrelationID), in.Command)
	}
}

func (c *Client) head() (reply, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbox) == 0 {
		return reply{}, false
	}
	return c.outbox[0], true
}

// sent removes the reply with the given seq. It may already be gone if
// enqueue dropped it while it was being written.
func (c *Client) sent(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.outbox {
		if r.seq == seq {
			c.outbox = append(c.outbox[:i:i], c.outbox[i+1:]...)
			return
		}
	}
}

// flushOutbox writes queued replies in order. A reply leaves the outbox
// only once written.
func (c *Client) flushOutbox(ctx context.Context, conn *websocket.Conn) error {
	for {
		r, ok := c.head()
		if !ok {
			return nil
		}

		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := conn.Write(wctx, websocket.MessageText, r.frame)
		cancel()
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		c.sent(r.seq)
	}
}
