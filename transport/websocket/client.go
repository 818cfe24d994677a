package websocket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"

	"github.com/tileplay/carcassonne/library/xgo"
)

var (
	errClosedRequest = errors.New("client: session not established")
	errMaxRetries    = errors.New("client: max retries reached")
	errInvalidURL    = errors.New("client: invalid URL")
)

// MessageHandler receives every inbound frame.
type MessageHandler func(data []byte)

type ClientOption func(*clientOptions)

func WithTlsConf(tlsConfig *tls.Config) ClientOption {
	return func(o *clientOptions) { o.tlsConf = tlsConfig }
}

func WithHeartbeat(d, i, w time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.session.ReadDeadline, o.session.PingInterval, o.session.WriteTimeout = d, i, w
	}
}

func WithSentChanSize(size int) ClientOption {
	return func(o *clientOptions) { o.session.SendChanSize = size }
}

func WithEndpoint(endpoint string) ClientOption {
	return func(o *clientOptions) { o.endpoint = endpoint }
}

// WithToken sends token as a bearer Authorization header on dial.
func WithToken(token string) ClientOption {
	return func(o *clientOptions) { o.token = token }
}

func WithConnectFunc(fn func(*Session)) ClientOption {
	return func(o *clientOptions) { o.connectFunc = fn }
}

func WithDisconnectFunc(disconnectFunc func(*Session)) ClientOption {
	return func(o *clientOptions) { o.disconnectFunc = disconnectFunc }
}

func WithMessageHandler(h MessageHandler) ClientOption {
	return func(o *clientOptions) { o.onMessage = h }
}

// WithRetryPolicy sets reconnect backoff. maxAttempt < 0 retries forever,
// 0 never retries.
func WithRetryPolicy(b, m time.Duration, maxAttempt int32) ClientOption {
	return func(o *clientOptions) {
		o.retryPolicy.baseDelay = b
		o.retryPolicy.maxDelay = m
		o.retryPolicy.maxAttempt = maxAttempt
	}
}

type clientOptions struct {
	ctx            context.Context
	tlsConf        *tls.Config
	endpoint       string
	token          string
	connectFunc    func(*Session)
	disconnectFunc func(*Session)
	onMessage      MessageHandler
	session        *SessionConfig
	retryPolicy    *retryPolicy
}

type retryPolicy struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxAttempt int32
}

// Client is a websocket client speaking JSON text frames.
type Client struct {
	opts       *clientOptions
	url        *url.URL
	mu         sync.RWMutex
	session    *Session
	retryCount atomic.Int32
	closing    atomic.Bool
}

// NewClient dials endpoint and returns a connected client.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	options := &clientOptions{
		ctx:      ctx,
		endpoint: "ws://0.0.0.0:3102/ws",
		session: &SessionConfig{
			WriteTimeout: 10 * time.Second,
			PingInterval: 10 * time.Second,
			ReadDeadline: 60 * time.Second,
			SendChanSize: 128,
		},
		retryPolicy: &retryPolicy{
			baseDelay:  3 * time.Second,
			maxDelay:   15 * time.Second,
			maxAttempt: 0,
		},
	}
	for _, o := range opts {
		o(options)
	}

	u, err := parseUrl(options.endpoint, options.tlsConf == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidURL, err)
	}

	c := &Client{opts: options, url: u}
	if err := c.Reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func parseUrl(endpoint string, insecure bool) (*url.URL, error) {
	if !strings.Contains(endpoint, "://") {
		if insecure {
			endpoint = "ws://" + endpoint
		} else {
			endpoint = "wss://" + endpoint
		}
	}
	return url.Parse(endpoint)
}

func (c *Client) IsAlive() bool {
	if c == nil {
		return false
	}
	sess := c.GetSession()
	return sess != nil && !sess.Closed()
}

func (c *Client) GetSession() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) canRetry() bool {
	if c.closing.Load() {
		return false
	}
	maxAttempt := c.opts.retryPolicy.maxAttempt
	switch {
	case maxAttempt < 0:
		return true
	case maxAttempt == 0:
		return false
	}
	return c.retryCount.Load() < maxAttempt
}

func (c *Client) Reconnect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.session.WriteTimeout,
		TLSClientConfig:  c.opts.tlsConf,
	}
	var header http.Header
	if c.opts.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.opts.token}}
	}

	for {
		select {
		case <-c.opts.ctx.Done():
			return c.opts.ctx.Err()
		default:
		}

		conn, _, err := dialer.DialContext(c.opts.ctx, c.url.String(), header)
		if err == nil {
			c.retryCount.Store(0)
			sess := NewSession(c, conn, c.opts.session, "")
			c.mu.Lock()
			c.session = sess
			c.mu.Unlock()
			return nil
		}

		curr := c.retryCount.Add(1)
		if !c.canRetry() {
			return fmt.Errorf("%w: %d attempts: %v", errMaxRetries, curr, err)
		}

		delay := c.calculateBackoff(curr)
		log.Warnf("reconnecting to %q. attempt=%d retrying in %v: %v", c.url, curr, delay, err)

		select {
		case <-time.After(delay):
		case <-c.opts.ctx.Done():
			return c.opts.ctx.Err()
		}
	}
}

func (c *Client) calculateBackoff(attempt int32) time.Duration {
	backoff := float64(c.opts.retryPolicy.baseDelay) * math.Pow(1.5, float64(attempt))
	backoff = math.Min(backoff, float64(c.opts.retryPolicy.maxDelay))
	return time.Duration(backoff * (0.9 + 0.2*rand.Float64()))
}

func (c *Client) OnSessionOpen(sess *Session) {
	if c.opts.connectFunc != nil {
		c.opts.connectFunc(sess)
	}
}

func (c *Client) OnSessionClose(sess *Session) {
	if c.opts.disconnectFunc != nil {
		c.opts.disconnectFunc(sess)
	}
	if c.canRetry() {
		go func() { _ = c.Reconnect() }()
	}
}

// Send marshals v to JSON and queues it as one text frame.
func (c *Client) Send(v any) error {
	sess := c.GetSession()
	if sess == nil || sess.Closed() {
		return errClosedRequest
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sess.Send(data)
}

func (c *Client) DispatchMessage(_ *Session, data []byte) {
	if h := c.opts.onMessage; h != nil {
		_ = xgo.SafeRun(func() error {
			h(data)
			return nil
		})
	}
}

// Close disconnects without reconnecting.
func (c *Client) Close() {
	c.closing.Store(true)
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s != nil {
		s.Close(true)
	}
}
