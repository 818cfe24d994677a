package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	_ transport.Server     = (*Server)(nil)
	_ transport.Endpointer = (*Server)(nil)
)

// Handler receives connection events and inbound frames.
type Handler interface {
	OnSessionOpen(sess *Session)
	OnSessionClose(sess *Session)
	OnMessage(ctx context.Context, sess *Session, data []byte)
}

type sessionKey struct{}

// NewContext returns a child of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext returns the session stored in ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok
}

// ServerOption is a Websocket server option.
type ServerOption func(*Server)

func Network(network string) ServerOption {
	return func(o *Server) { o.network = network }
}
func Address(addr string) ServerOption {
	return func(o *Server) { o.address = addr }
}
func Path(path string) ServerOption {
	return func(o *Server) { o.path = path }
}
func TlsConf(tlsConfig *tls.Config) ServerOption {
	return func(o *Server) { o.tlsConf = tlsConfig }
}
func MaxConnLimit(maxConnLimit int32) ServerOption {
	return func(o *Server) { o.maxConnLimit = maxConnLimit }
}
func Heartbeat(d, i, w time.Duration) ServerOption {
	return func(o *Server) {
		o.sessionConf.ReadDeadline, o.sessionConf.PingInterval, o.sessionConf.WriteTimeout = d, i, w
	}
}
func SentChanSize(size int) ServerOption {
	return func(o *Server) { o.sessionConf.SendChanSize = size }
}
func ReadLimit(n int64) ServerOption {
	return func(o *Server) { o.sessionConf.ReadLimit = n }
}

// RateLimit caps inbound frames per connection; excess frames are dropped.
func RateLimit(perSecond float64, burst int) ServerOption {
	return func(o *Server) {
		o.sessionConf.RateLimit, o.sessionConf.RateBurst = rate.Limit(perSecond), burst
	}
}

// Auth rejects upgrades the authenticator refuses.
func Auth(a Authenticator) ServerOption {
	return func(o *Server) { o.auth = a }
}

// Server is a Websocket server wrapper.
type Server struct {
	*http.Server
	baseCtx      context.Context
	lis          net.Listener
	tlsConf      *tls.Config
	endpoint     *url.URL
	err          error
	path         string
	network      string
	address      string
	maxConnLimit int32
	sessionConf  *SessionConfig
	auth         Authenticator
	upgrader     *websocket.Upgrader
	sessionMgr   *SessionManager
	h            Handler
}

// NewServer creates a Websocket server by options.
func NewServer(opts ...ServerOption) *Server {
	srv := &Server{
		baseCtx: context.Background(),
		network: "tcp",
		address: ":0",
		path:    "/ws",
		sessionConf: &SessionConfig{
			WriteTimeout: 10 * time.Second,
			PingInterval: 15 * time.Second,
			ReadDeadline: 60 * time.Second,
			SendChanSize: 128,
			ReadLimit:    64 << 10,
		},
		maxConnLimit: 10000,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessionMgr: NewSessionManager(),
	}
	for _, o := range opts {
		o(srv)
	}
	mux := http.NewServeMux()
	mux.Handle(srv.path, CORS(srv.handleConnections()))
	srv.Server = &http.Server{
		Addr:      srv.address,
		TLSConfig: srv.tlsConf,
		Handler:   mux,
	}
	return srv
}

// Register sets the handler for every session. It must be called before
// Start.
func (s *Server) Register(h Handler) {
	if s.h != nil {
		log.Fatal("websocket: Server.Register called twice")
	}
	s.h = h
}

func (s *Server) Sessions() *SessionManager {
	return s.sessionMgr
}

func (s *Server) Endpoint() (*url.URL, error) {
	if err := s.listenAndEndpoint(); err != nil {
		return nil, err
	}
	return s.endpoint, nil
}

func (s *Server) listenAndEndpoint() error {
	if s.lis == nil {
		lis, err := net.Listen(s.network, s.address)
		if err != nil {
			s.err = err
			return err
		}
		s.lis = lis
	}
	if s.endpoint == nil {
		scheme := "ws"
		if s.tlsConf != nil {
			scheme = "wss"
		}
		s.endpoint = &url.URL{Scheme: scheme, Host: s.lis.Addr().String(), Path: s.path}
	}
	return s.err
}

// Start start the Websocket server.
func (s *Server) Start(ctx context.Context) error {
	if s.h == nil {
		return errors.New("websocket: no handler registered")
	}
	if err := s.listenAndEndpoint(); err != nil {
		return err
	}
	s.baseCtx = ctx
	s.BaseContext = func(net.Listener) context.Context {
		return ctx
	}
	log.Infof("[websocket] server listening on: %s", s.lis.Addr().String())
	var err error
	if s.tlsConf != nil {
		err = s.ServeTLS(s.lis, "", "")
	} else {
		err = s.Serve(s.lis)
	}
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stop the Websocket server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info("[websocket] server stopping")
	err := s.Shutdown(ctx)
	s.sessionMgr.CloseAllSessions()
	return err
}

func (s *Server) handleConnections() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cnt := s.sessionMgr.Len(); cnt >= s.maxConnLimit {
			w.WriteHeader(http.StatusServiceUnavailable)
			log.Warnf("[websocket] StatusServiceUnavailable. over maxConnections(%d)", cnt)
			return
		}

		var subject string
		if s.auth != nil {
			sub, err := s.auth(r)
			if err != nil {
				log.Warnf("[websocket] upgrade refused. remote=%s err=%v", r.RemoteAddr, err)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			subject = sub
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf("[websocket] upgrade error: %v", err)
			return
		}
		_ = NewSession(s, conn, s.sessionConf, subject)
	}
}

func (s *Server) OnSessionOpen(sess *Session) {
	s.sessionMgr.Add(sess)
	if s.h != nil {
		s.h.OnSessionOpen(sess)
	}
}

func (s *Server) OnSessionClose(sess *Session) {
	if s.h != nil {
		s.h.OnSessionClose(sess)
	}
	s.sessionMgr.Delete(sess)
}

// DispatchMessage hands one frame to the handler with the session in ctx.
func (s *Server) DispatchMessage(sess *Session, data []byte) {
	if s.h == nil {
		return
	}
	s.h.OnMessage(NewContext(s.baseCtx, sess), sess, data)
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Length, Token")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
