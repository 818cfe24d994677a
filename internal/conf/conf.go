package conf

import (
	"errors"
	"fmt"
	"time"
)

const (
	Name    = "carcassonne"
	Version = "v0.1.0"
)

const (
	DriverNone   = "none"
	DriverRedis  = "redis"
	DriverSqlite = "sqlite"
)

type Bootstrap struct {
	Server *Server `json:"server"`
	Data   *Data   `json:"data"`
	Room   *Room   `json:"room"`
}

type Server struct {
	Http      *HTTP      `json:"http"`
	Websocket *Websocket `json:"websocket"`
}

type HTTP struct {
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

type Websocket struct {
	Addr         string   `json:"addr"`
	Path         string   `json:"path"`
	RateLimit    float64  `json:"rate_limit"` // inbound frames per second, 0 disables
	RateBurst    int      `json:"rate_burst"`
	JwtSecret    string   `json:"jwt_secret"` // empty disables token checks
	SendBuffer   int      `json:"send_buffer"`
	ReadLimit    int64    `json:"read_limit"`
	PingInterval Duration `json:"ping_interval"`
	WriteTimeout Duration `json:"write_timeout"`
}

type Data struct {
	Driver        string   `json:"driver"`
	Redis         *Redis   `json:"redis"`
	Sqlite        *Sqlite  `json:"sqlite"`
	MirrorTimeout Duration `json:"mirror_timeout"`
}

type Redis struct {
	Addr         string   `json:"addr"`
	Password     string   `json:"password"`
	Db           int      `json:"db"`
	KeyPrefix    string   `json:"key_prefix"`
	Ttl          Duration `json:"ttl"`
	DialTimeout  Duration `json:"dial_timeout"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
}

type Sqlite struct {
	Dsn string `json:"dsn"`
}

type Room struct {
	PoolSize          int      `json:"pool_size"`
	ReapInterval      Duration `json:"reap_interval"`
	FinishedRetention Duration `json:"finished_retention"` // 0 keeps finished games forever
	Game              *Game    `json:"game"`
	Journal           *Journal `json:"journal"`
}

// Game holds the rules knobs that may change while the server runs.
type Game struct {
	MinPlayers  int      `json:"min_players"`
	TurnTimeout Duration `json:"turn_timeout"` // 0 disables turn skipping
}

type Journal struct {
	Open      bool   `json:"open"`
	Directory string `json:"directory"`
}

// Validate fills defaults and rejects values no component can run with.
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		b.Server = &Server{}
	}
	if b.Data == nil {
		b.Data = &Data{}
	}
	if b.Room == nil {
		b.Room = &Room{}
	}
	return errors.Join(b.Server.Validate(), b.Data.Validate(), b.Room.Validate())
}

func (s *Server) Validate() error {
	if s.Http == nil {
		s.Http = &HTTP{}
	}
	if s.Websocket == nil {
		s.Websocket = &Websocket{}
	}
	if s.Http.Addr == "" {
		s.Http.Addr = "0.0.0.0:8000"
	}
	if s.Http.Timeout <= 0 {
		s.Http.Timeout = Duration(5 * time.Second)
	}

	ws := s.Websocket
	if ws.Addr == "" {
		ws.Addr = "0.0.0.0:3102"
	}
	if ws.Path == "" {
		ws.Path = "/ws"
	}
	if ws.RateLimit < 0 {
		return fmt.Errorf("server.websocket.rate_limit must not be negative: %v", ws.RateLimit)
	}
	if ws.RateLimit > 0 && ws.RateBurst <= 0 {
		ws.RateBurst = max(int(ws.RateLimit), 1)
	}
	if ws.SendBuffer <= 0 {
		ws.SendBuffer = 256
	}
	if ws.ReadLimit <= 0 {
		ws.ReadLimit = 64 << 10
	}
	if ws.PingInterval <= 0 {
		ws.PingInterval = Duration(30 * time.Second)
	}
	if ws.WriteTimeout <= 0 {
		ws.WriteTimeout = Duration(10 * time.Second)
	}
	return nil
}

func (d *Data) Validate() error {
	if d.Driver == "" {
		d.Driver = DriverNone
	}
	if d.MirrorTimeout <= 0 {
		d.MirrorTimeout = Duration(3 * time.Second)
	}
	switch d.Driver {
	case DriverNone:
	case DriverRedis:
		if d.Redis == nil || d.Redis.Addr == "" {
			return errors.New("data.redis.addr is required for the redis driver")
		}
		if d.Redis.KeyPrefix == "" {
			d.Redis.KeyPrefix = "carcassonne:game:"
		}
	case DriverSqlite:
		if d.Sqlite == nil || d.Sqlite.Dsn == "" {
			return errors.New("data.sqlite.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown data.driver %q", d.Driver)
	}
	return nil
}

func (r *Room) Validate() error {
	if r.Game == nil {
		r.Game = &Game{}
	}
	if r.Journal == nil {
		r.Journal = &Journal{}
	}
	if r.PoolSize <= 0 {
		r.PoolSize = 100
	}
	if r.ReapInterval <= 0 {
		r.ReapInterval = Duration(time.Minute)
	}
	if r.FinishedRetention < 0 {
		return fmt.Errorf("room.finished_retention must not be negative: %v", r.FinishedRetention)
	}
	if r.Journal.Open && r.Journal.Directory == "" {
		r.Journal.Directory = "./logs/games"
	}
	return r.Game.Validate()
}

func (g *Game) Validate() error {
	if g.MinPlayers <= 0 {
		g.MinPlayers = 1
	}
	if g.TurnTimeout < 0 {
		return fmt.Errorf("room.game.turn_timeout must not be negative: %v", g.TurnTimeout)
	}
	return nil
}
