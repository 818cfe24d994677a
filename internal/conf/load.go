package conf

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jinzhu/copier"
	"github.com/r3labs/diff/v3"

	"github.com/tileplay/carcassonne/library/log/zap"
	zconf "github.com/tileplay/carcassonne/library/log/zap/conf"
)

// LoadConfig reads the YAML file at path into the server and logger
// bootstraps. The returned config stays open for WatchConfig.
func LoadConfig(path string) (config.Config, *Bootstrap, *zconf.Bootstrap, error) {
	c := config.New(
		config.WithSource(
			file.NewSource(path),
		),
	)
	if err := c.Load(); err != nil {
		return nil, nil, nil, err
	}

	var (
		bc Bootstrap
		lc zconf.Bootstrap
	)
	if err := c.Scan(&bc); err != nil {
		return nil, nil, nil, fmt.Errorf("bootstrap config: %w", err)
	}
	if err := bc.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("bootstrap config invalid: %w", err)
	}
	if err := c.Scan(&lc); err != nil {
		return nil, nil, nil, fmt.Errorf("logger config: %w", err)
	}
	if err := lc.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("logger config invalid: %w", err)
	}
	return c, &bc, &lc, nil
}

// GameSettings serves the room.game section, which may be replaced while
// sessions are reading it.
type GameSettings struct {
	p atomic.Pointer[Game]
}

func NewGameSettings(r *Room) *GameSettings {
	s := &GameSettings{}
	s.Store(r.Game)
	return s
}

// Load returns the current settings. Callers must not modify the result.
func (s *GameSettings) Load() *Game { return s.p.Load() }

func (s *GameSettings) Store(g *Game) { s.p.Store(g) }

// WatchConfig applies edits of room.game and log.logger without a restart.
func WatchConfig(c config.Config, game *GameSettings, lc *zconf.Bootstrap, logger *zap.Logger) error {
	watchers := map[string]config.Observer{
		"room.game": observer("room.game", game.Load, game.Store),
		"log.logger": observer("log.logger",
			func() *zconf.Logger { return lc.Log.Logger },
			func(next *zconf.Logger) {
				if next.Level != logger.GetLevel() {
					logger.SetLevel(next.Level)
				}
				logger.SetSensitive(next.Sensitive)
				lc.Log.Logger = next
			}),
	}
	for key, o := range watchers {
		if err := c.Watch(key, o); err != nil {
			return fmt.Errorf("watch %q failed: %w", key, err)
		}
	}
	return nil
}

// observer scans an update on top of a deep copy of the current value so
// keys missing from the update keep their previous setting.
func observer[T any](key string, current func() *T, apply func(*T)) config.Observer {
	return func(_ string, val config.Value) {
		prev := current()
		next := new(T)
		if err := copier.CopyWithOption(next, prev, copier.Option{DeepCopy: true}); err != nil {
			log.Errorf("[config] copy failed: key=%q, err=%v", key, err)
			return
		}
		if err := val.Scan(next); err != nil {
			log.Errorf("[config] scan failed: key=%q, err=%v", key, err)
			return
		}
		if v, ok := any(next).(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				log.Errorf("[config] validation failed: key=%q, err=%v", key, err)
				return
			}
		}

		changes, err := diff.Diff(prev, next)
		if err != nil {
			log.Errorf("[config] diff failed: key=%q, err=%v", key, err)
			return
		}
		if len(changes) == 0 {
			return
		}
		log.Warnf("[config] [%q] updated:\n%s", key, describe(changes))
		apply(next)
	}
}

func describe(changes diff.Changelog) string {
	var sb strings.Builder
	for _, ch := range changes {
		fmt.Fprintf(&sb, "  %s %s: %v -> %v\n", ch.Type, strings.Join(ch.Path, "."), ch.From, ch.To)
	}
	return sb.String()
}
