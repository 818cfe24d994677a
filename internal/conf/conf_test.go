package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeYAML(t *testing.T, v any) string {
	t.Helper()
	data, err := yaml.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeYAML(t, map[string]any{
		"server": map[string]any{
			"websocket": map[string]any{"addr": ":9000", "rate_limit": 5},
		},
		"data": map[string]any{
			"driver": "sqlite",
			"sqlite": map[string]any{"dsn": "file:games.db"},
		},
		"room": map[string]any{
			"finished_retention": "10m",
			"game":               map[string]any{"min_players": 2, "turn_timeout": "45s"},
		},
		"log": map[string]any{
			"logger": map[string]any{"level": "warn", "sensitive": []string{"token"}},
		},
	})

	c, bc, lc, err := LoadConfig(path)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, ":9000", bc.Server.Websocket.Addr)
	assert.Equal(t, "/ws", bc.Server.Websocket.Path)
	assert.Equal(t, 5, bc.Server.Websocket.RateBurst)
	assert.Equal(t, DriverSqlite, bc.Data.Driver)
	assert.Equal(t, 3*time.Second, bc.Data.MirrorTimeout.Std())
	assert.Equal(t, 10*time.Minute, bc.Room.FinishedRetention.Std())
	assert.Equal(t, 2, bc.Room.Game.MinPlayers)
	assert.Equal(t, 45*time.Second, bc.Room.Game.TurnTimeout.Std())
	assert.Equal(t, "warn", lc.Log.Logger.Level)
	assert.Equal(t, []string{"token"}, lc.Log.Logger.Sensitive)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeYAML(t, map[string]any{
		"data": map[string]any{"driver": "redis"},
	})
	_, _, _, err := LoadConfig(path)
	assert.Error(t, err)

	path = writeYAML(t, map[string]any{
		"data": map[string]any{"driver": "mongo"},
	})
	_, _, _, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	bc := &Bootstrap{}
	require.NoError(t, bc.Validate())
	assert.Equal(t, DriverNone, bc.Data.Driver)
	assert.Equal(t, 1, bc.Room.Game.MinPlayers)
	assert.Zero(t, bc.Room.Game.TurnTimeout)
	assert.Zero(t, bc.Server.Websocket.RateLimit)
}

func TestObserverMergesUpdate(t *testing.T) {
	path := writeYAML(t, map[string]any{
		"room": map[string]any{"game": map[string]any{"turn_timeout": "30s"}},
	})
	c := config.New(config.WithSource(file.NewSource(path)))
	require.NoError(t, c.Load())
	defer c.Close()

	settings := NewGameSettings(&Room{Game: &Game{MinPlayers: 3}})
	o := observer("room.game", settings.Load, settings.Store)
	o("room.game", c.Value("room.game"))

	got := settings.Load()
	assert.Equal(t, 3, got.MinPlayers, "keys absent from the update are kept")
	assert.Equal(t, 30*time.Second, got.TurnTimeout.Std())
}

func TestObserverRejectsInvalid(t *testing.T) {
	path := writeYAML(t, map[string]any{
		"room": map[string]any{"game": map[string]any{"turn_timeout": "-5s"}},
	})
	c := config.New(config.WithSource(file.NewSource(path)))
	require.NoError(t, c.Load())
	defer c.Close()

	orig := &Game{MinPlayers: 2}
	settings := NewGameSettings(&Room{Game: orig})
	observer("room.game", settings.Load, settings.Store)("room.game", c.Value("room.game"))
	assert.Same(t, orig, settings.Load())
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())
	require.NoError(t, d.UnmarshalJSON([]byte(`1000000`)))
	assert.Equal(t, time.Millisecond, d.Std())
	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
}
