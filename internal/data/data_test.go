package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/data/migrations"
	"github.com/tileplay/carcassonne/internal/model"
)

func newSqliteRepo(t *testing.T) (*Data, *conf.Data) {
	t.Helper()
	c := &conf.Data{
		Driver: conf.DriverSqlite,
		Sqlite: &conf.Sqlite{Dsn: filepath.Join(t.TempDir(), "games.db")},
	}
	require.NoError(t, c.Validate())
	d, cleanup, err := NewData(c, log.GetLogger())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return d, c
}

func TestSqlitePhaseRepo(t *testing.T) {
	d, c := newSqliteRepo(t)
	repo := NewPhaseRepo(d, c, log.GetLogger())
	ctx := context.Background()

	_, err := repo.GetPhase(ctx, "G1")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, phase := range []model.Phase{model.PhaseLobby, model.PhaseTilePlacement, model.PhaseScoring} {
		require.NoError(t, repo.UpdatePhase(ctx, "G1", phase))
		got, err := repo.GetPhase(ctx, "G1")
		require.NoError(t, err)
		assert.Equal(t, phase, got)
	}

	var rows int
	require.NoError(t, d.db.QueryRow("SELECT COUNT(*) FROM games").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestMigrationsApplyOnce(t *testing.T) {
	d, _ := newSqliteRepo(t)
	ctx := context.Background()

	require.NoError(t, applyMigrations(ctx, d.db, migrations.FS))

	var applied int
	require.NoError(t, d.db.QueryRow("SELECT COUNT(*) FROM "+migrationTable).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nCREATE TABLE t (a INT);\n",
		upSection("-- +migrate Up\nCREATE TABLE t (a INT);\n-- +migrate Down\nDROP TABLE t;"))
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}

func TestNopPhaseRepo(t *testing.T) {
	c := &conf.Data{}
	require.NoError(t, c.Validate())
	d, cleanup, err := NewData(c, log.GetLogger())
	require.NoError(t, err)
	defer cleanup()

	repo := NewPhaseRepo(d, c, log.GetLogger())
	assert.NoError(t, repo.UpdatePhase(context.Background(), "G1", model.PhaseLobby))
}

func TestRedisPhaseRepo_Unreachable(t *testing.T) {
	c := &conf.Data{
		Driver: conf.DriverRedis,
		Redis: &conf.Redis{
			Addr:        "127.0.0.1:1",
			DialTimeout: conf.Duration(50 * time.Millisecond),
		},
	}
	require.NoError(t, c.Validate())
	d, cleanup, err := NewData(c, log.GetLogger())
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	repo := NewPhaseRepo(d, c, log.GetLogger())
	assert.Error(t, repo.UpdatePhase(ctx, "G1", model.PhaseLobby))
}
