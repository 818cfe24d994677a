package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/tileplay/carcassonne/internal/biz"
	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/model"
	"github.com/tileplay/carcassonne/pkg/xredis"
)

// ErrNotFound is returned by GetPhase for a code never mirrored.
var ErrNotFound = biz.ErrPhaseNotFound

// NewPhaseRepo picks the adapter matching the configured driver.
func NewPhaseRepo(d *Data, c *conf.Data, logger log.Logger) biz.PhaseRepo {
	h := log.NewHelper(logger)
	switch {
	case d.rdb != nil:
		return &redisPhaseRepo{rdb: d.rdb, prefix: c.Redis.KeyPrefix, ttl: c.Redis.Ttl.Std(), log: h}
	case d.db != nil:
		return &sqlitePhaseRepo{db: d.db, log: h}
	default:
		return &nopPhaseRepo{log: h}
	}
}

type redisPhaseRepo struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *log.Helper
}

func (r *redisPhaseRepo) UpdatePhase(ctx context.Context, gameID string, phase model.Phase) error {
	key := xredis.GameKey(r.prefix, gameID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			xredis.GamePhaseField, string(phase),
			xredis.GameUpdatedAtField, time.Now().UTC().UnixMilli(),
		)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis update phase %s: %w", gameID, err)
	}
	return nil
}

func (r *redisPhaseRepo) GetPhase(ctx context.Context, gameID string) (model.Phase, error) {
	val, err := r.rdb.HGet(ctx, xredis.GameKey(r.prefix, gameID), xredis.GamePhaseField).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get phase %s: %w", gameID, err)
	}
	return model.Phase(val), nil
}

type sqlitePhaseRepo struct {
	db  *sql.DB
	log *log.Helper
}

func (r *sqlitePhaseRepo) UpdatePhase(ctx context.Context, gameID string, phase model.Phase) error {
	now := time.Now().UTC().UnixMilli()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO games (code, phase, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET phase = excluded.phase, updated_at = excluded.updated_at`,
		gameID, string(phase), now, now)
	if err != nil {
		return fmt.Errorf("sqlite update phase %s: %w", gameID, err)
	}
	return nil
}

func (r *sqlitePhaseRepo) GetPhase(ctx context.Context, gameID string) (model.Phase, error) {
	var phase string
	err := r.db.QueryRowContext(ctx, "SELECT phase FROM games WHERE code = ?", gameID).Scan(&phase)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite get phase %s: %w", gameID, err)
	}
	return model.Phase(phase), nil
}

type nopPhaseRepo struct {
	log *log.Helper
}

func (r *nopPhaseRepo) UpdatePhase(_ context.Context, gameID string, phase model.Phase) error {
	r.log.Debugf("phase not mirrored. game:%s phase:%s", gameID, phase)
	return nil
}

func (r *nopPhaseRepo) GetPhase(context.Context, string) (model.Phase, error) {
	return "", ErrNotFound
}
