package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/model"
	"github.com/tileplay/carcassonne/internal/rule"
	"github.com/tileplay/carcassonne/library/work"
	"github.com/tileplay/carcassonne/pkg/codes"
)

func init() {
	log.SetLogger(log.NewStdLogger(os.Stdout))
}

type fakeRepo struct {
	game    *conf.Game
	journal *conf.Journal
	timer   work.Scheduler

	mu       sync.Mutex
	mirrored []model.Phase
	pushes   []v1.Push
}

func newFakeRepo(t *testing.T, game *conf.Game) *fakeRepo {
	if game == nil {
		game = &conf.Game{MinPlayers: 1}
	}
	timer := work.NewWheelScheduler(work.WithTick(5 * time.Millisecond))
	t.Cleanup(timer.Stop)
	return &fakeRepo{game: game, journal: &conf.Journal{}, timer: timer}
}

func (r *fakeRepo) Oracle() rule.Oracle {
	return rule.NewClassic()
}

func (r *fakeRepo) GameConfig() *conf.Game {
	return r.game
}

func (r *fakeRepo) JournalConfig() *conf.Journal {
	return r.journal
}

func (r *fakeRepo) GetTimer() work.Scheduler {
	return r.timer
}

func (r *fakeRepo) MirrorPhase(_ string, phase model.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirrored = append(r.mirrored, phase)
}

func (r *fakeRepo) Broadcast(push v1.Push) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, push)
}

func (r *fakeRepo) Pushes() []v1.Push {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]v1.Push(nil), r.pushes...)
}

var (
	alice = model.Player{ID: "a", Name: "Alice"}
	bob   = model.Player{ID: "b", Name: "Bob"}
	carol = model.Player{ID: "c", Name: "Carol"}

	fieldEdges = [4]model.Edge{model.EdgeField, model.EdgeField, model.EdgeField, model.EdgeField}
	cityEdges  = [4]model.Edge{model.EdgeCity, model.EdgeCity, model.EdgeCity, model.EdgeCity}
)

func tileAt(x, y int, edges [4]model.Edge) model.Tile {
	return model.Tile{
		Definition: model.TileDefinition{Kind: "t", Edges: edges},
		Position:   &model.Position{X: x, Y: y},
	}
}

func started(t *testing.T, repo *fakeRepo, players ...model.Player) *Session {
	s := New("G1", repo)
	for _, p := range players {
		_, err := s.Join(p)
		require.NoError(t, err)
	}
	_, err := s.Start()
	require.NoError(t, err)
	return s
}

func TestJoin_DedupAndOrder(t *testing.T) {
	s := New("G1", newFakeRepo(t, nil))

	for _, p := range []model.Player{alice, bob, alice, carol, bob, {ID: "a", Name: "renamed"}} {
		_, err := s.Join(p)
		require.NoError(t, err)
	}
	snap := s.Snapshot()
	assert.Equal(t, []model.Player{alice, bob, carol}, snap.Players)
	assert.EqualValues(t, 3, snap.Version, "repeat joins do not bump the version")

	cur, ok := s.CurrentPlayer()
	require.True(t, ok)
	assert.Equal(t, alice, cur)
}

func TestJoin_ConcurrentSameIdentity(t *testing.T) {
	s := New("G1", newFakeRepo(t, nil))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Join(model.Player{ID: fmt.Sprintf("p%d", i%5)})
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Snapshot().Players, 5)
}

func TestJoin_Policy(t *testing.T) {
	s := New("G1", newFakeRepo(t, nil))

	_, err := s.Join(model.Player{})
	assert.True(t, errors.Is(err, codes.ErrMalformedAction))

	_, err = s.Join(alice)
	require.NoError(t, err)
	_, err = s.Start()
	require.NoError(t, err)

	_, err = s.Join(bob)
	assert.True(t, errors.Is(err, codes.ErrInvalidPhase), "late join by a new identity")

	push, err := s.Join(alice)
	require.NoError(t, err, "repeat join by a member is a no-op")
	assert.Equal(t, []model.Player{alice}, push.Players)
}

func TestCurrentPlayer_Empty(t *testing.T) {
	s := New("G1", newFakeRepo(t, nil))
	p, ok := s.CurrentPlayer()
	assert.False(t, ok)
	assert.Equal(t, model.Player{}, p)
}

func TestStart_Twice(t *testing.T) {
	repo := newFakeRepo(t, nil)
	s := started(t, repo, alice)

	_, err := s.Start()
	assert.True(t, errors.Is(err, codes.ErrInvalidPhase))
	assert.Equal(t, model.PhaseTilePlacement, s.Phase())
	assert.Equal(t, []model.Phase{model.PhaseTilePlacement}, repo.mirrored)
}

func TestStart_MinPlayers(t *testing.T) {
	repo := newFakeRepo(t, &conf.Game{MinPlayers: 2})
	s := New("G1", repo)
	_, _ = s.Join(alice)

	_, err := s.Start()
	assert.True(t, errors.Is(err, codes.ErrNotEnoughPlayers))
	assert.Equal(t, model.PhaseLobby, s.Phase())
	assert.Empty(t, repo.mirrored)

	_, _ = s.Join(bob)
	push, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, alice, *push.CurrentPlayer)
}

func TestPlaceTile_WrongPlayerChangesNothing(t *testing.T) {
	s := started(t, newFakeRepo(t, nil), alice, bob, carol)
	before := s.Snapshot()

	for _, p := range []model.Player{bob, carol, {ID: "stranger"}} {
		_, err := s.PlaceTile(p, tileAt(0, 0, fieldEdges))
		assert.True(t, errors.Is(err, codes.ErrNotYourTurn), p.ID)
	}
	assert.Equal(t, before, s.Snapshot())
}

func TestPlaceTile_AdvancesRoundRobin(t *testing.T) {
	s := started(t, newFakeRepo(t, nil), alice, bob, carol)
	order := []model.Player{alice, bob, carol, alice}

	for i, p := range order {
		push, err := s.PlaceTile(p, tileAt(i, 0, fieldEdges))
		require.NoError(t, err)
		assert.Equal(t, order[(i+1)%3], push.NextPlayer)
		assert.Equal(t, i+1, len(s.Snapshot().Board))
	}
}

func TestPlaceTile_IllegalChangesNothing(t *testing.T) {
	s := started(t, newFakeRepo(t, nil), alice, bob)
	_, err := s.PlaceTile(alice, tileAt(0, 0, fieldEdges))
	require.NoError(t, err)
	before := s.Snapshot()

	tests := []struct {
		name string
		tile model.Tile
	}{
		{"occupied", tileAt(0, 0, fieldEdges)},
		{"edge mismatch", tileAt(1, 0, cityEdges)},
		{"detached", tileAt(5, 5, fieldEdges)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.PlaceTile(bob, tt.tile)
			assert.True(t, errors.Is(err, codes.ErrIllegalPlacement))
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestPlaceTile_PhaseAndPayload(t *testing.T) {
	s := New("G1", newFakeRepo(t, nil))
	_, _ = s.Join(alice)

	_, err := s.PlaceTile(alice, tileAt(0, 0, fieldEdges))
	assert.True(t, errors.Is(err, codes.ErrInvalidPhase))

	_, err = s.PlaceTile(alice, model.Tile{})
	assert.True(t, errors.Is(err, codes.ErrMalformedAction))
}

func TestPlaceTile_ConcurrentSingleWinner(t *testing.T) {
	s := started(t, newFakeRepo(t, nil), alice, bob)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.PlaceTile(alice, tileAt(i, 0, fieldEdges)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	cur, _ := s.CurrentPlayer()
	assert.Equal(t, bob, cur)
}

func TestLifecycle_EndAndFinish(t *testing.T) {
	repo := newFakeRepo(t, nil)
	s := started(t, repo, alice, bob)
	_, _ = s.PlaceTile(alice, tileAt(0, 0, fieldEdges))
	_, _ = s.PlaceTile(bob, tileAt(0, 1, fieldEdges))
	_, _ = s.PlaceTile(alice, tileAt(0, 2, fieldEdges))

	_, err := s.Finish()
	assert.True(t, errors.Is(err, codes.ErrInvalidPhase))

	scored, err := s.End()
	require.NoError(t, err)
	require.Len(t, scored.Scores, 2)
	assert.Equal(t, 2, scored.Scores[0].Points)
	assert.Equal(t, 1, scored.Scores[1].Points)

	_, err = s.PlaceTile(bob, tileAt(0, 3, fieldEdges))
	assert.True(t, errors.Is(err, codes.ErrInvalidPhase))

	_, ok := s.FinishedAt()
	assert.False(t, ok)
	finished, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, scored.Scores, finished.Scores)
	_, ok = s.FinishedAt()
	assert.True(t, ok)

	_, err = s.End()
	assert.True(t, errors.Is(err, codes.ErrInvalidPhase))
	assert.Equal(t, []model.Phase{model.PhaseTilePlacement, model.PhaseScoring, model.PhaseFinished}, repo.mirrored)
	assert.NotNil(t, s.Snapshot().FinishedAt)
}

func TestVersionIsMonotonic(t *testing.T) {
	s := New("G1", newFakeRepo(t, nil))
	j1, _ := s.Join(alice)
	j2, _ := s.Join(bob)
	st, _ := s.Start()
	bu, _ := s.PlaceTile(alice, tileAt(0, 0, fieldEdges))

	versions := []uint64{j1.Version, j2.Version, st.Version, bu.Version}
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestTurnTimeout_SkipsStalledPlayer(t *testing.T) {
	repo := newFakeRepo(t, &conf.Game{MinPlayers: 1, TurnTimeout: conf.Duration(30 * time.Millisecond)})
	s := started(t, repo, alice, bob)

	require.Eventually(t, func() bool { return len(repo.Pushes()) > 0 }, time.Second, 5*time.Millisecond)
	skip, ok := repo.Pushes()[0].(v1.TurnSkipped)
	require.True(t, ok)
	assert.Equal(t, alice, skip.Player)
	assert.Equal(t, bob, skip.NextPlayer)

	s.Close()
	time.Sleep(10 * time.Millisecond)
	n := len(repo.Pushes())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, len(repo.Pushes()), "closed session arms no timers")
}

func TestTurnTimeout_PlacementResetsTimer(t *testing.T) {
	repo := newFakeRepo(t, &conf.Game{MinPlayers: 1, TurnTimeout: conf.Duration(80 * time.Millisecond)})
	s := started(t, repo, alice, bob)

	time.Sleep(40 * time.Millisecond)
	_, err := s.PlaceTile(alice, tileAt(0, 0, fieldEdges))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, repo.Pushes(), "timer for alice's turn was replaced")

	_, err = s.End()
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, repo.Pushes(), "no skips after tile placement ends")
	s.Close()
}

func TestJournal(t *testing.T) {
	repo := newFakeRepo(t, nil)
	dir := t.TempDir()
	repo.journal = &conf.Journal{Open: true, Directory: dir}

	s := started(t, repo, alice)
	_, err := s.PlaceTile(alice, tileAt(0, 0, fieldEdges))
	require.NoError(t, err)
	s.Close()

	data, err := os.ReadFile(filepath.Join(dir, "G1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<join> player[a Alice]")
	assert.Contains(t, string(data), "<place> player[a]")
}

func TestJournal_DistinctFilesPerCode(t *testing.T) {
	repo := newFakeRepo(t, nil)
	dir := t.TempDir()
	repo.journal = &conf.Journal{Open: true, Directory: dir}

	for _, code := range []string{"G1", "other/G1", "..", "G1%2F"} {
		s := New(code, repo)
		_, err := s.Join(alice)
		require.NoError(t, err)
		s.Close()
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	for _, e := range entries {
		assert.False(t, e.IsDir(), e.Name())
	}
}

func TestJournal_OpensOnFirstRecord(t *testing.T) {
	repo := newFakeRepo(t, nil)
	dir := filepath.Join(t.TempDir(), "journal")
	repo.journal = &conf.Journal{Open: true, Directory: dir}

	s := New("G1", repo)
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "New must not touch the filesystem")

	_, err = s.Join(alice)
	require.NoError(t, err)
	s.Close()

	data, err := os.ReadFile(filepath.Join(dir, "G1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<create>")
	assert.Contains(t, string(data), "<join> player[a Alice]")
}

// Scenario G1: A and B join, A starts, B out of turn, A legal, B onto an
// occupied square.
func TestScenarioG1(t *testing.T) {
	repo := newFakeRepo(t, nil)
	s := New("G1", repo)

	_, err := s.Join(alice)
	require.NoError(t, err)
	_, err = s.Join(bob)
	require.NoError(t, err)
	cur, ok := s.CurrentPlayer()
	require.True(t, ok)
	assert.Equal(t, alice, cur)

	_, err = s.Start()
	require.NoError(t, err)
	assert.Equal(t, model.PhaseTilePlacement, s.Phase())

	_, err = s.PlaceTile(bob, tileAt(0, 0, fieldEdges))
	assert.True(t, errors.Is(err, codes.ErrNotYourTurn))

	push, err := s.PlaceTile(alice, tileAt(0, 0, fieldEdges))
	require.NoError(t, err)
	assert.Equal(t, bob, push.NextPlayer)
	snap := s.Snapshot()
	require.Len(t, snap.Board, 1)
	assert.Equal(t, model.Position{}, *snap.Board[0].Position)

	_, err = s.PlaceTile(bob, tileAt(0, 0, fieldEdges))
	assert.True(t, errors.Is(err, codes.ErrIllegalPlacement))
	snap = s.Snapshot()
	assert.Len(t, snap.Board, 1)
	assert.Equal(t, bob, *snap.CurrentPlayer)
}
