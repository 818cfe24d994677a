package session

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/model"
	"github.com/tileplay/carcassonne/library/log/file"
	"github.com/tileplay/carcassonne/library/xgo"
)

// journal is the per-game action record. A nil journal records nothing.
type journal struct {
	*file.Log
}

func openJournal(code string, c *conf.Journal) *journal {
	if c == nil || !c.Open {
		return nil
	}
	if err := os.MkdirAll(c.Directory, 0o755); err != nil {
		log.Errorf("journal disabled. game:%s err:%v", code, err)
		return nil
	}
	return &journal{file.NewFileLog(journalPath(c.Directory, code))}
}

// journalPath maps every code to its own file inside dir. Escaping is
// injective, so distinct codes never share a file.
func journalPath(dir, code string) string {
	return filepath.Join(dir, url.PathEscape(code)+".log")
}

func (j *journal) created() {
	if j == nil {
		return
	}
	j.WriteLog("<create>")
}

func (j *journal) join(p model.Player, size int) {
	if j == nil {
		return
	}
	j.WriteLog("<join> player[%s %s] players:%d", p.ID, p.Name, size)
}

func (j *journal) phase(ph model.Phase) {
	if j == nil {
		return
	}
	j.WriteLog("<phase> %s", ph)
}

func (j *journal) place(p model.Player, t model.Tile, size int) {
	if j == nil {
		return
	}
	j.WriteLog("<place> player[%s] tile[%s %s r%d] at%s board:%d",
		p.ID, t.Definition.Kind, xgo.ToJSON(t.Definition.Edges), t.Rotation, t.Position, size)
}

func (j *journal) rejected(p model.Player, t model.Tile) {
	if j == nil {
		return
	}
	j.WriteLog("<reject> player[%s] tile[%s r%d] at%s", p.ID, t.Definition.Kind, t.Rotation, t.Position)
}

func (j *journal) skip(stalled, next model.Player) {
	if j == nil {
		return
	}
	j.WriteLog("<skip> player[%s] next[%s]", stalled.ID, next.ID)
}

func (j *journal) scores(scores []model.Score) {
	if j == nil {
		return
	}
	for _, sc := range scores {
		j.WriteLog("<score> player[%s] points:%d", sc.Player.ID, sc.Points)
	}
}

func (j *journal) close() {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		log.Warnf("journal close failed: %v", err)
	}
}
