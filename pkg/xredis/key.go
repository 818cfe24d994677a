package xredis

// Hash fields of a game record.
const (
	GamePhaseField     = "phase"
	GameUpdatedAtField = "updated_at"
)

// GameKey is the hash holding one game's record.
func GameKey(prefix, code string) string {
	return prefix + code
}
