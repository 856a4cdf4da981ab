package rules

// Game couples an Engine with the metadata the page server renders.
type Game struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NumPlayers  int    `json:"numPlayers"`
	Description string `json:"description"`

	Engine Engine `json:"-"`
}

// Registry holds the games a server process offers. It is process-scoped,
// built once at startup, and read-only afterwards.
type Registry struct {
	order []string
	games map[string]*Game
}

// NewRegistry builds a registry from the given games, preserving order.
func NewRegistry(games ...*Game) *Registry {
	r := &Registry{games: make(map[string]*Game, len(games))}
	for _, g := range games {
		if g.NumPlayers == 0 {
			g.NumPlayers = g.Engine.NumPlayers()
		}
		r.order = append(r.order, g.ID)
		r.games[g.ID] = g
	}
	return r
}

// Lookup returns the game registered under id, or nil.
func (r *Registry) Lookup(id string) *Game {
	return r.games[id]
}

// All returns every registered game in registration order.
func (r *Registry) All() []*Game {
	out := make([]*Game, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.games[id])
	}
	return out
}
