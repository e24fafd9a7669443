package template

import "log/slog"

// VarOrderURL and friends are the variable-bag keys the built-in renderers
// and collaborator handlers agree on.
const (
	VarOrderURL       = "ORDER_URL"
	VarOrderReference = "ORDER_REFERENCE"
)

// NewDefaultEngine returns an engine preloaded with the standard token
// aliases and the @order renderer.
func NewDefaultEngine(logger *slog.Logger) *Engine {
	engine := NewEngine(logger)

	engine.Alias("branch", "WELCOME")
	engine.Alias("name", "NAME")
	engine.Alias("phone", "NUMBER")
	engine.Alias("email", "EMAIL")
	engine.Alias("date", "DATE")
	engine.Alias("time", "TIME")
	engine.Alias("game_area", "RESERVATION1")
	engine.Alias("participants", "RESERVATION2")

	engine.RegisterRenderer("order", RenderOrder)

	// The number of games is collected under one of two step refs depending
	// on the chosen game area.
	engine.RegisterRenderer("number_of_games", func(vars map[string]string, _ string) string {
		if v := vars["LASER_GAME_NUMBER"]; v != "" {
			return v
		}

		return vars["ACTIVE_TIME_GAME"]
	})

	return engine
}

// RenderOrder renders @order and @order(button text). The bare form expands
// to the order URL; the parameterized form produces a channel button marker
// in front of the URL. With no order in the bag it renders empty.
func RenderOrder(vars map[string]string, arg string) string {
	url := vars[VarOrderURL]
	if url == "" {
		return ""
	}

	if arg == "" {
		return url
	}

	return "[BTN:" + arg + "]" + url
}
