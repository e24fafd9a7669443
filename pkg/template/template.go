// Package template renders @token placeholders inside authored module content
// against a session's variable bag.
package template

import (
	"log/slog"
	"regexp"
	"strings"
)

// ParamRenderer renders a parameterized token such as @order(Pay here). It
// receives the variable bag and the raw argument text and returns the
// replacement string. Renderers must be pure.
type ParamRenderer func(vars map[string]string, arg string) string

// tokenPattern matches @name or @name(args). Token names are lowercase ASCII
// with underscores, matching the authoring convention.
var tokenPattern = regexp.MustCompile(`@([a-z][a-z0-9_]*)(?:\(([^)]*)\))?`)

// Engine resolves tokens against a variable bag. Token names map directly to
// variable names unless an alias or a parameterized renderer is registered.
type Engine struct {
	aliases   map[string]string
	renderers map[string]ParamRenderer
	logger    *slog.Logger
}

// NewEngine creates an empty substitution engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		aliases:   make(map[string]string),
		renderers: make(map[string]ParamRenderer),
		logger:    logger,
	}
}

// Alias maps a token name to a differently named variable, e.g. token "name"
// to variable "ASK_NAME".
func (e *Engine) Alias(token, variable string) {
	e.aliases[token] = variable
}

// RegisterRenderer installs a renderer for a parameterized token. The
// renderer also serves the bare @token form with an empty argument.
func (e *Engine) RegisterRenderer(token string, renderer ParamRenderer) {
	e.renderers[token] = renderer
}

// Render substitutes every token in the template. Unknown tokens render as
// the empty string and are logged as diagnostics; rendering never fails.
// A string without tokens is returned unchanged, so rendering is idempotent.
func (e *Engine) Render(templateText string, vars map[string]string) string {
	if !strings.Contains(templateText, "@") {
		return templateText
	}

	return tokenPattern.ReplaceAllStringFunc(templateText, func(match string) string {
		groups := tokenPattern.FindStringSubmatch(match)
		token, arg := groups[1], groups[2]

		if renderer, ok := e.renderers[token]; ok {
			return renderer(vars, arg)
		}

		name := token
		if alias, ok := e.aliases[token]; ok {
			name = alias
		}

		if value, ok := lookup(vars, name); ok {
			return value
		}

		if e.logger != nil {
			e.logger.Debug("unresolved template token", "token", token)
		}

		return ""
	})
}

// lookup tries the variable name as-is and uppercased; collected values are
// stored under step refs, which authors write in uppercase.
func lookup(vars map[string]string, name string) (string, bool) {
	if v, ok := vars[name]; ok {
		return v, true
	}

	if v, ok := vars[strings.ToUpper(name)]; ok {
		return v, true
	}

	return "", false
}
