package runtime

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
)

// placeholderPattern matches {{name}} and {{name:key1,key2}}.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Renderer substitutes {{name}} placeholders with context values.
// Unresolved placeholders are kept verbatim.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a Renderer. A nil logger discards diagnostics.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = discardLogger()
	}
	return &Renderer{logger: logger}
}

// Render expands every placeholder in tmpl. It never mutates ctx.
func (r *Renderer) Render(tmpl string, ctx domain.Context) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		inner := match[2 : len(match)-2]
		name, filter, hasFilter := strings.Cut(inner, ":")
		name = strings.TrimSpace(name)

		value, ok := ctx.Lookup(name)
		if !ok {
			r.logger.Warn("context variable not found in session context", "variable", name)
			return match
		}
		if hasFilter {
			return renderRows(value, splitKeys(filter))
		}
		return renderValue(value)
	})
}

func renderValue(v domain.Value) string {
	if !v.IsList() {
		return v.Text()
	}
	rows := make([]string, 0, len(v.Items()))
	for _, item := range v.Items() {
		rows = append(rows, item.Text())
	}
	return strings.Join(rows, "\n")
}

// renderRows formats a list of maps as one line per element, joining the
// selected keys with " - ".
func renderRows(v domain.Value, keys []string) string {
	if !v.IsList() {
		return v.Text()
	}
	rows := make([]string, 0, len(v.Items()))
	for _, item := range v.Items() {
		if !item.IsMap() || len(keys) == 0 {
			rows = append(rows, item.Text())
			continue
		}
		cols := make([]string, 0, len(keys))
		for _, k := range keys {
			if col, ok := item.Get(k); ok {
				cols = append(cols, col.Text())
			}
		}
		rows = append(rows, strings.Join(cols, " - "))
	}
	return strings.Join(rows, "\n")
}

func splitKeys(filter string) []string {
	var keys []string
	for _, k := range strings.Split(filter, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
