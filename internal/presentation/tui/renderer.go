package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer when stdout is a terminal, and a
// pass-through otherwise so piped output stays plain.
func NewRenderer() Renderer {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return plain
	}
	return r.Render
}

func plain(markdown string) (string, error) {
	return markdown + "\n", nil
}

// FormatTurn renders a turn response as markdown: the message, numbered
// options and an input hint.
func FormatTurn(resp *domain.TurnResponse) string {
	var sb strings.Builder
	sb.WriteString(resp.Message)
	if len(resp.Options) > 0 {
		sb.WriteString("\n\n")
		for _, opt := range resp.Options {
			fmt.Fprintf(&sb, "%s. %s\n", opt.Value, opt.Label)
		}
	}
	switch {
	case resp.Completed:
		sb.WriteString("\n\n---\n*Conversation finished.*")
	case resp.ExpectsInput && resp.InputType != "" && resp.InputType != "text":
		fmt.Fprintf(&sb, "\n\n*expects %s*", resp.InputType)
	}
	return sb.String()
}
