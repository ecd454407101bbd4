package traversal

import (
	"embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/aymerick/raymond"

	"github.com/meridian-ai/meridian/pkg/logger"
)

//go:embed templates/answer.hbs
var templateFS embed.FS

// Synthesizer renders the terminal answer through a Handlebars template.
// The embedded default can be replaced by a template file on disk.
type Synthesizer struct {
	tpl *raymond.Template
	log *slog.Logger
}

// NewSynthesizer parses the answer template once at startup. An empty
// path selects the embedded default.
func NewSynthesizer(path string, log *slog.Logger) (*Synthesizer, error) {
	var source string
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read answer template: %w", err)
		}
		source = string(raw)
	} else {
		raw, err := templateFS.ReadFile("templates/answer.hbs")
		if err != nil {
			return nil, fmt.Errorf("read embedded answer template: %w", err)
		}
		source = string(raw)
	}

	tpl, err := raymond.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse answer template: %w", err)
	}
	return &Synthesizer{
		tpl: tpl,
		log: log.With(logger.Scope("traversal.synth")),
	}, nil
}

// answerContext is the data handed to the template.
type answerContext struct {
	Query       string
	NodeID      string
	Name        string
	Description string
	Stack       string
	Confidence  float64
	Hops        int
}

// Render produces the answer text. Template failures degrade to a plain
// fallback rather than failing the traversal.
func (s *Synthesizer) Render(ctx answerContext) string {
	out, err := s.tpl.Exec(map[string]any{
		"query":       ctx.Query,
		"node_id":     ctx.NodeID,
		"name":        ctx.Name,
		"description": ctx.Description,
		"stack":       ctx.Stack,
		"confidence":  fmt.Sprintf("%.2f", ctx.Confidence),
		"hops":        ctx.Hops,
	})
	if err != nil {
		s.log.Warn("answer template failed, using fallback", logger.Error(err))
		if ctx.Name == "" {
			return fmt.Sprintf("No candidate in the graph resolves %q.", ctx.Query)
		}
		return fmt.Sprintf("%s (%s) resolves %q.", ctx.Name, ctx.NodeID, ctx.Query)
	}
	return out
}
