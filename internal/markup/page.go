package markup

import (
	"bytes"
	"encoding/json"

	"github.com/pstuifzand/sitetree/internal/model"
)

// PageOptions controls the document shell around a page.
type PageOptions struct {
	IncludeMenu   bool
	IncludeFooter bool
	// Events holds the page-level event bindings of the route, written into
	// a JSON script block. Nil writes no block.
	Events any
	// Title is a text key for the document title; the raw-text prefix applies.
	Title       string
	Stylesheets []string
	Scripts     []string
}

// LowerPage lowers a page structure wrapped in a full document.
func (l *Lowerer) LowerPage(s model.Structure, env Env, opts PageOptions) (Program, error) {
	env.Mode = ModePage
	w := &lowering{l: l, env: env, vars: l.ContextVars()}
	b := &w.b

	b.static("<!DOCTYPE html>\n<html lang=\"")
	b.add(Var(VarLang))
	b.static("\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.static("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	if opts.Title != "" {
		b.static("<title>")
		w.textKey(b, opts.Title)
		b.static("</title>\n")
	}
	for _, href := range opts.Stylesheets {
		b.static(`<link rel="stylesheet" href="`)
		b.url(l.opts.URL.Apply(href))
		b.static("\">\n")
	}
	b.static("</head>\n<body>\n")
	if opts.IncludeMenu {
		b.add(Include("menu"))
	}
	b.static("<main>")
	w.nodes(b, s, 1)
	b.static("</main>\n")
	if opts.IncludeFooter {
		b.add(Include("footer"))
	}
	if opts.Events != nil {
		events, err := eventsJSON(opts.Events)
		if err != nil {
			return nil, err
		}
		b.static(`<script type="application/json" id="page-events">`)
		b.static(events)
		b.static("</script>\n")
	}
	for _, src := range opts.Scripts {
		b.static(`<script src="`)
		b.url(l.opts.URL.Apply(src))
		b.static("\"></script>\n")
	}
	b.static("</body>\n</html>\n")
	return b.prog, nil
}

// eventsJSON encodes page events for a script block. HTML escaping keeps
// "<", ">" and "&" out of the block so it cannot be closed early.
func eventsJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
