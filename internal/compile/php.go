package compile

import (
	"strings"

	"github.com/pstuifzand/sitetree/internal/markup"
)

var phpQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// phpString quotes s as a single-quoted PHP string literal.
func phpString(s string) string {
	return "'" + phpQuoter.Replace(s) + "'"
}

// phpComment makes s safe inside a /* */ comment.
func phpComment(s string) string {
	for strings.Contains(s, "*/") {
		s = strings.ReplaceAll(s, "*/", "* /")
	}
	return s
}

func phpVar(name string) string {
	switch name {
	case markup.VarLang:
		return "$sb_lang"
	case markup.VarRoute:
		return "$sb_route"
	}
	return "''"
}

// phpKey builds the expression of a translation key.
func phpKey(pieces []markup.Piece) string {
	if len(pieces) == 0 {
		return "''"
	}
	parts := make([]string, len(pieces))
	for i, p := range pieces {
		if p.Var != "" {
			parts[i] = phpVar(p.Var)
		} else {
			parts[i] = phpString(p.Literal)
		}
	}
	return strings.Join(parts, " . ")
}

func phpCondition(c markup.Condition) string {
	switch {
	case c.Flag != "":
		return "sb_flag(" + phpString(c.Flag) + ", $sb_lang, $sb_route)"
	case c.Lang != "":
		return "$sb_lang === " + phpString(c.Lang)
	case c.Route != "":
		return "trim($sb_route, '/') === " + phpString(c.Route)
	}
	return "false"
}

// writer emits a program as a PHP template.
type writer struct {
	sb strings.Builder
	// afterPHP is set right after a closing tag. PHP swallows one newline
	// following "?>", so a static part starting with one gets an extra.
	afterPHP bool
}

func (w *writer) php(code string) {
	w.sb.WriteString(code)
	w.afterPHP = true
}

// static writes markup. "<?" never reaches the output as an open tag.
func (w *writer) static(s string) {
	for i, part := range strings.Split(s, "<?") {
		if i > 0 {
			w.php(`<?= '<?' ?>`)
		}
		if part == "" {
			continue
		}
		if w.afterPHP && (part[0] == '\n' || part[0] == '\r') {
			w.sb.WriteByte('\n')
		}
		w.sb.WriteString(part)
		w.afterPHP = false
	}
}

func (w *writer) program(p markup.Program) {
	for _, seg := range p {
		switch s := seg.(type) {
		case markup.Static:
			w.static(string(s))
		case markup.Var:
			w.php("<?= sb_e(" + phpVar(string(s)) + ") ?>")
		case markup.Translation:
			w.php("<?= sb_e(sb_t(" + phpKey(s.Key) + ")) ?>")
		case markup.Conditional:
			w.php("<?php if (" + phpCondition(s.Condition) + "): ?>")
			w.program(s.Body)
			w.php("<?php endif; ?>")
		case markup.Include:
			w.php("<?php include SB_ROOT . " + phpString("/"+string(s)+".php") + "; ?>")
		}
	}
}
