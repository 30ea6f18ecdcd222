package compile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pstuifzand/sitetree/internal/markup"
	"github.com/pstuifzand/sitetree/internal/render"
)

// phpEscaper is sb_e from the runtime unit.
var phpEscaper = strings.NewReplacer("&", "&amp;", "'", "&#39;", "<", "&lt;", ">", "&gt;", `"`, "&#34;")

var (
	flagCond  = regexp.MustCompile(`^sb_flag\((.+), \$sb_lang, \$sb_route\)$`)
	langCond  = regexp.MustCompile(`^\$sb_lang === (.+)$`)
	routeCond = regexp.MustCompile(`^trim\(\$sb_route, '/'\) === (.+)$`)
	include   = regexp.MustCompile(`^include SB_ROOT \. (.+);$`)
	echoT     = regexp.MustCompile(`^sb_e\(sb_t\((.+)\)\)$`)
	echoVar   = regexp.MustCompile(`^sb_e\((\$sb_[a-z]+)\)$`)
)

// phpRunner interprets the subset of PHP the compiler emits, so tests can
// compare published output with the runtime renderer.
type phpRunner struct {
	ctx   render.Context
	units map[string]string
}

func (r *phpRunner) run(src string) (string, error) {
	var out strings.Builder
	err := r.exec(src, &out)
	return out.String(), err
}

func (r *phpRunner) exec(src string, out *strings.Builder) error {
	var skip []bool
	active := func() bool {
		for _, s := range skip {
			if s {
				return false
			}
		}
		return true
	}
	for {
		i := strings.Index(src, "<?")
		if i < 0 {
			if active() {
				out.WriteString(src)
			}
			break
		}
		if active() {
			out.WriteString(src[:i])
		}
		src = src[i:]
		echo := false
		switch {
		case strings.HasPrefix(src, "<?php"):
			src = src[5:]
		case strings.HasPrefix(src, "<?="):
			src, echo = src[3:], true
		default:
			return fmt.Errorf("unexpected open tag at %q", src)
		}
		end, err := closeTag(src)
		if err != nil {
			return err
		}
		code := strings.TrimSpace(src[:end])
		src = src[end+2:]
		// PHP swallows one newline after a closing tag.
		if strings.HasPrefix(src, "\r\n") {
			src = src[2:]
		} else if strings.HasPrefix(src, "\n") || strings.HasPrefix(src, "\r") {
			src = src[1:]
		}

		if echo {
			if active() {
				s, err := r.echo(code)
				if err != nil {
					return err
				}
				out.WriteString(s)
			}
			continue
		}
		switch {
		case strings.HasPrefix(code, "if (") && strings.HasSuffix(code, "):"):
			ok, err := r.cond(code[4 : len(code)-2])
			if err != nil {
				return err
			}
			skip = append(skip, !ok)
		case code == "endif;":
			if len(skip) == 0 {
				return fmt.Errorf("endif without if")
			}
			skip = skip[:len(skip)-1]
		case include.MatchString(code):
			if !active() {
				continue
			}
			name, err := r.expr(include.FindStringSubmatch(code)[1])
			if err != nil {
				return err
			}
			unit, ok := r.units[name]
			if !ok {
				return fmt.Errorf("include of unknown unit %q", name)
			}
			if err := r.exec(unit, out); err != nil {
				return err
			}
		default:
			// unit prologue
		}
	}
	if len(skip) != 0 {
		return fmt.Errorf("unterminated if")
	}
	return nil
}

// closeTag finds "?>" outside single-quoted strings.
func closeTag(src string) (int, error) {
	inString := false
	for i := 0; i < len(src); i++ {
		switch {
		case inString && src[i] == '\\':
			i++
		case src[i] == '\'':
			inString = !inString
		case !inString && strings.HasPrefix(src[i:], "?>"):
			return i, nil
		}
	}
	return 0, fmt.Errorf("missing closing tag")
}

func (r *phpRunner) echo(code string) (string, error) {
	if m := echoT.FindStringSubmatch(code); m != nil {
		key, err := r.expr(m[1])
		if err != nil {
			return "", err
		}
		return phpEscaper.Replace(r.ctx.Translate(key)), nil
	}
	if m := echoVar.FindStringSubmatch(code); m != nil {
		v, err := r.expr(m[1])
		return phpEscaper.Replace(v), err
	}
	if code == `'<?'` {
		return "<?", nil
	}
	return "", fmt.Errorf("unsupported echo %q", code)
}

func (r *phpRunner) cond(code string) (bool, error) {
	if m := flagCond.FindStringSubmatch(code); m != nil {
		name, err := r.expr(m[1])
		return r.flag(name), err
	}
	if m := langCond.FindStringSubmatch(code); m != nil {
		lang, err := r.expr(m[1])
		return r.ctx.Lang == lang, err
	}
	if m := routeCond.FindStringSubmatch(code); m != nil {
		route, err := r.expr(m[1])
		return strings.Trim(r.ctx.Route, "/") == route, err
	}
	return false, fmt.Errorf("unsupported condition %q", code)
}

// flag is sb_flag: flags first, then the request variables.
func (r *phpRunner) flag(name string) bool {
	if v, ok := r.ctx.Flags[name]; ok {
		return markup.Truthy(v)
	}
	switch name {
	case "lang", "language":
		return r.ctx.Lang != "" && r.ctx.Lang != "0"
	case "route", "page":
		return r.ctx.Route != "" && r.ctx.Route != "0"
	}
	return false
}

// expr evaluates a concatenation of string literals and request variables.
func (r *phpRunner) expr(code string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(code); {
		switch c := code[i]; {
		case c == ' ' || c == '.':
			i++
		case c == '\'':
			i++
			for ; i < len(code) && code[i] != '\''; i++ {
				if code[i] == '\\' && i+1 < len(code) && (code[i+1] == '\\' || code[i+1] == '\'') {
					i++
				}
				sb.WriteByte(code[i])
			}
			if i >= len(code) {
				return "", fmt.Errorf("unterminated string in %q", code)
			}
			i++
		case strings.HasPrefix(code[i:], "$sb_lang"):
			sb.WriteString(r.ctx.Lang)
			i += len("$sb_lang")
		case strings.HasPrefix(code[i:], "$sb_route"):
			sb.WriteString(r.ctx.Route)
			i += len("$sb_route")
		default:
			return "", fmt.Errorf("unsupported expression %q", code)
		}
	}
	return sb.String(), nil
}
