package cleaner

import "strings"

// universalEvents are the events every element can bind.
var universalEvents = set(
	"click", "dblclick", "contextmenu",
	"mousedown", "mouseup", "mouseenter", "mouseleave", "mouseover", "mouseout", "mousemove",
	"keydown", "keyup", "keypress",
	"focus", "blur", "focusin", "focusout",
	"touchstart", "touchend", "touchmove",
	"pointerdown", "pointerup",
	"wheel", "scroll",
	"dragstart", "dragend", "drop",
	"animationend", "transitionend",
)

var formControlEvents = set("change", "input", "invalid", "select")

var mediaEvents = set("load", "error", "play", "pause", "ended", "timeupdate", "volumechange", "canplay")

// tagEvents are the events only some elements fire.
var tagEvents = map[string]map[string]bool{
	"form":     set("submit", "reset", "formdata"),
	"input":    formControlEvents,
	"select":   formControlEvents,
	"textarea": formControlEvents,
	"img":      set("load", "error"),
	"iframe":   set("load", "error"),
	"script":   set("load", "error"),
	"link":     set("load", "error"),
	"video":    mediaEvents,
	"audio":    mediaEvents,
	"details":  set("toggle"),
	"dialog":   set("close", "cancel"),
	"body":     set("load", "unload", "beforeunload", "resize", "hashchange", "popstate", "online", "offline"),
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// EventName returns the event an attribute binds on tag, or "" when the
// attribute is not an event binding. Bindings are written as the bare
// event name ("click"), the handler attribute ("onclick") or a data
// attribute ("data-on-click").
func EventName(tag, attribute string) string {
	name := strings.ToLower(attribute)
	for _, prefix := range []string{"data-on-", "data-on", "on"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok && isEvent(tag, rest) {
			return rest
		}
	}
	if isEvent(tag, name) {
		return name
	}
	return ""
}

func isEvent(tag, name string) bool {
	if name == "" {
		return false
	}
	return universalEvents[name] || tagEvents[strings.ToLower(tag)][name]
}
