package template

import (
	"regexp"
	"strings"
)

// callToken matches one interaction token inside an attribute value.
var callToken = regexp.MustCompile(`\{\{\s*call:([^}]*)\}\}`)

// Call is one parsed interaction token.
// Format: {{call:function:target,arg1,arg2}}
// Examples:
//
//	{{call:fetch:@shop/products,#list}}
//	{{call:navigate:blog/intro}}
type Call struct {
	Raw      string // the token as written, braces included
	Start    int    // byte offset of Raw in the scanned text
	Function string
	Target   string
	Args     []string
}

// API returns the API name of an "@api/endpoint" target.
func (c Call) API() string {
	api, _, _ := c.apiEndpoint()
	return api
}

// Endpoint returns the endpoint of an "@api/endpoint" target.
func (c Call) Endpoint() string {
	_, endpoint, _ := c.apiEndpoint()
	return endpoint
}

// IsAPI reports whether the call targets an API.
func (c Call) IsAPI() bool {
	_, _, ok := c.apiEndpoint()
	return ok
}

func (c Call) apiEndpoint() (string, string, bool) {
	if !strings.HasPrefix(c.Target, "@") {
		return "", "", false
	}
	api, endpoint, _ := strings.Cut(c.Target[1:], "/")
	return api, endpoint, api != ""
}

// Route returns the target as a route name when the call does not target an
// API. Leading and trailing slashes are ignored.
func (c Call) Route() string {
	if c.IsAPI() {
		return ""
	}
	return strings.Trim(c.Target, "/")
}

// ParseCalls returns every interaction token in text, in order.
func ParseCalls(text string) []Call {
	if !strings.Contains(text, "call:") {
		return nil
	}
	var calls []Call
	for _, m := range callToken.FindAllStringSubmatchIndex(text, -1) {
		calls = append(calls, parseCall(text[m[0]:m[1]], text[m[2]:m[3]], m[0]))
	}
	return calls
}

// parseCall splits "function:target,args" into its parts.
func parseCall(raw, inner string, start int) Call {
	c := Call{Raw: raw, Start: start}
	function, rest, _ := strings.Cut(inner, ":")
	c.Function = strings.TrimSpace(function)
	options := parseOptions(rest)
	if len(options) > 0 {
		c.Target = options[0]
		c.Args = options[1:]
	}
	return c
}

// parseOptions parses a comma-separated list of options, handling quoted strings
// Example: "option1,option2,\"Option with, comma\""
func parseOptions(args string) []string {
	var options []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(args); i++ {
		char := args[i]

		if char == '"' {
			inQuotes = !inQuotes
		} else if char == ',' && !inQuotes {
			options = append(options, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(char)
		}
	}

	// Add last option
	opt := strings.TrimSpace(current.String())
	if opt != "" || len(options) > 0 {
		options = append(options, opt)
	}

	return options
}

// RemoveCalls deletes every call for which match returns true and collapses
// the whitespace left behind. It returns the new text and the removed calls.
func RemoveCalls(text string, match func(Call) bool) (string, []Call) {
	calls := ParseCalls(text)
	if len(calls) == 0 {
		return text, nil
	}
	var removed []Call
	var b strings.Builder
	last := 0
	for _, c := range calls {
		if !match(c) {
			continue
		}
		b.WriteString(text[last:c.Start])
		b.WriteByte(' ')
		last = c.Start + len(c.Raw)
		removed = append(removed, c)
	}
	if len(removed) == 0 {
		return text, nil
	}
	b.WriteString(text[last:])
	return strings.Join(strings.Fields(b.String()), " "), removed
}
