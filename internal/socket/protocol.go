package socket

import (
	"encoding/json"

	"github.com/pstuifzand/sitetree/internal/edit"
)

// Message represents a command sent to a running sitetree instance
type Message struct {
	Command string `json:"command"`

	// edit, replace, render, restore
	Target    edit.Target     `json:"target,omitempty"`
	Action    edit.Action     `json:"action,omitempty"`
	NodeID    string          `json:"nodeId,omitempty"`
	Node      json.RawMessage `json:"node,omitempty"`
	Structure json.RawMessage `json:"structure,omitempty"`
	Revision  string          `json:"revision,omitempty"`

	// clean
	Route    string `json:"route,omitempty"`
	API      string `json:"api,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	// render
	Lang  string         `json:"lang,omitempty"`
	Flags map[string]any `json:"flags,omitempty"`

	// ResponseChan receives the reply of the message handler
	ResponseChan chan *Response `json:"-"`
}

// EditCommand returns the edit command carried by an edit message.
func (m Message) EditCommand() edit.Command {
	return edit.Command{
		Target:   m.Target,
		Action:   m.Action,
		NodeID:   m.NodeID,
		Node:     m.Node,
		Revision: m.Revision,
	}
}

// Response represents the response from the server
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Command types
const (
	CommandPing    = "ping"
	CommandEdit    = "edit"
	CommandReplace = "replace"
	CommandClean   = "clean"
	CommandRender  = "render"
	CommandRestore = "restore"
)
