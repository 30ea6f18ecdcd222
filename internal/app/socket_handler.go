package app

import (
	"fmt"

	"github.com/pstuifzand/sitetree/internal/edit"
	"github.com/pstuifzand/sitetree/internal/socket"
)

// HandleMessage processes one message received from the Unix socket
func (s *Site) HandleMessage(msg socket.Message) socket.Response {
	s.Log.Debugw("socket message", "command", msg.Command, "target", msg.Target, "nodeId", msg.NodeID)

	switch msg.Command {
	case socket.CommandEdit:
		return editResponse(s.Editor.Apply(msg.EditCommand()))
	case socket.CommandReplace:
		if len(msg.Structure) == 0 {
			return failure("replace requires a structure")
		}
		return editResponse(s.Editor.ReplaceSource(msg.Target, msg.Structure, msg.Revision))
	case socket.CommandRestore:
		return editResponse(s.Restore(msg.Target, 0))
	case socket.CommandClean:
		return s.handleClean(msg)
	case socket.CommandRender:
		return s.handleRender(msg)
	}
	s.Log.Warnw("unknown socket command", "command", msg.Command)
	return failure(fmt.Sprintf("unknown command %q", msg.Command))
}

func failure(message string) socket.Response {
	return socket.Response{Success: false, Message: message}
}

func editResponse(res edit.Result, err error) socket.Response {
	if err != nil {
		return socket.Response{Success: false, Message: err.Error(), Data: res}
	}
	return socket.Response{Success: true, Data: res}
}

func (s *Site) handleClean(msg socket.Message) socket.Response {
	p, err := CleanPattern(msg.Route, msg.API, msg.Endpoint)
	if err != nil {
		return failure(err.Error())
	}
	report, err := s.Clean(p)
	if err != nil {
		return socket.Response{Success: false, Message: err.Error(), Data: report}
	}
	return socket.Response{
		Success: true,
		Message: fmt.Sprintf("removed %d interactions from %d files", len(report.RemovedInteractions), len(report.ModifiedFiles)),
		Data:    report,
	}
}

func (s *Site) handleRender(msg socket.Message) socket.Response {
	if msg.Lang != "" && !s.HasLanguage(msg.Lang) {
		return failure(fmt.Sprintf("unknown language %q", msg.Lang))
	}
	route := msg.Route
	if route == "" && msg.Target.Kind == "page" {
		route = msg.Target.Name
	}
	html, err := s.RenderTarget(msg.Target, s.Context(msg.Lang, route, msg.Flags))
	if err != nil {
		return failure(err.Error())
	}
	return socket.Response{Success: true, Data: map[string]string{"html": html}}
}
