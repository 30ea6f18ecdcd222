package socket

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ResponseTimeout bounds how long a connection waits for the handler.
const ResponseTimeout = 10 * time.Second

// Server represents a Unix socket server for accepting external commands.
// Messages are handed to a single consumer through Messages, so commands
// are applied one at a time.
type Server struct {
	socketPath string
	listener   net.Listener
	msgChan    chan Message
	stopChan   chan struct{}
	log        *zap.SugaredLogger
}

// NewServer creates a new Unix socket server listening on socketPath
func NewServer(socketPath string, log *zap.SugaredLogger) (*Server, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	// Create socket directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Remove existing socket if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	log.Infow("socket server listening", "path", socketPath)

	return &Server{
		socketPath: socketPath,
		listener:   listener,
		msgChan:    make(chan Message, 10), // Buffer up to 10 messages
		stopChan:   make(chan struct{}),
		log:        log,
	}, nil
}

// Start begins accepting connections on the socket
func (s *Server) Start() {
	go s.acceptLoop()
}

// acceptLoop continuously accepts new connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if we're shutting down
			select {
			case <-s.stopChan:
				return
			default:
				s.log.Warnw("error accepting connection", "error", err)
				continue
			}
		}
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single client connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	encoder.SetEscapeHTML(false)

	var msg Message
	if err := decoder.Decode(&msg); err != nil {
		if err != io.EOF {
			s.log.Debugw("error decoding message", "error", err)
		}
		encoder.Encode(Response{
			Success: false,
			Message: fmt.Sprintf("Invalid message format: %v", err),
		})
		return
	}

	// Validate command
	if msg.Command == "" {
		encoder.Encode(Response{Success: false, Message: "Missing command field"})
		return
	}
	if msg.Command == CommandPing {
		encoder.Encode(Response{Success: true, Message: "pong"})
		return
	}

	msg.ResponseChan = make(chan *Response, 1)
	select {
	case s.msgChan <- msg:
		select {
		case response := <-msg.ResponseChan:
			encoder.Encode(response)
		case <-time.After(ResponseTimeout):
			encoder.Encode(Response{Success: false, Message: "Command timed out"})
		}
	case <-s.stopChan:
		encoder.Encode(Response{Success: false, Message: "Server is shutting down"})
	}
}

// Messages returns the channel for receiving messages
func (s *Server) Messages() <-chan Message {
	return s.msgChan
}

// SocketPath returns the path to the Unix socket
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Stop stops the server and cleans up resources
func (s *Server) Stop() {
	close(s.stopChan)
	if s.listener != nil {
		s.listener.Close()
	}
	// Clean up socket file
	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}
	s.log.Infow("socket server stopped", "path", s.socketPath)
}
