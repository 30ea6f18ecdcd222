package socket

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pstuifzand/sitetree/internal/edit"
)

// Client represents a Unix socket client for sending commands
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new client connected to the specified socket
func NewClient(socketPath string) (*Client, error) {
	// Verify socket exists
	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("socket not found: %w", err)
	}

	return &Client{
		socketPath: socketPath,
		timeout:    ResponseTimeout + 5*time.Second,
	}, nil
}

// Send sends a message to the server and returns the response
func (c *Client) Send(msg Message) (*Response, error) {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	// Set a timeout for the operation
	conn.SetDeadline(time.Now().Add(c.timeout))

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	// Send message
	if err := encoder.Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	// Receive response
	var response Response
	if err := decoder.Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}

	return &response, nil
}

// SendEdit is a convenience method to send an edit command
func (c *Client) SendEdit(cmd edit.Command) (*Response, error) {
	return c.Send(Message{
		Command:  CommandEdit,
		Target:   cmd.Target,
		Action:   cmd.Action,
		NodeID:   cmd.NodeID,
		Node:     cmd.Node,
		Revision: cmd.Revision,
	})
}

// SendClean is a convenience method to send a clean command. Set route, or
// api with an optional endpoint.
func (c *Client) SendClean(route, api, endpoint string) (*Response, error) {
	return c.Send(Message{Command: CommandClean, Route: route, API: api, Endpoint: endpoint})
}

// Ping checks that an instance is listening.
func (c *Client) Ping() error {
	resp, err := c.Send(Message{Command: CommandPing})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("ping failed: %s", resp.Message)
	}
	return nil
}
