package control

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pinstack/backbox/protocol"
)

// Client is the origin side of the protocol link. backboxctl and the
// integration tests use it to talk to a running daemon.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to a backbox daemon.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("could not connect to daemon at %s: %w", addr, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Send writes one message.
func (c *Client) Send(m *protocol.Message) error {
	if _, err := c.conn.Write(m.ToPacket()); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// SendLine writes a raw protocol line, appending the terminator when
// it is missing.
func (c *Client) SendLine(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := io.WriteString(c.conn, line); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// Receive blocks until the next message arrives.
func (c *Client) Receive() (*protocol.Message, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return protocol.Decode(string(line))
}

// ReceiveTimeout waits up to d for the next message.
func (c *Client) ReceiveTimeout(d time.Duration) (*protocol.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})
	return c.Receive()
}

// Hello runs the version handshake and returns the daemon's reply.
func (c *Client) Hello(timeout time.Duration) (*protocol.Message, error) {
	req := protocol.Hello(protocol.Version)
	req.ID = uuid.NewString()
	if err := c.Send(req); err != nil {
		return nil, err
	}
	reply, err := c.ReceiveTimeout(timeout)
	if err != nil {
		return nil, err
	}
	if reply.Command == protocol.CmdError {
		msg, _ := reply.Param("message")
		return reply, fmt.Errorf("handshake rejected: %s", msg.Str())
	}
	return reply, nil
}

// Close hangs up.
func (c *Client) Close() error {
	return c.conn.Close()
}
