package osc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	goosc "github.com/hypebeast/go-osc/osc"
)

// Client sends OSC messages to a fixed UDP target. The socket is
// created lazily on first send and reused afterwards. When the target
// is the limited broadcast address the socket is opened with
// SO_BROADCAST so messages reach every listener on the segment.
type Client struct {
	targetIP   string
	targetPort int

	mu     sync.Mutex
	conn   net.PacketConn
	target *net.UDPAddr
}

// NewClient creates a client aimed at ip:port.
func NewClient(ip string, port int) *Client {
	return &Client{targetIP: ip, targetPort: port}
}

// Send encodes and transmits one message.
func (c *Client) Send(msg *goosc.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		if err := c.dialLocked(); err != nil {
			return err
		}
	}
	data, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding osc message %s: %w", msg.Address, err)
	}
	if _, err := c.conn.WriteTo(data, c.target); err != nil {
		return fmt.Errorf("sending osc message to %s: %w", c.target, err)
	}
	return nil
}

// Close releases the outbound socket if one was opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) dialLocked() error {
	target, err := net.ResolveUDPAddr("udp4",
		net.JoinHostPort(c.targetIP, strconv.Itoa(c.targetPort)))
	if err != nil {
		return fmt.Errorf("resolving osc target %s: %w", c.targetIP, err)
	}

	lc := net.ListenConfig{}
	if c.broadcast() {
		lc.Control = enableBroadcast
	}
	conn, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return fmt.Errorf("opening osc send socket: %w", err)
	}
	c.conn = conn
	c.target = target
	return nil
}

func (c *Client) broadcast() bool {
	ip := net.ParseIP(c.targetIP)
	return ip != nil && ip.Equal(net.IPv4bcast)
}
