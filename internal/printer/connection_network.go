package printer

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// NetworkConnection is a raw TCP link, usually port 9100
type NetworkConnection struct {
	conn net.Conn
	mu   sync.Mutex
}

// ConnectNetwork connects to a network printer
func ConnectNetwork(host string, port int) (*NetworkConnection, error) {
	address := net.JoinHostPort(host, fmt.Sprint(port))

	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &NetworkConnection{conn: conn}, nil
}

// Write sends data to the printer
func (c *NetworkConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.Write(data)
}

// Close closes the connection
func (c *NetworkConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
