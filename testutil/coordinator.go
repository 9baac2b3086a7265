package testutil

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// Coordinator is a loopback fake of the mining coordinator. It greets each
// connection, answers JOB requests with JobReply and any other line with
// Verdict. Fields must be set before the first client connects.
type Coordinator struct {
	Greeting string
	JobReply string
	Verdict  string

	// Silent accepts connections but never writes anything.
	Silent bool
	// CloseAfterJob drops the connection right after sending a job.
	CloseAfterJob bool
	// NoJob swallows job requests without answering.
	NoJob bool
	// NoVerdict swallows submissions without answering.
	NoVerdict bool

	listener net.Listener

	mu          sync.Mutex
	lines       []string
	connects    int
	disconnects int
	conns       []net.Conn
	closed      chan struct{}
}

// NewCoordinator starts a fake coordinator on an ephemeral port. It is shut
// down by t.Cleanup.
func NewCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	c := &Coordinator{
		Greeting: "3.0",
		Verdict:  "GOOD",
		listener: l,
		closed:   make(chan struct{}),
	}
	go c.acceptLoop()
	t.Cleanup(c.Close)
	return c
}

// Host returns the listener host.
func (c *Coordinator) Host() string {
	return c.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listener port.
func (c *Coordinator) Port() int {
	return c.listener.Addr().(*net.TCPAddr).Port
}

// Lines returns every line received so far.
func (c *Coordinator) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Connects returns the number of accepted connections.
func (c *Coordinator) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Disconnects returns the number of connections whose read side ended.
func (c *Coordinator) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// WaitDisconnects waits until at least n connections have ended.
func (c *Coordinator) WaitDisconnects(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.Disconnects() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// DropAll closes every open server-side connection.
func (c *Coordinator) DropAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		conn.Close()
	}
	c.conns = nil
}

// Close stops the listener and drops all connections.
func (c *Coordinator) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	c.listener.Close()
	c.DropAll()
}

func (c *Coordinator) acceptLoop() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.connects++
		c.conns = append(c.conns, conn)
		c.mu.Unlock()
		go c.serve(conn)
	}
}

func (c *Coordinator) serve(conn net.Conn) {
	defer conn.Close()

	if !c.Silent {
		conn.Write([]byte(c.Greeting + "\n"))
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			c.mu.Lock()
			c.disconnects++
			c.mu.Unlock()
			return
		}
		line = strings.TrimRight(line, "\r\n")

		c.mu.Lock()
		c.lines = append(c.lines, line)
		c.mu.Unlock()

		if c.Silent {
			continue
		}
		if strings.HasPrefix(line, "JOB,") {
			if c.NoJob {
				continue
			}
			conn.Write([]byte(c.JobReply + "\n"))
			if c.CloseAfterJob {
				return
			}
			continue
		}
		if !c.NoVerdict {
			conn.Write([]byte(c.Verdict + "\n"))
		}
	}
}
