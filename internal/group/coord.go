package group

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// The coordination service hosts the named barrier for exec-mode groups.
// The orchestrator listens; each worker dials in and sends one line per
// rendezvous:
//
//	BARRIER <name> <rank>\n
//
// The server answers "GO\n" on every connection parked at <name> once all
// world-size ranks have arrived. The protocol is line-oriented on purpose:
// it is debuggable with nc and carries no payload besides ordering.

// coordServer is the orchestrator-side barrier host.
type coordServer struct {
	world    int
	listener net.Listener
	logger   *slog.Logger
	done     chan struct{}

	mu      sync.Mutex
	arrived map[string]map[int]chan struct{}

	closeOnce sync.Once
}

// newCoordServer starts a coordination listener on addr. Empty addr binds
// an ephemeral port on localhost.
func newCoordServer(addr string, world int, logger *slog.Logger) (*coordServer, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("group: coordination listen on %s: %w", addr, err)
	}

	s := &coordServer{
		world:    world,
		listener: ln,
		logger:   logger,
		done:     make(chan struct{}),
		arrived:  map[string]map[int]chan struct{}{},
	}
	go s.acceptLoop()
	return s, nil
}

// Addr returns the bound coordination endpoint.
func (s *coordServer) Addr() string {
	return s.listener.Addr().String()
}

// Close stops the listener and releases any parked connections.
func (s *coordServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.listener.Close()
	})
	return err
}

func (s *coordServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *coordServer) serve(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var name string
		var rank int
		if _, err := fmt.Sscanf(scanner.Text(), "BARRIER %s %d", &name, &rank); err != nil {
			s.logger.Warn("coord_bad_request", "line", scanner.Text(), "error", err)
			fmt.Fprintf(conn, "ERR bad request\n")
			return
		}

		release := s.arrive(name, rank)
		select {
		case <-release:
		case <-s.done:
			return
		}

		if _, err := fmt.Fprintf(conn, "GO\n"); err != nil {
			return
		}
	}
}

// arrive records rank at the named rendezvous and returns the channel that
// closes once all ranks have arrived.
func (s *coordServer) arrive(name string, rank int) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	point, ok := s.arrived[name]
	if !ok {
		point = map[int]chan struct{}{}
		s.arrived[name] = point
	}

	release := make(chan struct{})
	point[rank] = release

	if len(point) == s.world {
		for _, ch := range point {
			close(ch)
		}
		// Next use of the name starts a fresh generation.
		delete(s.arrived, name)
	}
	return release
}

// barrierClient is the worker-side handle to the coordination service. It
// keeps one connection and runs every named barrier over it.
type barrierClient struct {
	addr    string
	rank    int
	backoff BackoffConfig
	logger  *slog.Logger

	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

func newBarrierClient(addr string, rank int, cfg BackoffConfig, logger *slog.Logger) *barrierClient {
	return &barrierClient{addr: addr, rank: rank, backoff: cfg, logger: logger}
}

// Wait blocks until every rank has arrived at the named barrier.
func (c *barrierClient) Wait(ctx context.Context, name string) error {
	if strings.ContainsAny(name, " \n") {
		return fmt.Errorf("group: barrier name %q contains whitespace", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(c.conn, "BARRIER %s %d\n", name, c.rank); err != nil {
		return fmt.Errorf("group: barrier %q send: %w", name, err)
	}

	// Unblock the read when the context ends; the barrier has no deadline
	// of its own.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	line, err := c.rd.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("group: barrier %q wait: %w", name, err)
	}
	if strings.TrimSpace(line) != "GO" {
		return fmt.Errorf("group: barrier %q unexpected reply %q", name, strings.TrimSpace(line))
	}
	return nil
}

// Close drops the coordination connection.
func (c *barrierClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// connectLocked dials the coordination service with backoff. Workers start
// concurrently with the listener, so early dials may be refused.
func (c *barrierClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	backoff := newDialBackoff(c.rank, c.backoff)
	var dialer net.Dialer
	for {
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err == nil {
			c.conn = conn
			c.rd = bufio.NewReader(conn)
			return nil
		}

		if backoff.Attempts() >= 8 {
			return fmt.Errorf("group: dial coordination %s after %d attempts: %w",
				c.addr, backoff.Attempts(), err)
		}

		delay := backoff.Next()
		c.logger.Debug("coord_dial_retry",
			"addr", c.addr,
			"rank", c.rank,
			"attempt", backoff.Attempts(),
			"delay", delay.String(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
