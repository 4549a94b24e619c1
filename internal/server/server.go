// Package server wires together the wire codec, roster, history, router,
// liveness monitor, and ingress pump described in spec.md §4.8 into a single
// runnable UDP listener. The overall shape — a Server struct holding its
// collaborators, constructed with NewServer, run with a context-cancelable
// Run that blocks until shutdown — follows the teacher's server.go.
package server

import (
	"context"
	"log"
	"net"
	"sync"

	"ichat/internal/liveness"
	"ichat/internal/ratelimit"
	"ichat/internal/router"
	"ichat/internal/wire"
)

// Server owns the UDP socket and the ingress pump described in spec.md §4.8:
// one goroutine reads datagrams off the socket strictly sequentially, and
// schedules each one onto its own short-lived, fire-and-forget handler
// goroutine so a slow or lock-contended handler never stalls the reader.
// handlers tracks in-flight handler goroutines so Run can drain them before
// returning on shutdown, matching SPEC_FULL.md §12's graceful-shutdown note.
type Server struct {
	addr    string
	router  *router.Router
	monitor *liveness.Monitor
	limiter *ratelimit.Limiter

	conn     *net.UDPConn
	handlers sync.WaitGroup
}

// NewServer constructs a Server bound to addr (not yet listening). limiter
// may be nil to disable ingress rate limiting.
func NewServer(addr string, rt *router.Router, monitor *liveness.Monitor, limiter *ratelimit.Limiter) *Server {
	return &Server{addr: addr, router: rt, monitor: monitor, limiter: limiter}
}

// SendTo implements router.Outbound and liveness.Sender by writing payload
// to addr on the shared socket.
func (s *Server) SendTo(addr *net.UDPAddr, payload []byte) error {
	_, err := s.conn.WriteToUDP(payload, addr)
	return err
}

// Run opens the UDP socket, starts the liveness monitor, and pumps inbound
// datagrams to the router until ctx is canceled or a fatal socket error
// occurs.
func (s *Server) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if s.monitor != nil {
		go s.monitor.Run(ctx)
	}

	log.Printf("[server] listening on %s", conn.LocalAddr())

	buf := make([]byte, wire.BufferSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				s.handlers.Wait()
				return nil
			default:
			}
			log.Printf("[server] read: %v", err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		if s.limiter != nil && !s.limiter.Allow(from) {
			s.dispatch(func() {
				s.router.SendError(from, " Rate limit exceeded, please slow down")
			})
			continue
		}

		s.dispatch(func() {
			s.router.HandleDatagram(payload, from)
		})
	}
}

// dispatch runs fn as a fire-and-forget handler task, tracked so Run can
// drain in-flight handlers on shutdown instead of abandoning them mid-send.
func (s *Server) dispatch(fn func()) {
	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		fn()
	}()
}
