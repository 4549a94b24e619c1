// Package client implements the dual-stream iChat client state of spec.md
// §4.9: one goroutine reads stdin and writes datagrams to the server,
// another listens for datagrams and routes them, and both share a single
// "running" flag that either side can clear to tear the whole client down.
// Grounded directly on chat_client.c's writer_thread/listener_thread pair —
// same shared-state shape (a mutex-guarded running flag, a connected name,
// a transcript file handle) translated from pthreads into goroutines and a
// sync.Mutex, and on the teacher's own callback-driven Transport in
// client/transport.go for how a Go client structures a background reader.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"

	"ichat/internal/wire"
)

// State holds everything the two goroutines share. All fields are guarded
// by mu except conn, which is safe for concurrent use on its own, and
// transcript, which only the listener goroutine writes.
type State struct {
	conn *net.UDPConn

	mu        sync.Mutex
	running   bool
	connected bool
	name      string

	transcript io.Writer
}

// New opens a UDP socket dialed at serverAddr (ephemeral local port, like
// the original's udp_socket_open(0)) and wraps it in a State ready to run.
func New(serverAddr string, transcript io.Writer) (*State, error) {
	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("client: resolve %s: %w", serverAddr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", serverAddr, err)
	}
	return &State{conn: conn, running: true, transcript: transcript}, nil
}

// Close releases the underlying socket.
func (s *State) Close() error {
	return s.conn.Close()
}

func (s *State) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *State) stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *State) setConnected(name string) {
	s.mu.Lock()
	s.connected = true
	s.name = name
	s.mu.Unlock()
}

// Run starts the writer and listener goroutines and blocks until both
// finish — matching main()'s pthread_join(writer) then pthread_join
// (listener) sequencing: the writer side (stdin reaching EOF, a disconn,
// or a write error) is what normally ends the session, and its exit always
// clears running so the listener unblocks too.
func (s *State) Run(ctx context.Context, stdin io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)

	// A canceled ctx (SIGINT/SIGTERM) must interrupt listenLoop's blocking
	// Read the same way a peer-initiated disconn/kick does — closing the
	// socket is the interruption mechanism spec.md §4.9 calls for.
	go func() {
		<-ctx.Done()
		s.stop()
		s.conn.Close()
	}()

	go func() {
		defer wg.Done()
		s.listenLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.writeLoop(stdin)
		s.stop()
	}()

	wg.Wait()
}

// writeLoop reads lines from stdin, trims them, and forwards well-formed
// requests to the server, exactly as writer_thread does: a bare "disconn$"
// always terminates the loop after being sent, and the loop also exits
// cleanly on EOF or a write error.
func (s *State) writeLoop(stdin io.Reader) {
	scanner := bufio.NewScanner(stdin)
	for s.isRunning() && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprintln(os.Stderr, "Empty input detected. Please enter input.")
			continue
		}

		disconnecting := line == wire.CmdDisconn+"$"
		if !disconnecting && !validateRequestFormat(line) {
			// don't send if it is invalid, wait for new stdin
			continue
		}

		if _, err := s.conn.Write([]byte(line)); err != nil {
			fmt.Fprintln(os.Stderr, "udp socket write")
			return
		}

		if disconnecting {
			return
		}
	}
}

// listenLoop reads datagrams from the server and routes them until running
// is cleared or a read error occurs, mirroring listener_thread.
func (s *State) listenLoop(ctx context.Context) {
	buf := make([]byte, wire.BufferSize)
	for s.isRunning() {
		n, err := s.conn.Read(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			fmt.Fprintln(os.Stderr, "udp socket read error")
			s.stop()
			return
		}
		s.route(buf[:n])
	}
}

// route dispatches one parsed server frame, mirroring route_acknowledge's
// per-command switch: conn/rename update local name, say/sayto/history are
// appended to the transcript file, disconn/kick stop the client, and ping
// gets an immediate ret-ping reply.
func (s *State) route(payload []byte) {
	frame, err := wire.Parse(payload)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error$ Invalid acknowledge format. Expected 'command$content' from server")
		return
	}

	switch frame.Command {
	case wire.CmdConn:
		name := extractConnName(frame.Content)
		if name != "" {
			s.setConnected(name)
		}
		fmt.Println(frame.Content)
	case wire.CmdRename:
		if name := extractRenameName(frame.Content); name != "" {
			s.mu.Lock()
			s.name = name
			s.mu.Unlock()
		}
		fmt.Println(frame.Content)
	case wire.CmdSayTo, wire.CmdSay, wire.CmdHistory:
		s.writeTranscript(frame.Content)
	case wire.CmdDisconn:
		fmt.Println(frame.Content)
		s.stop()
	case wire.CmdKick:
		fmt.Println(frame.Content)
		s.stop()
	case wire.CmdPing:
		if _, err := s.conn.Write(wire.Format(wire.CmdRetPing, "")); err != nil {
			log.Printf("[client] ret-ping write: %v", err)
		}
	default:
		fmt.Fprintln(os.Stderr, "Error$ Error from Server. Please make appropriate changes.")
	}
}

// validateRequestFormat mirrors chat_client.c's validate_request_format:
// a local pre-send check for a '$' separator, a nonempty command before it,
// and nonempty content after it, each with its own diagnostic printed to
// standard error before the line is dropped. Callers handle the "disconn$"
// bare-content exemption themselves, same as writer_thread does.
func validateRequestFormat(line string) bool {
	idx := strings.IndexByte(line, '$')
	if idx < 0 {
		fmt.Fprintln(os.Stderr, "$ Error$ missing '$' sign in input")
		return false
	}
	if idx == 0 {
		fmt.Fprintln(os.Stderr, "Command Error$ No command detected")
		return false
	}
	if idx == len(line)-1 {
		fmt.Fprintln(os.Stderr, "Input Error$ No content after $")
		return false
	}
	return true
}

func (s *State) writeTranscript(content string) {
	if s.transcript == nil {
		return
	}
	fmt.Fprintln(s.transcript, content)
}

// extractConnName pulls the connected display name out of a welcome
// message of the form " Hi <name>, you have successfully connected to the
// chat" — grounded on chat_client.c's "content + 3" / comma-scan logic.
func extractConnName(content string) string {
	const prefix = "Hi "
	idx := strings.Index(content, prefix)
	if idx < 0 {
		return ""
	}
	rest := content[idx+len(prefix):]
	end := strings.IndexByte(rest, ',')
	if end <= 0 {
		return ""
	}
	return rest[:end]
}

// extractRenameName pulls the new display name out of a rename
// confirmation of the form " You are now known as <name>".
func extractRenameName(content string) string {
	const prefix = "You are now known as "
	idx := strings.Index(content, prefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(content[idx+len(prefix):])
}
