// Package router implements the command dispatch and handlers of spec.md
// §4.5/§4.6: classify an incoming frame, invoke the matching handler, and
// surface uniform Error$ replies for anything the router itself rejects.
// The dispatch switch is grounded on the teacher's processControl in
// client.go — a flat switch over a message-type string, one case per verb,
// each case self-contained and defensive about its own preconditions.
package router

import (
	"fmt"
	"log"
	"net"
	"strings"

	"ichat/internal/history"
	"ichat/internal/liveness"
	"ichat/internal/roster"
	"ichat/internal/wire"
)

// AdminPort is the well-known source port that marks a conn as admin,
// per spec.md §4.6/§9 — never generalized into a password or role system.
const AdminPort = 6666

// Outbound is the minimal send capability the router needs: write a raw
// payload to a specific address. The server's UDP listener implements this.
type Outbound interface {
	SendTo(addr *net.UDPAddr, payload []byte) error
}

// AuditLogger receives a record of privileged actions (currently just
// kicks). Optional — a nil AuditLogger is a valid, silent no-op.
type AuditLogger interface {
	LogKick(actorName, targetName string)
}

// Forgetter releases any per-address bookkeeping kept outside the roster
// (the ingress rate limiter's per-address token bucket) once an address
// disconnects, so that state doesn't linger for churned-through addresses.
// Optional — a nil Forgetter is a valid no-op.
type Forgetter interface {
	Forget(addr *net.UDPAddr)
}

// Router holds every collaborator a handler might need and dispatches
// parsed frames to the handler for their command.
type Router struct {
	Roster    *roster.Roster
	History   *history.Ring
	Pending   *liveness.PendingSet
	Out       Outbound
	Audit     AuditLogger
	Forgetter Forgetter
}

// New constructs a Router. pending may be nil if the caller doesn't wire up
// liveness (e.g. in unit tests that don't exercise ret-ping).
func New(r *roster.Roster, h *history.Ring, pending *liveness.PendingSet, out Outbound, audit AuditLogger) *Router {
	return &Router{Roster: r, History: h, Pending: pending, Out: out, Audit: audit}
}

func (rt *Router) forget(addr *net.UDPAddr) {
	if rt.Forgetter != nil {
		rt.Forgetter.Forget(addr)
	}
}

// HandleDatagram parses payload and dispatches it to the matching handler.
// It is the single entry point the ingress pump calls per inbound datagram.
// A parse failure is answered with the uniform FormatError reply here,
// before any handler runs — the router, not the codec, owns the reply.
func (rt *Router) HandleDatagram(payload []byte, addr *net.UDPAddr) {
	frame, err := wire.Parse(payload)
	if err != nil {
		rt.sendError(addr, " Invalid request format. Expected 'command$content'")
		return
	}

	switch frame.Command {
	case wire.CmdConn:
		rt.handleConn(frame.Content, addr)
	case wire.CmdSay:
		rt.handleSay(frame.Content, addr)
	case wire.CmdSayTo:
		rt.handleSayTo(frame.Content, addr)
	case wire.CmdDisconn:
		rt.handleDisconn(frame.Content, addr)
	case wire.CmdMute:
		rt.handleMute(frame.Content, addr)
	case wire.CmdUnmute:
		rt.handleUnmute(frame.Content, addr)
	case wire.CmdRename:
		rt.handleRename(frame.Content, addr)
	case wire.CmdKick:
		rt.handleKick(frame.Content, addr)
	case wire.CmdRetPing:
		rt.handleRetPing(addr)
	default:
		rt.sendError(addr, fmt.Sprintf(" Unknown command '%s'. Supported: conn, say, sayto, disconn, mute, unmute, rename, kick", frame.Command))
	}
}

// send writes a formatted "command$content\n" line to addr, logging (but not
// propagating) any transport failure — per spec.md §7, a failed outbound
// send is a local, transient concern that never mutates roster state.
func (rt *Router) send(addr *net.UDPAddr, command, content string) {
	if err := rt.Out.SendTo(addr, wire.FormatLine(command, content)); err != nil {
		log.Printf("[router] send %s to %s: %v", command, addr, err)
	}
}

func (rt *Router) sendError(addr *net.UDPAddr, content string) {
	rt.send(addr, wire.CmdError, content)
}

// SendError sends an Error$ frame to addr. Exported so callers outside the
// router (the ingress pump's rate limiter, for instance) can surface a
// rejection without faking an inbound datagram just to route it back out.
func (rt *Router) SendError(addr *net.UDPAddr, content string) {
	rt.sendError(addr, content)
}

// BroadcastSystem sends a "say$ System: <text>" line to every currently
// connected entry, unconditionally — matching the original server's kick and
// eviction broadcasts, which send to the whole client list with no mute
// filtering (mute only ever applies to a real sender's own say; sayto is
// never filtered either).
// It satisfies liveness.Broadcaster so the liveness monitor can reuse it.
func (rt *Router) BroadcastSystem(text string) {
	for _, snap := range rt.Roster.All() {
		rt.send(snap.Addr, wire.CmdSay, " System: "+text)
	}
}

func splitSayTo(content string) (recipient, text string, ok bool) {
	content = strings.TrimSpace(content)
	idx := strings.IndexByte(content, ' ')
	if idx < 0 {
		return "", "", false
	}
	recipient = content[:idx]
	text = strings.TrimSpace(content[idx+1:])
	if recipient == "" || text == "" {
		return "", "", false
	}
	return recipient, text, true
}
