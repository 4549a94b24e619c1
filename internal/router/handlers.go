package router

import (
	"errors"
	"net"

	"ichat/internal/roster"
)

// handleConn implements spec.md §4.6 conn: validate the name, reject if
// taken, insert with admin derived from the source port, reply, then replay
// history. Grounded on handle_conn in chat_server.c (validate → add_client →
// reply → get_history loop).
func (rt *Router) handleConn(content string, addr *net.UDPAddr) {
	name, err := roster.ValidateName(content)
	if err != nil {
		rt.sendError(addr, " No name or too long of a name. Expected 'conn$ [NAME]'")
		return
	}

	admin := addr.Port == AdminPort
	if _, err := rt.Roster.Add(name, addr, admin); err != nil {
		rt.sendError(addr, " Name already taken. Please choose another name")
		return
	}

	rt.send(addr, "conn", " Hi "+name+", you have successfully connected to the chat")

	// Replay the history snapshot to the new entry. The add above and this
	// replay both happen before any other datagram for this client can be
	// processed (the ingress pump only schedules the NEXT datagram after
	// this one), so no live say can interleave ahead of the replay from this
	// client's point of view.
	for _, line := range rt.History.Snapshot() {
		if err := rt.Out.SendTo(addr, []byte(line)); err != nil {
			break
		}
	}
}

// handleSay implements spec.md §4.6 say: require membership, format the
// outbound line, deliver to every entry not muting the sender (sender
// included unless self-muted), append to history, and touch the sender.
func (rt *Router) handleSay(content string, addr *net.UDPAddr) {
	if content == "" {
		rt.sendError(addr, " No message content or too long of a message. Expected 'say$ [MESSAGE]'")
		return
	}

	sender := rt.Roster.FindByAddr(addr)
	if sender == nil {
		rt.sendError(addr, " You have not connected to server yet. Please connect to server using 'conn$ [NAME].")
		return
	}

	line := " " + sender.Name + ": " + content
	for _, snap := range rt.Roster.All() {
		if snap.Entry.IsMuted(sender.Name) {
			continue
		}
		rt.send(snap.Addr, "say", line)
	}

	rt.History.Append(string(formatHistoryLine(sender.Name, content)))
	rt.Roster.Touch(addr)
}

// handleSayTo implements spec.md §4.6 sayto: parse "<recipient> <text>",
// resolve the recipient by name, and deliver to both recipient and sender
// (echo). No history, no mute filtering — directed messages bypass both.
func (rt *Router) handleSayTo(content string, addr *net.UDPAddr) {
	sender := rt.Roster.FindByAddr(addr)
	if sender == nil {
		rt.sendError(addr, " You have not connected to server yet. Please connect to server using 'conn$ [NAME].")
		return
	}

	recipientName, text, ok := splitSayTo(content)
	if !ok {
		rt.sendError(addr, " Expected 'sayto$ [RECIPIENTNAME] [MESSAGE]'")
		return
	}

	recipient := rt.Roster.FindByName(recipientName)
	if recipient == nil {
		rt.sendError(addr, " Recipient not found, Please double check recipient name. Format: 'sayto$ [NAME] [MSG]'.")
		return
	}

	line := " " + sender.Name + ": " + text
	rt.send(recipient.Addr, "sayto", line)
	rt.send(addr, "sayto", line)
	rt.Roster.Touch(addr)
}

// handleDisconn implements spec.md §4.6 disconn: content must be empty,
// removal is best-effort, and the reply is unconditional. Also clears any
// pending ping for addr so a self-disconnect during the ping window
// preempts liveness eviction, per spec.md §4.7's tie-break rule.
func (rt *Router) handleDisconn(content string, addr *net.UDPAddr) {
	if content != "" {
		rt.sendError(addr, " Invalid disconn$ command. Expected 'disconn$'")
		return
	}
	_ = rt.Roster.RemoveByAddr(addr)
	if rt.Pending != nil {
		rt.Pending.Clear(addr)
	}
	rt.forget(addr)
	rt.send(addr, "disconn", " Disconnected. Bye!")
}

// handleMute implements spec.md §4.6 mute: silent, idempotent, tolerant of
// an absent target. Self-mute is allowed (it governs whether the sender
// receives its own say, per spec.md §9).
func (rt *Router) handleMute(target string, addr *net.UDPAddr) {
	e := rt.Roster.FindByAddr(addr)
	if e == nil || target == "" {
		return
	}
	e.Mute(target)
	rt.Roster.Touch(addr)
}

// handleUnmute implements spec.md §4.6 unmute: silent, idempotent.
func (rt *Router) handleUnmute(target string, addr *net.UDPAddr) {
	e := rt.Roster.FindByAddr(addr)
	if e == nil || target == "" {
		return
	}
	e.Unmute(target)
	rt.Roster.Touch(addr)
}

// handleRename implements spec.md §4.6 rename: validate the new name,
// delegate the NotConnected/NameTaken/Noop rules to the roster's atomic
// Rename, and reply on success only (failures get a tailored Error$).
func (rt *Router) handleRename(content string, addr *net.UDPAddr) {
	name, verr := roster.ValidateName(content)
	if verr != nil {
		rt.sendError(addr, " No name provided or name too long. Expected 'rename$ [NEW_NAME]'")
		return
	}

	switch err := rt.Roster.Rename(addr, name); {
	case err == nil:
		rt.Roster.Touch(addr)
		rt.send(addr, "rename", " You are now known as "+name)
	case errors.Is(err, roster.ErrNotFound):
		rt.sendError(addr, " You are not connected. Please connect first using 'conn$ [NAME]'")
	case errors.Is(err, roster.ErrNameTaken):
		rt.sendError(addr, " Name '"+name+"' already in use. Please choose another name")
	case errors.Is(err, roster.ErrNoop):
		rt.sendError(addr, " You are already named '"+name+"'")
	default:
		rt.sendError(addr, " Rename failed")
	}
}

// handleKick implements spec.md §4.6 kick: only an admin entry may invoke
// it, the target must exist and differ from the requester; on success the
// target is notified and removed, then every remaining entry is told.
// Grounded on chat_server.c's handle_kick (same ordering: validate
// requester, validate target, notify target, remove, broadcast).
func (rt *Router) handleKick(content string, addr *net.UDPAddr) {
	requester := rt.Roster.FindByAddr(addr)
	if requester == nil {
		rt.sendError(addr, " You are not connected. Please connect first")
		return
	}
	if addr.Port != AdminPort || !requester.Admin {
		rt.sendError(addr, " Only admin can kick users")
		return
	}

	targetName, err := roster.ValidateName(content)
	if err != nil {
		rt.sendError(addr, " No name provided. Expected 'kick$ [NAME]'")
		return
	}

	target := rt.Roster.FindByName(targetName)
	if target == nil {
		rt.sendError(addr, " User '"+targetName+"' not found")
		return
	}
	if target == requester {
		rt.sendError(addr, " You cannot kick yourself")
		return
	}

	targetAddr := target.Addr
	rt.send(targetAddr, "kick", " You have been removed from the chat")
	_ = rt.Roster.RemoveByAddr(targetAddr)
	if rt.Pending != nil {
		rt.Pending.Clear(targetAddr)
	}
	rt.forget(targetAddr)

	if rt.Audit != nil {
		rt.Audit.LogKick(requester.Name, targetName)
	}

	rt.BroadcastSystem(targetName + " has been removed from the chat")
	rt.Roster.Touch(addr)
}

// handleRetPing implements spec.md §4.6 ret-ping: silent, touches the
// entry if any, and clears the matching pending-ping record.
func (rt *Router) handleRetPing(addr *net.UDPAddr) {
	rt.Roster.Touch(addr)
	if rt.Pending != nil {
		rt.Pending.Clear(addr)
	}
}

// formatHistoryLine renders a say broadcast as the pre-shaped
// "history$ <sender>: <text>\n" line the ring stores, so replay never has to
// rebuild it (spec.md §4.3).
func formatHistoryLine(sender, text string) []byte {
	return []byte("history$ " + sender + ": " + text + "\n")
}
