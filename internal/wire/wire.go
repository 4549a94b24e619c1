// Package wire implements the iChat datagram framing: a single
// "command$content" payload per datagram. It has no knowledge of the
// roster, history, or any handler — it only parses and formats frames.
package wire

import (
	"errors"
	"strings"
)

// BufferSize is the maximum datagram payload this codec will accept, mirroring
// the original C server's BUFFER_SIZE. A payload of exactly BufferSize-1 bytes
// is accepted; anything at or above BufferSize is rejected.
const BufferSize = 4096

// Server→client commands.
const (
	CmdPing    = "ping"
	CmdError   = "Error"
	CmdHistory = "history"
)

// Client→server commands.
const (
	CmdConn    = "conn"
	CmdSay     = "say"
	CmdSayTo   = "sayto"
	CmdDisconn = "disconn"
	CmdMute    = "mute"
	CmdUnmute  = "unmute"
	CmdRename  = "rename"
	CmdKick    = "kick"
	CmdRetPing = "ret-ping"
)

// ErrFormat reports a malformed frame: missing '$', empty command, or an
// oversize payload.
var ErrFormat = errors.New("wire: invalid frame format")

// Frame is a parsed "command$content" datagram payload.
type Frame struct {
	Command string
	Content string
}

// Parse splits a raw datagram payload into a Frame. Command and content are
// trimmed of leading/trailing whitespace. Parse rejects payloads with no '$',
// an empty command, or a length at or beyond BufferSize.
func Parse(payload []byte) (Frame, error) {
	if len(payload) >= BufferSize {
		return Frame{}, ErrFormat
	}
	s := string(payload)
	idx := strings.IndexByte(s, '$')
	if idx < 0 {
		return Frame{}, ErrFormat
	}
	command := strings.TrimSpace(s[:idx])
	if command == "" {
		return Frame{}, ErrFormat
	}
	content := strings.TrimSpace(s[idx+1:])
	return Frame{Command: command, Content: content}, nil
}

// Format renders a command and content as a "command$content" payload.
// It does not validate command for embedded '$' characters — callers are
// expected to pass one of the Cmd* constants.
func Format(command, content string) []byte {
	return []byte(command + "$" + content)
}

// FormatLine is Format with a trailing newline appended, used for every
// server→client text reply so clients can append to a transcript file
// without having to reconstruct line breaks. content is written exactly as
// given — callers that want the conventional leading space after '$' (as in
// "conn$ Hi Alice, ...") include it in content themselves.
func FormatLine(command, content string) []byte {
	return []byte(command + "$" + content + "\n")
}
