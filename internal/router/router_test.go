package router

import (
	"net"
	"strings"
	"sync"
	"testing"

	"ichat/internal/history"
	"ichat/internal/liveness"
	"ichat/internal/roster"
)

// sentMsg records one outbound payload captured by fakeOut.
type sentMsg struct {
	addr    *net.UDPAddr
	payload string
}

type fakeOut struct {
	mu  sync.Mutex
	out []sentMsg
}

func (f *fakeOut) SendTo(addr *net.UDPAddr, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sentMsg{addr: addr, payload: string(payload)})
	return nil
}

func (f *fakeOut) to(addr *net.UDPAddr) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.out {
		if m.addr.String() == addr.String() {
			out = append(out, m.payload)
		}
	}
	return out
}

type fakeAudit struct {
	mu    sync.Mutex
	kicks []string // "actor>target"
}

func (f *fakeAudit) LogKick(actor, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks = append(f.kicks, actor+">"+target)
}

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func newRouter() (*Router, *fakeOut, *fakeAudit) {
	out := &fakeOut{}
	audit := &fakeAudit{}
	rt := New(roster.New(), history.New(0), liveness.NewPendingSet(), out, audit)
	return rt, out, audit
}

func TestHandleConnSuccessAndReplay(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)

	rt.HandleDatagram([]byte("conn$alice"), a)

	replies := out.to(a)
	if len(replies) != 1 || !strings.Contains(replies[0], "Hi alice") {
		t.Fatalf("expected conn welcome reply, got %v", replies)
	}
	if rt.Roster.FindByName("alice") == nil {
		t.Fatalf("expected alice registered in roster")
	}
}

func TestHandleConnNameTaken(t *testing.T) {
	rt, out, _ := newRouter()
	rt.HandleDatagram([]byte("conn$alice"), addr(2000))

	b := addr(2001)
	rt.HandleDatagram([]byte("conn$alice"), b)

	replies := out.to(b)
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "Error$") {
		t.Fatalf("expected Error reply for taken name, got %v", replies)
	}
}

func TestHandleConnAdminFromPort(t *testing.T) {
	rt, _, _ := newRouter()
	a := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: AdminPort}
	rt.HandleDatagram([]byte("conn$root"), a)

	e := rt.Roster.FindByName("root")
	if e == nil || !e.Admin {
		t.Fatalf("expected root registered as admin")
	}
}

func TestHandleSayBroadcastsToAll(t *testing.T) {
	rt, out, _ := newRouter()
	a, b := addr(2000), addr(2001)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("conn$bob"), b)

	rt.HandleDatagram([]byte("say$hello everyone"), a)

	for _, who := range []*net.UDPAddr{a, b} {
		found := false
		for _, m := range out.to(who) {
			if strings.HasPrefix(m, "say$") && strings.Contains(m, "alice: hello everyone") {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected say broadcast delivered to %s", who)
		}
	}
}

func TestHandleSayNotConnected(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("say$hello"), a)

	replies := out.to(a)
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "Error$") {
		t.Fatalf("expected Error reply for unconnected say, got %v", replies)
	}
}

func TestHandleSayRespectsMute(t *testing.T) {
	rt, out, _ := newRouter()
	a, b := addr(2000), addr(2001)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("conn$bob"), b)

	rt.HandleDatagram([]byte("mute$alice"), b) // bob mutes alice

	rt.HandleDatagram([]byte("say$hi"), a)

	for _, m := range out.to(b) {
		if strings.HasPrefix(m, "say$") && strings.Contains(m, "alice:") {
			t.Fatalf("expected bob to not receive alice's say after muting, got %v", out.to(b))
		}
	}
	found := false
	for _, m := range out.to(a) {
		if strings.HasPrefix(m, "say$") && strings.Contains(m, "alice:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alice to still receive her own say")
	}
}

func TestHandleSayAppendsHistory(t *testing.T) {
	rt, _, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("say$hi there"), a)

	snap := rt.History.Snapshot()
	if len(snap) != 1 || !strings.Contains(snap[0], "alice: hi there") {
		t.Fatalf("expected history entry, got %v", snap)
	}
}

func TestHandleSayToDeliversBothSidesOnly(t *testing.T) {
	rt, out, _ := newRouter()
	a, b, c := addr(2000), addr(2001), addr(2002)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("conn$bob"), b)
	rt.HandleDatagram([]byte("conn$carol"), c)
	carolBefore := len(out.to(c))

	rt.HandleDatagram([]byte("sayto$bob secret"), a)

	if got := out.to(c); len(got) != carolBefore {
		t.Fatalf("expected carol to receive nothing, got %v", got[carolBefore:])
	}
	aFound, bFound := false, false
	for _, m := range out.to(a) {
		if strings.HasPrefix(m, "sayto$") {
			aFound = true
		}
	}
	for _, m := range out.to(b) {
		if strings.HasPrefix(m, "sayto$") {
			bFound = true
		}
	}
	if !aFound || !bFound {
		t.Fatalf("expected both sender and recipient to receive sayto, a=%v b=%v", aFound, bFound)
	}
}

func TestHandleSayToUnknownRecipient(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("conn$alice"), a)
	before := len(out.to(a))
	rt.HandleDatagram([]byte("sayto$ghost hi"), a)

	replies := out.to(a)[before:]
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "Error$") {
		t.Fatalf("expected Error reply for unknown recipient, got %v", replies)
	}
}

func TestHandleDisconnRemovesAndReplies(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("disconn$"), a)

	if rt.Roster.FindByName("alice") != nil {
		t.Fatalf("expected alice removed after disconn")
	}
	found := false
	for _, m := range out.to(a) {
		if strings.HasPrefix(m, "disconn$") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected disconn reply")
	}
}

func TestHandleMuteUnmuteAreSilent(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("conn$alice"), a)
	before := len(out.to(a))

	rt.HandleDatagram([]byte("mute$bob"), a)
	rt.HandleDatagram([]byte("unmute$bob"), a)
	rt.HandleDatagram([]byte("mute$nosuchuser"), a)

	if len(out.to(a)) != before {
		t.Fatalf("expected mute/unmute to produce no replies, got %v", out.to(a))
	}
}

func TestHandleRenameSuccess(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("rename$alicia"), a)

	if rt.Roster.FindByName("alicia") == nil {
		t.Fatalf("expected roster renamed to alicia")
	}
	found := false
	for _, m := range out.to(a) {
		if strings.HasPrefix(m, "rename$") && strings.Contains(m, "alicia") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rename success reply, got %v", out.to(a))
	}
}

func TestHandleRenameNameTaken(t *testing.T) {
	rt, out, _ := newRouter()
	a, b := addr(2000), addr(2001)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("conn$bob"), b)

	rt.HandleDatagram([]byte("rename$alice"), b)

	replies := out.to(b)
	if len(replies) == 0 || !strings.HasPrefix(replies[len(replies)-1], "Error$") {
		t.Fatalf("expected Error reply for taken rename target, got %v", replies)
	}
}

func TestHandleRenameNotConnected(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("rename$alice"), a)

	replies := out.to(a)
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "Error$") {
		t.Fatalf("expected Error reply for unconnected rename, got %v", replies)
	}
}

func TestHandleKickRequiresAdmin(t *testing.T) {
	rt, out, _ := newRouter()
	a, b := addr(2000), addr(2001)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("conn$bob"), b)

	rt.HandleDatagram([]byte("kick$bob"), a)

	if rt.Roster.FindByName("bob") == nil {
		t.Fatalf("expected bob not kicked by non-admin")
	}
	replies := out.to(a)
	if len(replies) == 0 || !strings.HasPrefix(replies[len(replies)-1], "Error$") {
		t.Fatalf("expected Error reply for non-admin kick, got %v", replies)
	}
}

func TestHandleKickSuccessBroadcastsAndAudits(t *testing.T) {
	rt, out, audit := newRouter()
	adminAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: AdminPort}
	bob := addr(2001)
	rt.HandleDatagram([]byte("conn$root"), adminAddr)
	rt.HandleDatagram([]byte("conn$bob"), bob)

	rt.HandleDatagram([]byte("kick$bob"), adminAddr)

	if rt.Roster.FindByName("bob") != nil {
		t.Fatalf("expected bob removed by admin kick")
	}
	kicked := false
	for _, m := range out.to(bob) {
		if strings.HasPrefix(m, "kick$") {
			kicked = true
		}
	}
	if !kicked {
		t.Fatalf("expected kick notice delivered to target")
	}
	announced := false
	for _, m := range out.to(adminAddr) {
		if strings.HasPrefix(m, "say$") && strings.Contains(m, "System: bob has been removed from the chat") {
			announced = true
		}
	}
	if !announced {
		t.Fatalf("expected kick broadcast delivered to remaining members, got %v", out.to(adminAddr))
	}
	if len(audit.kicks) != 1 || audit.kicks[0] != "root>bob" {
		t.Fatalf("expected audit log of kick, got %v", audit.kicks)
	}
}

func TestHandleKickCannotKickSelf(t *testing.T) {
	rt, out, _ := newRouter()
	adminAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: AdminPort}
	rt.HandleDatagram([]byte("conn$root"), adminAddr)

	rt.HandleDatagram([]byte("kick$root"), adminAddr)

	if rt.Roster.FindByName("root") == nil {
		t.Fatalf("expected root not to have kicked itself")
	}
	replies := out.to(adminAddr)
	if len(replies) == 0 || !strings.HasPrefix(replies[len(replies)-1], "Error$") {
		t.Fatalf("expected Error reply for self-kick, got %v", replies)
	}
}

func TestHandleRetPingIsSilentAndClearsPending(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("conn$alice"), a)
	before := len(out.to(a))

	rt.Pending.Add(a, rt.Roster.FindByName("alice").LastActive)
	rt.HandleDatagram([]byte("ret-ping$"), a)

	if rt.Pending.Has(a) {
		t.Fatalf("expected ret-ping to clear pending entry")
	}
	if len(out.to(a)) != before {
		t.Fatalf("expected ret-ping to produce no reply, got %v", out.to(a))
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("bogus$whatever"), a)

	replies := out.to(a)
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "Error$") {
		t.Fatalf("expected Error reply for unknown command, got %v", replies)
	}
}

func TestHandleMalformedFrame(t *testing.T) {
	rt, out, _ := newRouter()
	a := addr(2000)
	rt.HandleDatagram([]byte("no-dollar-sign-here"), a)

	replies := out.to(a)
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "Error$") {
		t.Fatalf("expected Error reply for malformed frame, got %v", replies)
	}
}

func TestBroadcastSystemReachesEveryone(t *testing.T) {
	rt, out, _ := newRouter()
	a, b := addr(2000), addr(2001)
	rt.HandleDatagram([]byte("conn$alice"), a)
	rt.HandleDatagram([]byte("conn$bob"), b)

	rt.BroadcastSystem("test notice")

	for _, who := range []*net.UDPAddr{a, b} {
		found := false
		for _, m := range out.to(who) {
			if strings.Contains(m, "System: test notice") {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected system broadcast to reach %s", who)
		}
	}
}
