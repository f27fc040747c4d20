package session

import (
	"net"
	"testing"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/blocking"
	"github.com/kvwire/kvwire/internal/pubsub"
	"github.com/kvwire/kvwire/internal/replication"
	"github.com/kvwire/kvwire/internal/store"
)

func init() {
	RegisterCommands()
}

// recordingConn is a redcon.Conn test double that captures every write
// as a token so assertions can inspect exactly what a handler replied.
type recordingConn struct {
	writes []string
}

func (c *recordingConn) RemoteAddr() string          { return "test" }
func (c *recordingConn) Close() error                { return nil }
func (c *recordingConn) WriteError(msg string)       { c.writes = append(c.writes, "ERR:"+msg) }
func (c *recordingConn) WriteString(str string)      { c.writes = append(c.writes, "STR:"+str) }
func (c *recordingConn) WriteBulk(bulk []byte)       { c.writes = append(c.writes, "BULK:"+string(bulk)) }
func (c *recordingConn) WriteBulkString(bulk string) { c.writes = append(c.writes, "BULK:"+bulk) }
func (c *recordingConn) WriteInt(num int)            { c.writes = append(c.writes, "INT:"+itoa(num)) }
func (c *recordingConn) WriteInt64(num int64)        { c.writes = append(c.writes, "INT:"+itoa(int(num))) }
func (c *recordingConn) WriteUint64(num uint64)      { c.writes = append(c.writes, "INT:"+itoa(int(num))) }
func (c *recordingConn) WriteArray(count int)        { c.writes = append(c.writes, "ARR:"+itoa(count)) }
func (c *recordingConn) WriteNull()                  { c.writes = append(c.writes, "NULL") }
func (c *recordingConn) WriteRaw(data []byte)        { c.writes = append(c.writes, "RAW:"+string(data)) }
func (c *recordingConn) WriteAny(v interface{})      { c.writes = append(c.writes, "ANY") }
func (c *recordingConn) Context() interface{}        { return nil }
func (c *recordingConn) SetContext(v interface{})    {}
func (c *recordingConn) SetReadBuffer(bytes int)     {}
func (c *recordingConn) Detach() redcon.DetachedConn { return nil }
func (c *recordingConn) ReadPipeline() []redcon.Command { return nil }
func (c *recordingConn) PeekPipeline() []redcon.Command { return nil }
func (c *recordingConn) NetConn() net.Conn              { return nil }

func (c *recordingConn) last() string {
	if len(c.writes) == 0 {
		return ""
	}
	return c.writes[len(c.writes)-1]
}

func itoa(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

type testAdapters struct {
	list   *store.ListStore
	stream *store.StreamStore
}

func (a testAdapters) TryLPopOne(key string) ([]byte, bool) { return a.list.TryLPopOne(key) }
func (a testAdapters) XReadAfter(key string, after blocking.StreamReadID) []blocking.StreamEntry {
	entries := a.stream.XReadAfter(key, store.StreamID{MS: after.MS, Seq: after.Seq})
	out := make([]blocking.StreamEntry, len(entries))
	for i, e := range entries {
		fields := make([]blocking.FieldPair, len(e.Fields))
		for j, f := range e.Fields {
			fields[j] = blocking.FieldPair{Name: f.Name, Value: f.Value}
		}
		out[i] = blocking.StreamEntry{ID: blocking.StreamReadID{MS: e.ID.MS, Seq: e.ID.Seq}, Fields: fields}
	}
	return out
}

func newTestSession() *Session {
	reg := store.New(nil)
	coord := blocking.New(testAdapters{list: reg.List, stream: reg.Stream}, testAdapters{list: reg.List, stream: reg.Stream})
	deps := &Deps{
		Store:       reg,
		Coordinator: coord,
		PubSub:      pubsub.New(),
		Repl:        &replication.State{Fanout: replication.NewFanout()},
		ReplLog:     replication.NewLog(),
		Fanout:      replication.NewFanout(),
	}
	return New(1, deps)
}

func cmd(args ...string) redcon.Command {
	argv := make([][]byte, len(args))
	for i, a := range args {
		argv[i] = []byte(a)
	}
	return redcon.Command{Args: argv}
}

func TestHandlePingPong(t *testing.T) {
	s := newTestSession()
	conn := &recordingConn{}
	s.Handle(conn, cmd("PING"))
	if conn.last() != "STR:PONG" {
		t.Fatalf("PING reply = %q; want STR:PONG", conn.last())
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	s := newTestSession()
	conn := &recordingConn{}
	s.Handle(conn, cmd("NOTACOMMAND"))
	if len(conn.writes) != 1 || conn.writes[0][:4] != "ERR:" {
		t.Fatalf("expected an error reply for an unknown command, got %v", conn.writes)
	}
}

func TestHandleWrongArity(t *testing.T) {
	s := newTestSession()
	conn := &recordingConn{}
	s.Handle(conn, cmd("GET"))
	if len(conn.writes) != 1 || conn.writes[0][:4] != "ERR:" {
		t.Fatalf("expected a wrong-arity error, got %v", conn.writes)
	}
}

func TestSetGetIncrRoundTrip(t *testing.T) {
	s := newTestSession()
	conn := &recordingConn{}

	s.Handle(conn, cmd("SET", "k", "1"))
	if conn.last() != "STR:OK" {
		t.Fatalf("SET reply = %q; want STR:OK", conn.last())
	}

	s.Handle(conn, cmd("GET", "k"))
	if conn.last() != "BULK:1" {
		t.Fatalf("GET reply = %q; want BULK:1", conn.last())
	}

	s.Handle(conn, cmd("INCR", "k"))
	if conn.last() != "INT:2" {
		t.Fatalf("INCR reply = %q; want INT:2", conn.last())
	}

	if s.deps.ReplLog.Len() != 2 {
		t.Fatalf("expected SET and INCR to both be captured, log has %d frames", s.deps.ReplLog.Len())
	}
}

func TestMultiQueuesAndExecReplays(t *testing.T) {
	s := newTestSession()
	conn := &recordingConn{}

	s.Handle(conn, cmd("MULTI"))
	if conn.last() != "STR:OK" {
		t.Fatalf("MULTI reply = %q; want STR:OK", conn.last())
	}

	s.Handle(conn, cmd("SET", "a", "1"))
	if conn.last() != "STR:QUEUED" {
		t.Fatalf("queued SET reply = %q; want STR:QUEUED", conn.last())
	}

	s.Handle(conn, cmd("EXEC"))
	if conn.writes[len(conn.writes)-2] != "ARR:1" {
		t.Fatalf("EXEC should open a one-element array, writes tail = %v", conn.writes[len(conn.writes)-3:])
	}
	if conn.last() != "STR:OK" {
		t.Fatalf("EXEC's queued SET reply = %q; want STR:OK", conn.last())
	}

	getConn := &recordingConn{}
	s.Handle(getConn, cmd("GET", "a"))
	if getConn.last() != "BULK:1" {
		t.Fatalf("expected the queued SET to have committed, GET = %q", getConn.last())
	}
}

func TestDiscardAbandonsQueue(t *testing.T) {
	s := newTestSession()
	conn := &recordingConn{}

	s.Handle(conn, cmd("MULTI"))
	s.Handle(conn, cmd("SET", "a", "1"))
	s.Handle(conn, cmd("DISCARD"))
	if conn.last() != "STR:OK" {
		t.Fatalf("DISCARD reply = %q; want STR:OK", conn.last())
	}

	getConn := &recordingConn{}
	s.Handle(getConn, cmd("GET", "a"))
	if getConn.last() != "NULL" {
		t.Fatalf("expected the discarded SET to never commit, GET = %q", getConn.last())
	}
}

func TestReadonlyReplicaRejectsWrites(t *testing.T) {
	s := newTestSession()
	s.deps.Repl.IsReplica = true
	conn := &recordingConn{}

	s.Handle(conn, cmd("SET", "a", "1"))
	if len(conn.writes) != 1 || conn.writes[0][:9] != "ERR:READO" {
		t.Fatalf("expected a READONLY error, got %v", conn.writes)
	}
}

func TestApplyFromMasterBypassesReadonlyGate(t *testing.T) {
	s := newTestSession()
	s.deps.Repl.IsReplica = true

	s.ApplyFromMaster([][]byte{[]byte("SET"), []byte("a"), []byte("1")})

	getConn := &recordingConn{}
	s.Handle(getConn, cmd("GET", "a"))
	if getConn.last() != "BULK:1" {
		t.Fatalf("expected the master-applied SET to have committed, GET = %q", getConn.last())
	}
}

func TestSubscribedModeRestrictsCommands(t *testing.T) {
	s := newTestSession()
	s.mode = ModeSubscribed
	conn := &recordingConn{}

	s.Handle(conn, cmd("GET", "a"))
	if len(conn.writes) != 1 || conn.writes[0][:4] != "ERR:" {
		t.Fatalf("expected GET to be rejected in subscribed mode, got %v", conn.writes)
	}
}

func TestPublishIsCapturedEvenWithoutSubscribers(t *testing.T) {
	s := newTestSession()
	conn := &recordingConn{}

	s.Handle(conn, cmd("PUBLISH", "ch", "hi"))
	if conn.last() != "INT:0" {
		t.Fatalf("PUBLISH with no subscribers reply = %q; want INT:0", conn.last())
	}
	if s.deps.ReplLog.Len() != 1 {
		t.Fatalf("expected PUBLISH to be captured to the replication log regardless of subscriber count")
	}
}
