package session

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/metrics"
)

// handlerFunc executes one command's semantics and writes its reply. It
// returns mutated=true when the command committed a change that must be
// captured to the replication log (ignored for non-write commands).
type handlerFunc func(s *Session, conn redcon.Conn, args [][]byte) (mutated bool)

type cmdSpec struct {
	// arity follows the Redis convention: a positive value is the exact
	// argc (command name included); a negative value is a minimum.
	arity   int
	isWrite bool
	handler handlerFunc
}

var commandTable = map[string]cmdSpec{}

func register(name string, arity int, isWrite bool, h handlerFunc) {
	commandTable[name] = cmdSpec{arity: arity, isWrite: isWrite, handler: h}
}

func arityOK(arity, argc int) bool {
	if arity >= 0 {
		return argc == arity
	}
	return argc >= -arity
}

// subscribedAllowed is the command set a connection in ModeSubscribed
// may still issue, per spec.md §4.10.
var subscribedAllowed = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true,
	"PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true, "RESET": true,
}

// Handle is the single entry point redcon's server (and the subscribed
// connection's own read loop) calls for every parsed command.
func (s *Session) Handle(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		return
	}
	name := strings.ToUpper(string(cmd.Args[0]))
	spec, ok := commandTable[name]
	if !ok {
		conn.WriteError(fmt.Sprintf("ERR Unknown command '%s'", cmd.Args[0]))
		return
	}
	if !arityOK(spec.arity, len(cmd.Args)) {
		conn.WriteError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
		return
	}
	if s.mode == ModeSubscribed && !subscribedAllowed[name] {
		conn.WriteError(fmt.Sprintf(
			"ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context",
			strings.ToLower(name)))
		return
	}
	if s.txn.InMulti() && name != "EXEC" && name != "DISCARD" && name != "MULTI" && name != "WATCH" {
		s.txn.Queue(cmd.Args)
		conn.WriteString("QUEUED")
		return
	}
	if spec.isWrite && s.deps.Repl.IsReplica && !s.isFromMaster {
		conn.WriteError("READONLY You can't write against a read only replica.")
		return
	}
	s.run(conn, spec, cmd.Args)
}

// run executes spec's handler, records its outcome to Prometheus, and
// captures a successful write to the replication log. It is also the
// path EXEC uses for each queued command. The replica's master-apply
// path (ApplyFromMaster) does not use it.
func (s *Session) run(conn redcon.Conn, spec cmdSpec, args [][]byte) {
	name := strings.ToUpper(string(args[0]))
	start := time.Now()
	mutated := spec.handler(s, conn, args)
	metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if spec.isWrite && !mutated {
		outcome = "noop"
	}
	metrics.CommandsTotal.WithLabelValues(name, outcome).Inc()
	if spec.isWrite && mutated && s.deps.ReplLog != nil {
		s.deps.ReplLog.Append(args, wireLen(args))
	}
}

func wireLen(args [][]byte) int {
	n := 0
	for _, a := range args {
		n += len(a) + 16 // header/CRLF overhead; exact framing doesn't matter for offset bookkeeping
	}
	return n
}

// ApplyFromMaster runs a command received over the replication stream:
// it bypasses arity/mode/READONLY gating (the master is trusted) and
// never re-captures to this replica's own log.
func (s *Session) ApplyFromMaster(args [][]byte) {
	if len(args) == 0 {
		return
	}
	s.isFromMaster = true
	defer func() { s.isFromMaster = false }()
	name := strings.ToUpper(string(args[0]))
	spec, ok := commandTable[name]
	if !ok {
		return
	}
	spec.handler(s, discardConn{}, args)
}

// discardConn satisfies redcon.Conn for the replica-apply path, which
// has no client to reply to.
type discardConn struct{}

func (discardConn) RemoteAddr() string             { return "master" }
func (discardConn) Close() error                   { return nil }
func (discardConn) WriteError(msg string)          {}
func (discardConn) WriteString(str string)         {}
func (discardConn) WriteBulk(bulk []byte)          {}
func (discardConn) WriteBulkString(bulk string)    {}
func (discardConn) WriteInt(num int)               {}
func (discardConn) WriteInt64(num int64)           {}
func (discardConn) WriteUint64(num uint64)         {}
func (discardConn) WriteArray(count int)           {}
func (discardConn) WriteNull()                     {}
func (discardConn) WriteRaw(data []byte)           {}
func (discardConn) WriteAny(v interface{})         {}
func (discardConn) Context() interface{}           { return nil }
func (discardConn) SetContext(v interface{})       {}
func (discardConn) SetReadBuffer(bytes int)        {}
func (discardConn) Detach() redcon.DetachedConn    { return nil }
func (discardConn) ReadPipeline() []redcon.Command { return nil }
func (discardConn) PeekPipeline() []redcon.Command { return nil }
func (discardConn) NetConn() net.Conn              { return nil }
