// Package session implements the per-connection state machine and
// command dispatcher described in spec.md §4.10: mode transitions
// between Normal, InMulti (layered on Normal via the transaction
// buffer), Subscribed, and ReplicaLink, and the command table that
// drives all of it.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/blocking"
	"github.com/kvwire/kvwire/internal/pubsub"
	"github.com/kvwire/kvwire/internal/replication"
	"github.com/kvwire/kvwire/internal/store"
	"github.com/kvwire/kvwire/internal/txn"
)

// Mode is the connection's coarse operating mode. InMulti is not listed
// here: it is tracked by the transaction buffer and layers on top of
// ModeNormal, since a connection queues commands and still accepts
// EXEC/DISCARD/MULTI while remaining otherwise "normal".
type Mode int

const (
	ModeNormal Mode = iota
	ModeSubscribed
	ModeReplicaLink
)

// Deps bundles the shared, process-wide collaborators every session
// dispatches into. It is constructed once by internal/server and handed
// to every connection's Session by reference.
type Deps struct {
	Store       *store.Registry
	Coordinator *blocking.Coordinator
	PubSub      *pubsub.Registry
	Repl        *replication.State
	ReplLog     *replication.Log
	Fanout      *replication.Fanout
}

// Session is the per-connection state machine.
type Session struct {
	id   uint64
	deps *Deps

	mode Mode
	txn  txn.Buffer

	writeMu  sync.Mutex
	detached redcon.DetachedConn // non-nil once in ModeSubscribed

	isReplicaLink bool // this connection is a replica receiving fan-out
	isFromMaster  bool // true only while ApplyFromMaster is executing
	inExec        bool // true only while EXEC is running its queue
}

func New(id uint64, deps *Deps) *Session {
	return &Session{id: id, deps: deps}
}

func (s *Session) ID() uint64 { return s.id }

// ErrNoSink is returned by SendMessage before the session has entered
// subscribed mode (should not happen: pubsub only ever holds a
// Subscriber reference after Subscribe succeeds, which always detaches
// first).
var ErrNoSink = errors.New("session: no detached sink")

// SendMessage implements pubsub.Subscriber, delivering a published
// message to this client's detached connection. Writes are serialized
// per-subscriber via writeMu and bounded by a write deadline so a slow
// subscriber cannot stall the publisher indefinitely.
func (s *Session) SendMessage(channel, payload string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.detached == nil {
		return ErrNoSink
	}
	if nc := s.detached.NetConn(); nc != nil {
		_ = nc.SetWriteDeadline(time.Now().Add(2 * time.Second))
	}
	s.detached.WriteArray(3)
	s.detached.WriteBulkString("message")
	s.detached.WriteBulkString(channel)
	s.detached.WriteBulkString(payload)
	if err := s.detached.Flush(); err != nil {
		return err
	}
	if nc := s.detached.NetConn(); nc != nil {
		_ = nc.SetWriteDeadline(time.Time{})
	}
	return nil
}

// Cleanup releases every resource this session holds; called once, on
// disconnect, regardless of which mode the session was in.
func (s *Session) Cleanup() {
	s.deps.PubSub.Cleanup(s)
}

// enterSubscribedMode detaches conn on first entry and starts
// subscribedLoop to service it from here on; on a connection already in
// ModeSubscribed it just returns the existing sink.
func (s *Session) enterSubscribedMode(conn redcon.Conn) redcon.Conn {
	s.writeMu.Lock()
	if s.detached != nil {
		d := s.detached
		s.writeMu.Unlock()
		return d
	}
	dconn := conn.Detach()
	s.detached = dconn
	s.mode = ModeSubscribed
	s.writeMu.Unlock()

	go s.subscribedLoop(dconn)
	return dconn
}

// subscribedLoop reads and dispatches commands directly off the
// detached connection once a session has left redcon's own
// request/response loop, so that PUBLISH deliveries via SendMessage can
// interleave with client-issued commands on the same socket.
func (s *Session) subscribedLoop(dconn redcon.DetachedConn) {
	defer func() {
		dconn.Close()
		s.Cleanup()
	}()
	for {
		cmd, err := dconn.ReadCommand()
		if err != nil {
			return
		}
		if len(cmd.Args) == 0 {
			continue
		}
		s.Handle(dconn, cmd)
		if err := dconn.Flush(); err != nil {
			return
		}
	}
}
