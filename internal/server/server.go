// Package server wires internal/session's command dispatcher to a
// redcon listener, owning per-connection Session lifecycle and, when
// configured as a replica, the outbound connection to a master.
package server

import (
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/blocking"
	"github.com/kvwire/kvwire/internal/config"
	"github.com/kvwire/kvwire/internal/metrics"
	"github.com/kvwire/kvwire/internal/pubsub"
	"github.com/kvwire/kvwire/internal/replication"
	"github.com/kvwire/kvwire/internal/session"
	"github.com/kvwire/kvwire/internal/store"
)

// Server owns the shared collaborators and the redcon listener built
// from them.
type Server struct {
	cfg  *config.Config
	deps *session.Deps

	nextID uint64
}

// New builds every shared collaborator (stores, coordinator, pubsub
// registry, replication log/fanout/state) and returns a Server ready to
// Run. It does not start listening.
func New(cfg *config.Config) *Server {
	repl := &replication.State{
		ReplID:    replication.GenerateReplID(),
		IsReplica: cfg.ReplicaOf,
	}
	if cfg.ReplicaOf {
		repl.MasterHost = cfg.MasterHost
		repl.MasterPort = cfg.MasterPort
	}
	fanout := replication.NewFanout()
	repl.Fanout = fanout
	replLog := replication.NewLog()

	notifier := &registryNotifier{}
	reg := store.New(notifier)
	coord := blocking.New(listPopperAdapter{reg.List}, streamReaderAdapter{reg.Stream})
	notifier.coord = coord

	deps := &session.Deps{
		Store:       reg,
		Coordinator: coord,
		PubSub:      pubsub.New(),
		Repl:        repl,
		ReplLog:     replLog,
		Fanout:      fanout,
	}

	session.RegisterCommands()

	return &Server{cfg: cfg, deps: deps}
}

// Run starts the metrics endpoint (if configured), the outbound
// replica-of connection (if configured), and blocks serving RESP
// connections on cfg.Port.
func (srv *Server) Run() error {
	if srv.cfg.MetricsAddr != "" {
		log.Printf("serving metrics on %s", srv.cfg.MetricsAddr)
		go func() {
			if err := <-metrics.Serve(srv.cfg.MetricsAddr); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	if srv.cfg.ReplicaOf {
		srv.startReplicaLink()
	}

	go srv.sampleReplicaGauge()

	addr := fmt.Sprintf(":%d", srv.cfg.Port)
	log.Printf("kvwire listening on %s", addr)

	return redcon.ListenAndServe(addr,
		func(conn redcon.Conn, cmd redcon.Command) {
			sess, _ := conn.Context().(*session.Session)
			sess.Handle(conn, cmd)
		},
		func(conn redcon.Conn) bool {
			id := atomic.AddUint64(&srv.nextID, 1)
			sess := session.New(id, srv.deps)
			conn.SetContext(sess)
			metrics.ConnectedClients.Inc()
			return true
		},
		func(conn redcon.Conn, err error) {
			metrics.ConnectedClients.Dec()
			if sess, ok := conn.Context().(*session.Session); ok {
				sess.Cleanup()
			}
		},
	)
}

// sampleReplicaGauge periodically syncs the replica_links gauge from the
// fanout's actual link count; Fanout has no attach/detach hooks of its
// own to push the count instead.
func (srv *Server) sampleReplicaGauge() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		metrics.ReplicaLinks.Set(float64(srv.deps.Fanout.Count()))
	}
}

// startReplicaLink dials the configured master and applies its command
// stream to this process's own stores as it arrives.
func (srv *Server) startReplicaLink() {
	applySession := session.New(0, srv.deps)
	mc := &replication.MasterClient{
		Host:       srv.cfg.MasterHost,
		Port:       strconv.Itoa(srv.cfg.MasterPort),
		ListenPort: srv.cfg.Port,
		Apply:      applySession.ApplyFromMaster,
		OnConnected: func(ok bool) {
			srv.deps.Repl.ConnectedOK = ok
		},
	}
	go func() {
		for {
			if err := mc.Run(); err != nil {
				log.Printf("replica link to %s:%d: %v", srv.cfg.MasterHost, srv.cfg.MasterPort, err)
			}
			srv.deps.Repl.ConnectedOK = false
		}
	}()
}

// registryNotifier bridges internal/store's Notifier interface to the
// blocking coordinator, which is constructed after the stores exist
// (both need each other), hence the two-phase wiring in New.
type registryNotifier struct {
	coord *blocking.Coordinator
}

func (n *registryNotifier) NotifyList(key string) {
	if n.coord != nil {
		n.coord.NotifyList(key)
	}
}

func (n *registryNotifier) NotifyStream(key string) {
	if n.coord != nil {
		n.coord.NotifyStream(key)
	}
}

type listPopperAdapter struct {
	l *store.ListStore
}

func (a listPopperAdapter) TryLPopOne(key string) ([]byte, bool) {
	return a.l.TryLPopOne(key)
}

type streamReaderAdapter struct {
	s *store.StreamStore
}

func (a streamReaderAdapter) XReadAfter(key string, after blocking.StreamReadID) []blocking.StreamEntry {
	entries := a.s.XReadAfter(key, store.StreamID{MS: after.MS, Seq: after.Seq})
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
