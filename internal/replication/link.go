package replication

import "github.com/kvwire/kvwire/internal/respwire"

// Sink is the write half of a replica connection once it has been
// detached from the normal request/response loop — a redcon
// DetachedConn satisfies this via WriteRaw/Flush.
type Sink interface {
	WriteRaw(data []byte)
	Flush() error
}

// Link owns one replica's cursor into the log and its send buffer.
// Ordering to a given replica is strictly log order; a write failure
// detaches the link and the replica is responsible for reconnecting.
type Link struct {
	sink   Sink
	cursor int
	stop   chan struct{}
}

func NewLink(sink Sink) *Link {
	return &Link{sink: sink, stop: make(chan struct{})}
}

// Run streams frames from log to the link until Close is called or a
// write fails.
func (lk *Link) Run(log *Log) error {
	for {
		frames, next := log.Wait(lk.cursor, lk.stop)
		select {
		case <-lk.stop:
			return nil
		default:
		}
		if len(frames) == 0 {
			continue
		}
		for _, f := range frames {
			lk.sink.WriteRaw(respwire.EncodeArray(f))
		}
		if err := lk.sink.Flush(); err != nil {
			return err
		}
		lk.cursor = next
	}
}

// Close detaches the link; Run returns on its next wakeup.
func (lk *Link) Close() {
	select {
	case <-lk.stop:
	default:
		close(lk.stop)
	}
}
