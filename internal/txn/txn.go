// Package txn implements the per-connection MULTI/EXEC/DISCARD queue
// described in spec.md §4.8.
package txn

// Buffer holds one connection's transaction state.
type Buffer struct {
	inMulti bool
	queue   [][][]byte
}

func (b *Buffer) InMulti() bool { return b.inMulti }

// Len returns the number of queued commands.
func (b *Buffer) Len() int { return len(b.queue) }

// Multi enters InMulti, clearing any stale queue. Returns false if
// already in a transaction (caller replies with the nesting error and
// must NOT clear the existing queue).
func (b *Buffer) Multi() bool {
	if b.inMulti {
		return false
	}
	b.inMulti = true
	b.queue = nil
	return true
}

// Queue appends argv to the pending transaction. Callers must only call
// this while InMulti() is true.
func (b *Buffer) Queue(argv [][]byte) {
	b.queue = append(b.queue, argv)
}

// Discard clears the queue and exits InMulti, returning false if there
// was no transaction in progress.
func (b *Buffer) Discard() bool {
	if !b.inMulti {
		return false
	}
	b.inMulti = false
	b.queue = nil
	return true
}

// Exec exits InMulti and returns the queued commands for the caller to
// dispatch, or ok=false if there was no transaction in progress.
func (b *Buffer) Exec() (queued [][][]byte, ok bool) {
	if !b.inMulti {
		return nil, false
	}
	b.inMulti = false
	queued = b.queue
	b.queue = nil
	return queued, true
}
