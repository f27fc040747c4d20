package store

// Registry aggregates the four typed stores for the cross-store commands
// (DEL, TYPE, KEYS) that must consult every keyspace.
type Registry struct {
	KV     *KVStore
	List   *ListStore
	ZSet   *ZSetStore
	Stream *StreamStore
}

// New builds a Registry with its stores wired to notifier for the list
// and stream stores' blocking-coordinator hooks.
func New(notifier Notifier) *Registry {
	return &Registry{
		KV:     NewKVStore(),
		List:   NewListStore(notifier),
		ZSet:   NewZSetStore(),
		Stream: NewStreamStore(notifier),
	}
}

// TypeOf returns the kind key currently belongs to, KindNone if absent.
func (r *Registry) TypeOf(key string) Kind {
	switch {
	case r.KV.Exists(key):
		return KindString
	case r.List.LLen(key) > 0:
		return KindList
	case r.ZSet.Exists(key):
		return KindZSet
	case r.Stream.Exists(key):
		return KindStream
	default:
		return KindNone
	}
}

// CheckType returns ErrWrongType if key exists under a kind other than
// want. A missing key never conflicts, since the caller is about to
// create it fresh. SET is exempt from this check entirely (spec: SET
// always overwrites regardless of prior type).
func (r *Registry) CheckType(key string, want Kind) error {
	if got := r.TypeOf(key); got != KindNone && got != want {
		return ErrWrongType
	}
	return nil
}

// Del removes key from whichever store currently owns it, reporting
// whether it existed.
func (r *Registry) Del(key string) bool {
	switch r.TypeOf(key) {
	case KindString:
		return r.KV.Del(key)
	case KindList:
		_, ok := r.List.LPop(key, r.List.LLen(key))
		return ok
	case KindZSet:
		// ZSetStore has no bulk-delete; remove every member.
		removed := false
		for _, m := range r.ZSet.ZRange(key, 0, -1) {
			if r.ZSet.ZRem(key, m) {
				removed = true
			}
		}
		return removed
	case KindStream:
		return r.deleteStream(key)
	default:
		return false
	}
}

func (r *Registry) deleteStream(key string) bool {
	r.Stream.mu.Lock()
	defer r.Stream.mu.Unlock()
	if _, ok := r.Stream.m[key]; !ok {
		return false
	}
	delete(r.Stream.m, key)
	return true
}

// Keys returns every live key across all four stores matching pattern
// (only "*" wildcards are honored; anything else matches literally).
func (r *Registry) Keys(pattern string) []string {
	var all []string
	all = r.KV.Keys(all)
	for k := range snapshotListKeys(r.List) {
		all = append(all, k)
	}
	for k := range snapshotZSetKeys(r.ZSet) {
		all = append(all, k)
	}
	for k := range snapshotStreamKeys(r.Stream) {
		all = append(all, k)
	}
	if pattern == "*" || pattern == "" {
		return all
	}
	out := all[:0]
	for _, k := range all {
		if Match(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

func snapshotListKeys(s *ListStore) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.m))
	for k := range s.m {
		out[k] = struct{}{}
	}
	return out
}

func snapshotZSetKeys(s *ZSetStore) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.m))
	for k := range s.m {
		out[k] = struct{}{}
	}
	return out
}

func snapshotStreamKeys(s *StreamStore) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.m))
	for k := range s.m {
		out[k] = struct{}{}
	}
	return out
}
