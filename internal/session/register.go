package session

import "sync"

var registerOnce sync.Once

// RegisterCommands populates the shared command table. It is idempotent
// and safe to call from multiple goroutines (internal/server calls it
// once at startup, tests may call it from parallel packages).
func RegisterCommands() {
	registerOnce.Do(func() {
		registerConnCommands()
		registerKeyCommands()
		registerListCommands()
		registerZSetCommands()
		registerStreamCommands()
		registerPubSubCommands()
		registerTxnCommands()
		registerReplicationCommands()
	})
}
