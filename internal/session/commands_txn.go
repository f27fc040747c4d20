package session

import (
	"fmt"
	"strings"

	"github.com/tidwall/redcon"
)

func registerTxnCommands() {
	register("MULTI", 1, false, cmdMulti)
	register("EXEC", 1, false, cmdExec)
	register("DISCARD", 1, false, cmdDiscard)
	register("WATCH", -2, false, cmdWatch)
}

func cmdMulti(s *Session, conn redcon.Conn, args [][]byte) bool {
	if !s.txn.Multi() {
		conn.WriteError("ERR MULTI calls can not be nested")
		return false
	}
	conn.WriteString("OK")
	return false
}

func cmdDiscard(s *Session, conn redcon.Conn, args [][]byte) bool {
	if !s.txn.Discard() {
		conn.WriteError("ERR DISCARD without MULTI")
		return false
	}
	conn.WriteString("OK")
	return false
}

// cmdExec runs every queued command in submission order, replying with
// one array element per command. Blocking commands (BLPOP, XREAD BLOCK)
// degrade to their immediate non-blocking form inside a transaction, per
// spec.md §4.8; each handler checks s.inExec itself for that.
func cmdExec(s *Session, conn redcon.Conn, args [][]byte) bool {
	queued, ok := s.txn.Exec()
	if !ok {
		conn.WriteError("ERR EXEC without MULTI")
		return false
	}
	conn.WriteArray(len(queued))
	s.inExec = true
	defer func() { s.inExec = false }()
	for _, cmdArgs := range queued {
		if len(cmdArgs) == 0 {
			continue
		}
		name := strings.ToUpper(string(cmdArgs[0]))
		spec, ok := commandTable[name]
		if !ok {
			conn.WriteError(fmt.Sprintf("ERR unknown command '%s'", cmdArgs[0]))
			continue
		}
		if spec.isWrite && s.deps.Repl.IsReplica && !s.isFromMaster {
			conn.WriteError("READONLY You can't write against a read only replica.")
			continue
		}
		s.run(conn, spec, cmdArgs)
	}
	return false
}

// cmdWatch is a no-op that always replies +OK, per spec.md §9's resolved
// Open Question: WATCH is recognized for compatibility but never causes
// EXEC to abort.
func cmdWatch(s *Session, conn redcon.Conn, args [][]byte) bool {
	conn.WriteString("OK")
	return false
}
