package session

import "github.com/tidwall/redcon"

func registerConnCommands() {
	register("PING", -1, false, cmdPing)
	register("ECHO", 2, false, cmdEcho)
	register("QUIT", 1, false, cmdQuit)
	register("RESET", 1, false, cmdReset)
}

// cmdPing replies +PONG in normal mode, or the bulk echo of its
// argument; in Subscribed mode it replies the two-element array form
// per spec.md §4.10.
func cmdPing(s *Session, conn redcon.Conn, args [][]byte) bool {
	if s.mode == ModeSubscribed {
		conn.WriteArray(2)
		conn.WriteBulkString("pong")
		conn.WriteBulkString("")
		return false
	}
	if len(args) == 2 {
		conn.WriteBulk(args[1])
		return false
	}
	conn.WriteString("PONG")
	return false
}

func cmdEcho(s *Session, conn redcon.Conn, args [][]byte) bool {
	conn.WriteBulk(args[1])
	return false
}

func cmdQuit(s *Session, conn redcon.Conn, args [][]byte) bool {
	conn.WriteString("OK")
	conn.Close()
	return false
}

func cmdReset(s *Session, conn redcon.Conn, args [][]byte) bool {
	s.txn.Discard()
	s.deps.PubSub.Cleanup(s)
	s.mode = ModeNormal
	conn.WriteString("RESET")
	return false
}
