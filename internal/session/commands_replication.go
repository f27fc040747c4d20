package session

import (
	"strconv"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/replication"
)

func registerReplicationCommands() {
	register("REPLCONF", -1, false, cmdReplConf)
	register("PSYNC", 3, false, cmdPSync)
	register("INFO", -1, false, cmdInfo)
}

// cmdReplConf answers every REPLCONF subcommand this server needs to
// accept during the handshake (listening-port, capa) with a bare +OK;
// none of them change local state on the master side.
func cmdReplConf(s *Session, conn redcon.Conn, args [][]byte) bool {
	conn.WriteString("OK")
	return false
}

// emptyRDBPreamble is the minimal RDB payload spec.md §4.9 asks for: a
// header and EOF marker with no keys, sent as a raw bulk string (not a
// RESP bulk reply) immediately after +FULLRESYNC, matching real Redis's
// PSYNC wire framing.
var emptyRDBPreamble = []byte("REDIS0011\xff\x00\x00\x00\x00\x00\x00\x00\x00")

// cmdPSync implements the minimal PSYNC contract: always a full
// resync. It detaches the connection, hands the client a snapshot
// preamble, then attaches a replication.Link so all subsequent writes
// stream to it with no further polling.
func cmdPSync(s *Session, conn redcon.Conn, args [][]byte) bool {
	dconn := conn.Detach()
	dconn.WriteString("FULLRESYNC " + s.deps.Repl.ReplID + " " + strconv.FormatInt(s.deps.ReplLog.Offset(), 10))
	dconn.Flush()

	dconn.WriteRaw([]byte("$" + strconv.Itoa(len(emptyRDBPreamble)) + "\r\n"))
	dconn.WriteRaw(emptyRDBPreamble)
	dconn.Flush()

	s.isReplicaLink = true
	s.mode = ModeReplicaLink
	link := replication.NewLink(dconn)
	s.deps.Fanout.Attach(link, s.deps.ReplLog)
	return false
}

func cmdInfo(s *Session, conn redcon.Conn, args [][]byte) bool {
	conn.WriteBulkString(s.deps.Repl.Info())
	return false
}
