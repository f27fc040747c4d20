package session

import (
	"strconv"
	"time"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/store"
)

func registerListCommands() {
	register("RPUSH", -3, true, cmdRPush)
	register("LPUSH", -3, true, cmdLPush)
	register("LPOP", -2, true, cmdLPop)
	register("LLEN", 2, false, cmdLLen)
	register("LRANGE", 4, false, cmdLRange)
	register("BLPOP", -3, false, cmdBLPop)
}

func cmdRPush(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindList); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	n := s.deps.Store.List.RPush(key, cloneAll(args[2:])...)
	conn.WriteInt(n)
	return true
}

func cmdLPush(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindList); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	n := s.deps.Store.List.LPush(key, cloneAll(args[2:])...)
	conn.WriteInt(n)
	return true
}

func cmdLPop(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindList); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	count := 1
	if len(args) == 3 {
		n, err := strconv.Atoi(string(args[2]))
		if err != nil || n < 0 {
			conn.WriteError("ERR value is not an integer or out of range")
			return false
		}
		count = n
	}
	popped, ok := s.deps.Store.List.LPop(key, count)
	if !ok {
		conn.WriteNull()
		return false
	}
	if len(args) == 3 {
		conn.WriteArray(len(popped))
		for _, e := range popped {
			conn.WriteBulk(e)
		}
	} else if len(popped) == 0 {
		conn.WriteNull()
	} else {
		conn.WriteBulk(popped[0])
	}
	return len(popped) > 0
}

func cmdLLen(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindList); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	conn.WriteInt(s.deps.Store.List.LLen(key))
	return false
}

func cmdLRange(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindList); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		conn.WriteError("ERR value is not an integer or out of range")
		return false
	}
	items := s.deps.Store.List.LRange(key, start, stop)
	conn.WriteArray(len(items))
	for _, e := range items {
		conn.WriteBulk(e)
	}
	return false
}

// captureAsLPop appends a synthetic "LPOP key" frame to the replication
// log. BLPOP itself is never captured (spec.md §4.9 lists LPOP, not
// BLPOP, among captured writes): a replica must see the same
// deterministic pop a plain LPOP would have produced, not a blocking
// command it would otherwise have to re-park on.
func (s *Session) captureAsLPop(key string) {
	if s.deps.ReplLog == nil || s.isFromMaster {
		return
	}
	frame := [][]byte{[]byte("LPOP"), []byte(key)}
	s.deps.ReplLog.Append(frame, wireLen(frame))
}

// cmdBLPop implements the BLPOP protocol of spec.md §4.7: an immediate
// attempt across keys in argument order, then — unless running inside
// EXEC, where blocking commands degrade to their non-blocking form — a
// parked wait delivered by the blocking coordinator.
func cmdBLPop(s *Session, conn redcon.Conn, args [][]byte) bool {
	keys := make([]string, len(args)-2)
	for i, k := range args[1 : len(args)-1] {
		keys[i] = string(k)
	}
	timeoutSec, err := strconv.ParseFloat(string(args[len(args)-1]), 64)
	if err != nil || timeoutSec < 0 {
		conn.WriteError("ERR timeout is not a float or out of range")
		return false
	}

	for _, k := range keys {
		if err := s.deps.Store.CheckType(k, store.KindList); err != nil {
			conn.WriteError(err.Error())
			return false
		}
	}

	if key, val, ok := s.deps.Coordinator.TryBLPop(keys); ok {
		s.captureAsLPop(key)
		conn.WriteArray(2)
		conn.WriteBulkString(key)
		conn.WriteBulk(val)
		return false
	}

	if s.inExec {
		conn.WriteNull()
		return false
	}

	timeout := time.Duration(timeoutSec * float64(time.Second))
	handle := s.deps.Coordinator.WaitBLPop(keys, timeout)

	dconn := conn.Detach()
	go func() {
		defer dconn.Close()
		result := handle.Result()
		if result.TimedOut {
			dconn.WriteNull()
		} else {
			s.captureAsLPop(result.Key)
			dconn.WriteArray(2)
			dconn.WriteBulkString(result.Key)
			dconn.WriteBulk(result.Value)
		}
		dconn.Flush()
	}()
	return false
}

func cloneAll(bs [][]byte) [][]byte {
	out := make([][]byte, len(bs))
	for i, b := range bs {
		out[i] = append([]byte(nil), b...)
	}
	return out
}
