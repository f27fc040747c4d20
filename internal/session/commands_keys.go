package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/store"
)

func registerKeyCommands() {
	register("SET", -3, true, cmdSet)
	register("GET", 2, false, cmdGet)
	register("DEL", -2, true, cmdDel)
	register("EXISTS", -2, false, cmdExists)
	register("TYPE", 2, false, cmdType)
	register("KEYS", 2, false, cmdKeys)
	register("INCR", 2, true, cmdIncr)
}

func cmdSet(s *Session, conn redcon.Conn, args [][]byte) bool {
	key, val := string(args[1]), args[2]

	var expireAt time.Time
	i := 3
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "PX":
			if i+1 >= len(args) {
				conn.WriteError("ERR syntax error")
				return false
			}
			ms, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil || ms <= 0 {
				conn.WriteError("ERR value is not an integer or out of range")
				return false
			}
			expireAt = time.Now().Add(time.Duration(ms) * time.Millisecond)
			i += 2
		default:
			conn.WriteError(fmt.Sprintf("ERR unknown option '%s'", args[i]))
			return false
		}
	}
	// SET always overwrites, regardless of the key's prior type
	// (spec.md §9's resolved Open Question).
	if t := s.deps.Store.TypeOf(key); t != store.KindNone && t != store.KindString {
		s.deps.Store.Del(key)
	}
	s.deps.Store.KV.Set(key, append([]byte(nil), val...), expireAt)
	conn.WriteString("OK")
	return true
}

func cmdGet(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindString); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	v, ok := s.deps.Store.KV.Get(key)
	if !ok {
		conn.WriteNull()
		return false
	}
	conn.WriteBulk(v)
	return false
}

func cmdDel(s *Session, conn redcon.Conn, args [][]byte) bool {
	n := 0
	for _, k := range args[1:] {
		if s.deps.Store.Del(string(k)) {
			n++
		}
	}
	conn.WriteInt(n)
	return n > 0
}

func cmdExists(s *Session, conn redcon.Conn, args [][]byte) bool {
	n := 0
	for _, k := range args[1:] {
		if s.deps.Store.TypeOf(string(k)) != store.KindNone {
			n++
		}
	}
	conn.WriteInt(n)
	return false
}

func cmdType(s *Session, conn redcon.Conn, args [][]byte) bool {
	conn.WriteString(s.deps.Store.TypeOf(string(args[1])).String())
	return false
}

func cmdKeys(s *Session, conn redcon.Conn, args [][]byte) bool {
	keys := s.deps.Store.Keys(string(args[1]))
	conn.WriteArray(len(keys))
	for _, k := range keys {
		conn.WriteBulkString(k)
	}
	return false
}

func cmdIncr(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindString); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	n, err := s.deps.Store.KV.Incr(key)
	if err != nil {
		conn.WriteError(err.Error())
		return false
	}
	conn.WriteInt(int(n))
	return true
}
