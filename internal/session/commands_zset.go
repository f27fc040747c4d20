package session

import (
	"strconv"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/store"
)

func registerZSetCommands() {
	register("ZADD", 4, true, cmdZAdd)
	register("ZSCORE", 3, false, cmdZScore)
	register("ZRANK", 3, false, cmdZRank)
	register("ZCARD", 2, false, cmdZCard)
	register("ZRANGE", 4, false, cmdZRange)
	register("ZREM", -3, true, cmdZRem)
}

func cmdZAdd(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindZSet); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	score, err := strconv.ParseFloat(string(args[2]), 64)
	if err != nil {
		conn.WriteError("ERR value is not a valid float")
		return false
	}
	member := string(args[3])
	added := s.deps.Store.ZSet.ZAdd(key, score, member)
	if added {
		conn.WriteInt(1)
	} else {
		conn.WriteInt(0)
	}
	return true
}

func cmdZScore(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindZSet); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	score, ok := s.deps.Store.ZSet.ZScore(key, string(args[2]))
	if !ok {
		conn.WriteNull()
		return false
	}
	conn.WriteBulkString(strconv.FormatFloat(score, 'g', -1, 64))
	return false
}

func cmdZRank(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindZSet); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	rank, ok := s.deps.Store.ZSet.ZRank(key, string(args[2]))
	if !ok {
		conn.WriteNull()
		return false
	}
	conn.WriteInt(rank)
	return false
}

func cmdZCard(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindZSet); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	conn.WriteInt(s.deps.Store.ZSet.ZCard(key))
	return false
}

func cmdZRange(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindZSet); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		conn.WriteError("ERR value is not an integer or out of range")
		return false
	}
	members := s.deps.Store.ZSet.ZRange(key, start, stop)
	conn.WriteArray(len(members))
	for _, m := range members {
		conn.WriteBulkString(m)
	}
	return false
}

func cmdZRem(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindZSet); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	n := 0
	for _, m := range args[2:] {
		if s.deps.Store.ZSet.ZRem(key, string(m)) {
			n++
		}
	}
	conn.WriteInt(n)
	return n > 0
}
