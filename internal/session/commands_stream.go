package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/redcon"

	"github.com/kvwire/kvwire/internal/blocking"
	"github.com/kvwire/kvwire/internal/store"
)

func registerStreamCommands() {
	register("XADD", -5, true, cmdXAdd)
	register("XRANGE", 4, false, cmdXRange)
	register("XREAD", -4, false, cmdXRead)
}

func cmdXAdd(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindStream); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	idSpec := string(args[2])
	rest := args[3:]
	if len(rest)%2 != 0 {
		conn.WriteError("ERR wrong number of arguments for 'xadd' command")
		return false
	}
	fields := make([]store.Field, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		fields = append(fields, store.Field{Name: string(rest[i]), Value: string(rest[i+1])})
	}
	id, err := s.deps.Store.Stream.XAdd(key, idSpec, fields)
	if err != nil {
		conn.WriteError(err.Error())
		return false
	}
	conn.WriteBulkString(id.String())
	return true
}

func cmdXRange(s *Session, conn redcon.Conn, args [][]byte) bool {
	key := string(args[1])
	if err := s.deps.Store.CheckType(key, store.KindStream); err != nil {
		conn.WriteError(err.Error())
		return false
	}
	from, err1 := store.ParseRangeBound(string(args[2]), false)
	to, err2 := store.ParseRangeBound(string(args[3]), true)
	if err1 != nil {
		conn.WriteError(err1.Error())
		return false
	}
	if err2 != nil {
		conn.WriteError(err2.Error())
		return false
	}
	entries := s.deps.Store.Stream.XRange(key, from, to)
	writeStreamEntries(conn, entries)
	return false
}

func writeStreamEntries(conn redcon.Conn, entries []store.StreamEntry) {
	conn.WriteArray(len(entries))
	for _, e := range entries {
		conn.WriteArray(2)
		conn.WriteBulkString(e.ID.String())
		conn.WriteArray(len(e.Fields) * 2)
		for _, f := range e.Fields {
			conn.WriteBulkString(f.Name)
			conn.WriteBulkString(f.Value)
		}
	}
}

// cmdXRead implements XREAD [BLOCK <ms>] STREAMS <key...> <id...>. The
// "$" id sentinel resolves against each stream's current last id at
// call time, per spec.md §4.6.
func cmdXRead(s *Session, conn redcon.Conn, args [][]byte) bool {
	i := 1
	var blockMS int64 = -1
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "BLOCK":
			if i+1 >= len(args) {
				conn.WriteError("ERR syntax error")
				return false
			}
			ms, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil || ms < 0 {
				conn.WriteError("ERR timeout is not an integer or out of range")
				return false
			}
			blockMS = ms
			i += 2
		case "STREAMS":
			i++
			goto parsedOptions
		default:
			conn.WriteError("ERR syntax error")
			return false
		}
	}
parsedOptions:
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		conn.WriteError("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
		return false
	}
	n := len(rest) / 2
	keys := make([]string, n)
	after := make(map[string]store.StreamID, n)
	for j := 0; j < n; j++ {
		key := string(rest[j])
		keys[j] = key
		idStr := string(rest[n+j])
		if idStr == "$" {
			after[key] = s.deps.Store.Stream.LastID(key)
			continue
		}
		id, err := store.ParseStreamID(idStr)
		if err != nil {
			conn.WriteError(err.Error())
			return false
		}
		after[key] = id
	}
	for _, k := range keys {
		if err := s.deps.Store.CheckType(k, store.KindStream); err != nil {
			conn.WriteError(err.Error())
			return false
		}
	}

	if result, any := tryXRead(s, keys, after); any {
		writeXReadResult(conn, keys, result)
		return false
	}

	if blockMS < 0 || s.inExec {
		conn.WriteNull()
		return false
	}

	waitStreams := make(map[string]blocking.StreamReadID, n)
	for _, k := range keys {
		id := after[k]
		waitStreams[k] = blocking.StreamReadID{MS: id.MS, Seq: id.Seq}
	}
	timeout := time.Duration(blockMS) * time.Millisecond // 0 means wait forever
	handle := s.deps.Coordinator.WaitXRead(waitStreams, keys, timeout)

	dconn := conn.Detach()
	go func() {
		defer dconn.Close()
		res := handle.Result()
		if res.TimedOut || len(res.Streams) == 0 {
			dconn.WriteNull()
		} else {
			writeXReadCoordResult(dconn, keys, res.Streams)
		}
		dconn.Flush()
	}()
	return false
}

func tryXRead(s *Session, keys []string, after map[string]store.StreamID) (map[string][]store.StreamEntry, bool) {
	result := make(map[string][]store.StreamEntry)
	any := false
	for _, k := range keys {
		entries := s.deps.Store.Stream.XReadAfter(k, after[k])
		if len(entries) > 0 {
			result[k] = entries
			any = true
		}
	}
	return result, any
}

func writeXReadResult(conn redcon.Conn, keys []string, result map[string][]store.StreamEntry) {
	present := 0
	for _, k := range keys {
		if len(result[k]) > 0 {
			present++
		}
	}
	conn.WriteArray(present)
	for _, k := range keys {
		entries := result[k]
		if len(entries) == 0 {
			continue
		}
		conn.WriteArray(2)
		conn.WriteBulkString(k)
		writeStreamEntries(conn, entries)
	}
}

func writeXReadCoordResult(conn redcon.DetachedConn, keys []string, streams map[string][]blocking.StreamEntry) {
	present := 0
	for _, k := range keys {
		if len(streams[k]) > 0 {
			present++
		}
	}
	conn.WriteArray(present)
	for _, k := range keys {
		entries := streams[k]
		if len(entries) == 0 {
			continue
		}
		conn.WriteArray(2)
		conn.WriteBulkString(k)
		conn.WriteArray(len(entries))
		for _, e := range entries {
			conn.WriteArray(2)
			conn.WriteBulkString(store.StreamID{MS: e.ID.MS, Seq: e.ID.Seq}.String())
			conn.WriteArray(len(e.Fields) * 2)
			for _, f := range e.Fields {
				conn.WriteBulkString(f.Name)
				conn.WriteBulkString(f.Value)
			}
		}
	}
}
