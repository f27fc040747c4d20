package session

import "github.com/tidwall/redcon"

func registerPubSubCommands() {
	register("SUBSCRIBE", -2, false, cmdSubscribe)
	register("UNSUBSCRIBE", -1, false, cmdUnsubscribe)
	register("PSUBSCRIBE", -2, false, cmdPSubscribe)
	register("PUNSUBSCRIBE", -1, false, cmdPUnsubscribe)
	register("PUBLISH", 3, true, cmdPublish)
}

// cmdSubscribe implements the mode transition of spec.md §4.6: the first
// SUBSCRIBE on a connection detaches it from redcon's request/response
// loop and hands it to subscribedLoop, which reads and dispatches
// further commands itself so that PUBLISH deliveries can be interleaved
// asynchronously via Session.SendMessage.
func cmdSubscribe(s *Session, conn redcon.Conn, args [][]byte) bool {
	dconn := s.enterSubscribedMode(conn)
	for _, ch := range args[1:] {
		count := s.deps.PubSub.Subscribe(s, string(ch))
		writeSubAck(dconn, "subscribe", string(ch), count)
	}
	return false
}

func cmdPSubscribe(s *Session, conn redcon.Conn, args [][]byte) bool {
	dconn := s.enterSubscribedMode(conn)
	for _, p := range args[1:] {
		count := s.deps.PubSub.PSubscribe(s, string(p))
		writeSubAck(dconn, "psubscribe", string(p), count)
	}
	return false
}

func cmdUnsubscribe(s *Session, conn redcon.Conn, args [][]byte) bool {
	dconn := currentConn(s, conn)
	if len(args) == 1 {
		channels := s.deps.PubSub.UnsubscribeAll(s)
		if len(channels) == 0 {
			writeSubAck(dconn, "unsubscribe", "", s.deps.PubSub.SubscriptionCount(s))
			return false
		}
		for _, ch := range channels {
			writeSubAck(dconn, "unsubscribe", ch, s.deps.PubSub.SubscriptionCount(s))
		}
		return false
	}
	for _, ch := range args[1:] {
		_, remaining := s.deps.PubSub.Unsubscribe(s, string(ch))
		writeSubAck(dconn, "unsubscribe", string(ch), remaining)
	}
	return false
}

func cmdPUnsubscribe(s *Session, conn redcon.Conn, args [][]byte) bool {
	dconn := currentConn(s, conn)
	if len(args) == 1 {
		writeSubAck(dconn, "punsubscribe", "", s.deps.PubSub.SubscriptionCount(s))
		return false
	}
	for _, p := range args[1:] {
		_, remaining := s.deps.PubSub.PUnsubscribe(s, string(p))
		writeSubAck(dconn, "punsubscribe", string(p), remaining)
	}
	return false
}

// cmdPublish always reports itself as mutated so the replication log
// captures it even when there are zero local subscribers: spec.md §4.9
// requires PUBLISH to be forwarded so a replica's own subscribers still
// receive it.
func cmdPublish(s *Session, conn redcon.Conn, args [][]byte) bool {
	n := s.deps.PubSub.Publish(string(args[1]), string(args[2]))
	conn.WriteInt(n)
	return true
}

func writeSubAck(conn redcon.Conn, kind, channel string, count int) {
	conn.WriteArray(3)
	conn.WriteBulkString(kind)
	if channel == "" {
		conn.WriteNull()
	} else {
		conn.WriteBulkString(channel)
	}
	conn.WriteInt(count)
}

// currentConn returns the session's detached sink once subscribed,
// falling back to conn for a connection that issues (P)UNSUBSCRIBE
// without ever having subscribed.
func currentConn(s *Session, conn redcon.Conn) redcon.Conn {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.detached != nil {
		return s.detached
	}
	return conn
}
