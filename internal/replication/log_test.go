package replication

import (
	"testing"
	"time"
)

func TestLogAppendAndOffset(t *testing.T) {
	l := NewLog()
	l.Append(Frame{[]byte("SET"), []byte("a"), []byte("1")}, 10)
	l.Append(Frame{[]byte("SET"), []byte("b"), []byte("2")}, 10)

	if l.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", l.Len())
	}
	if l.Offset() != 20 {
		t.Fatalf("Offset() = %d; want 20", l.Offset())
	}
}

func TestLogWaitDeliversNewFrames(t *testing.T) {
	l := NewLog()
	stop := make(chan struct{})

	done := make(chan struct{})
	var frames []Frame
	var next int
	go func() {
		frames, next = l.Wait(0, stop)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	l.Append(Frame{[]byte("PING")}, 4)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait never returned after Append")
	}
	if len(frames) != 1 || string(frames[0][0]) != "PING" {
		t.Fatalf("Wait returned %v; want one PING frame", frames)
	}
	if next != 1 {
		t.Fatalf("next cursor = %d; want 1", next)
	}
}

func TestLogWaitUnblocksOnStop(t *testing.T) {
	l := NewLog()
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		l.Wait(0, stop)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait never returned after stop was closed")
	}
}

func TestGenerateReplIDLength(t *testing.T) {
	id := GenerateReplID()
	if len(id) != 40 {
		t.Fatalf("GenerateReplID length = %d; want 40", len(id))
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			t.Fatalf("GenerateReplID produced unexpected character %q", c)
		}
	}
	if id == GenerateReplID() {
		t.Fatalf("two calls produced identical IDs, extremely unlikely if random")
	}
}

func TestStateInfoMaster(t *testing.T) {
	s := &State{ReplID: "abc", Offset: 5, Fanout: NewFanout()}
	info := s.Info()
	if info != "# Replication\r\nrole:master\r\nconnected_slaves:0\r\nmaster_replid:abc\r\nmaster_repl_offset:5\r\n" {
		t.Fatalf("unexpected master Info(): %q", info)
	}
}

func TestStateInfoReplica(t *testing.T) {
	s := &State{IsReplica: true, MasterHost: "h", MasterPort: 6380, ConnectedOK: true, Offset: 3}
	info := s.Info()
	want := "# Replication\r\nrole:slave\r\nmaster_host:h\r\nmaster_port:6380\r\nmaster_link_status:up\r\nmaster_repl_offset:3\r\n"
	if info != want {
		t.Fatalf("Info() = %q; want %q", info, want)
	}
}
