package replication

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/kvwire/kvwire/internal/respwire"
)

// MasterClient is the outbound half of replica mode: it dials the
// configured master, performs the handshake, then applies every
// subsequently streamed command to the local stores.
type MasterClient struct {
	Host, Port  string
	ListenPort  int
	Apply       func(argv [][]byte)
	OnConnected func(ok bool)
}

// Run dials the master and streams forever, retrying is left to the
// caller (spec.md notes the replica owns reconnection).
func (m *MasterClient) Run() error {
	addr := net.JoinHostPort(m.Host, m.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to master %s: %w", addr, err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	if err := m.handshake(conn, r); err != nil {
		if m.OnConnected != nil {
			m.OnConnected(false)
		}
		return err
	}
	if m.OnConnected != nil {
		m.OnConnected(true)
	}

	for {
		argv, err := respwire.ReadCommand(r)
		if err != nil {
			if m.OnConnected != nil {
				m.OnConnected(false)
			}
			return err
		}
		m.Apply(argv)
	}
}

func (m *MasterClient) handshake(conn net.Conn, r *bufio.Reader) error {
	send := func(argv ...string) error {
		frame := make([][]byte, len(argv))
		for i, a := range argv {
			frame[i] = []byte(a)
		}
		_, err := conn.Write(respwire.EncodeArray(frame))
		return err
	}

	if err := send("PING"); err != nil {
		return err
	}
	if _, err := respwire.ReadReply(r); err != nil {
		return err
	}

	if err := send("REPLCONF", "listening-port", strconv.Itoa(m.ListenPort)); err != nil {
		return err
	}
	if _, err := respwire.ReadReply(r); err != nil {
		return err
	}

	if err := send("REPLCONF", "capa", "psync2"); err != nil {
		return err
	}
	if _, err := respwire.ReadReply(r); err != nil {
		return err
	}

	if err := send("PSYNC", "?", "-1"); err != nil {
		return err
	}
	reply, err := respwire.ReadReply(r) // "+FULLRESYNC <id> <offset>"
	if err != nil {
		return err
	}
	log.Printf("replication: master replied to PSYNC: %s", reply)

	// The master follows FULLRESYNC with a length-prefixed RDB preamble
	// ("$<len>\r\n<payload>", no trailing CRLF); this implementation
	// carries no on-disk state, so it drains and discards it rather
	// than parsing it, matching spec.md's "RDB persistence is not part
	// of the repository".
	if err := drainRDBPreamble(r); err != nil {
		return err
	}
	return nil
}

func drainRDBPreamble(r *bufio.Reader) error {
	prefix, err := r.ReadByte()
	if err != nil {
		return err
	}
	if prefix != '$' {
		return fmt.Errorf("protocol error: expected RDB preamble, got %q", prefix)
	}
	line, err := respwire.ReadLine(r)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 {
		return fmt.Errorf("protocol error: bad RDB preamble length %q", line)
	}
	buf := make([]byte, n)
	_, err = readFull(r, buf)
	return err
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
