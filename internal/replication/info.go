package replication

import "fmt"

// State holds everything INFO replication and the write-protection gate
// need to know about this process's replication role.
type State struct {
	ReplID       string
	Offset       int64
	IsReplica    bool
	MasterHost   string
	MasterPort   int
	ConnectedOK  bool // replica has completed the handshake with its master
	Fanout       *Fanout
}

// Info renders the "# Replication" section of the INFO command.
func (s *State) Info() string {
	if !s.IsReplica {
		return fmt.Sprintf(
			"# Replication\r\nrole:master\r\nconnected_slaves:%d\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
			s.Fanout.Count(), s.ReplID, s.Offset,
		)
	}
	linkStatus := "down"
	if s.ConnectedOK {
		linkStatus = "up"
	}
	return fmt.Sprintf(
		"# Replication\r\nrole:slave\r\nmaster_host:%s\r\nmaster_port:%d\r\nmaster_link_status:%s\r\nmaster_repl_offset:%d\r\n",
		s.MasterHost, s.MasterPort, linkStatus, s.Offset,
	)
}
