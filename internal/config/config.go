// Package config parses the process's command-line flags, following the
// teacher's own use of the standard flag package rather than any
// external CLI/config framework (none appears anywhere in the example
// corpus).
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// Config holds every flag spec.md §6 names.
type Config struct {
	Port        int
	Dir         string
	DBFilename  string
	MetricsAddr string

	ReplicaOf  bool
	MasterHost string
	MasterPort int
}

// Parse reads args (typically os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("kvwire-server", flag.ContinueOnError)
	port := fs.Int("port", 6379, "port to listen on")
	dir := fs.String("dir", "", "directory for RDB files (accepted, unused)")
	dbfilename := fs.String("dbfilename", "", "RDB filename (accepted, unused)")
	metricsAddr := fs.String("metrics-addr", "", "address to serve Prometheus metrics on, empty disables it")
	replicaof := fs.String("replicaof", "", `"<host> <port>" of a master to replicate from`)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        *port,
		Dir:         *dir,
		DBFilename:  *dbfilename,
		MetricsAddr: *metricsAddr,
	}

	if *replicaof != "" {
		host, portStr, err := splitReplicaOf(*replicaof)
		if err != nil {
			return nil, err
		}
		mport, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("--replicaof: invalid port %q", portStr)
		}
		cfg.ReplicaOf = true
		cfg.MasterHost = host
		cfg.MasterPort = mport
	}

	return cfg, nil
}

func splitReplicaOf(s string) (host, port string, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", "", fmt.Errorf(`--replicaof: expected "<host> <port>", got %q`, s)
	}
	return fields[0], fields[1], nil
}
