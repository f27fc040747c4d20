// Command kvwire-server runs the RESP-compatible in-memory data store.
package main

import (
	"log"
	"os"

	"github.com/kvwire/kvwire/internal/config"
	"github.com/kvwire/kvwire/internal/server"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Println("kvwire-server:", err)
		os.Exit(2)
	}

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Println("kvwire-server:", err)
		os.Exit(1)
	}
}
