// Command stexlsp runs the sTeX language server, speaking JSON-RPC over
// stdin/stdout (or a TCP socket).
package main

import (
	"context"
	"flag"

	"github.com/slatex/stexls/logging"
	"github.com/slatex/stexls/server"
	"github.com/slatex/stexls/transport"
)

func main() {
	socket := flag.Bool("socket", false, "communicate over a TCP socket instead of stdin/stdout")
	flag.Parse()

	logging.Init()
	logging.Logger.Println("stexls starting")

	method := transport.Stdin
	if *socket {
		method = transport.Socket
	}

	s := &server.Server{}
	s.Init(method)

	if err := s.Run(context.Background()); err != nil {
		logging.Logger.Fatal(err)
	}
}
