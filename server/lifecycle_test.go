package server_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/slatex/stexls/server"
	"github.com/slatex/stexls/transport"
	"github.com/slatex/stexls/util"
)

// TestExitWithoutError/TestExitWithError drive the server over a real
// socket transport end to end, exercising a rootUri-bearing initialize
// (the server requires a valid workspace root).
func TestExitWithoutError(t *testing.T) {
	var s server.Server
	root := t.TempDir()
	rootURI := transport.DocumentURI(util.Path2URI(root))

	runserver := func() error {
		s.Init(transport.Socket)
		err := s.Run(context.Background())
		s.Transport.Close()
		return err
	}

	go func() {
		var tr transport.Transport
		tr.Init(transport.Client, transport.Socket)
		msg, _ := json.Marshal(transport.InitializeParams{RootURI: &rootURI})
		tr.WriteRequest(0, "initialize", msg)
		tr.Read()
		tr.WriteNotif("initialized", json.RawMessage(`{}`))
		tr.WriteRequest(1, "shutdown", json.RawMessage(`{}`))
		tr.Read()
		tr.WriteNotif("exit", json.RawMessage(`{}`))
		time.Sleep(100 * time.Millisecond)
		tr.Close()
	}()

	if err := runserver(); err != nil {
		t.Errorf("exit was not graceful, when it should've been: %v", err)
	}
}

func TestExitWithError(t *testing.T) {
	var s server.Server
	root := t.TempDir()
	rootURI := transport.DocumentURI(util.Path2URI(root))

	ctx, cancel := context.WithCancel(context.Background())
	runserver := func() error {
		s.Init(transport.Socket)
		return s.Run(ctx)
	}

	go func() {
		var tr transport.Transport
		tr.Init(transport.Client, transport.Socket)
		msg, _ := json.Marshal(transport.InitializeParams{RootURI: &rootURI})
		tr.WriteRequest(0, "initialize", msg)
		tr.Read()
		tr.WriteNotif("exit", json.RawMessage(`{}`))
		time.Sleep(100 * time.Millisecond)
		tr.Close()
		cancel()
	}()

	if err := runserver(); err == nil {
		t.Errorf("exit should not have been graceful")
	}
}
