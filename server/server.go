// Package server implements the sTeX language server: a JSON-RPC method
// dispatch loop over a workspace.Workspace/workspace.Driver pair, built
// around an explicit session state machine (Created/Initializing/
// Running/Shutdown/Exit/ExitError) and requestHandlers/notificationHandlers
// dispatch maps driving the sTeX compile+link pipeline. See DESIGN.md.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/slatex/stexls/logging"
	"github.com/slatex/stexls/transport"
	"github.com/slatex/stexls/workspace"
)

type ServerState int

const (
	Created ServerState = iota
	Initializing
	Running
	Shutdown
	Exit
	ExitError
)

// Server is the long-lived LSP session state. Workspace/Driver are nil
// until Initialize has run (the client must supply a root first).
type Server struct {
	Capabilities transport.ServerCapabilities

	Workspace *workspace.Workspace
	Driver    *workspace.Driver

	Status ServerState
	mu     sync.Mutex

	Transport transport.Transport

	reqIdCtr int
	encoding transport.PositionEncodingKind

	diagChan           chan transport.PublishDiagnosticsParams
	progressSupported  bool
	cancelBackgroundRun context.CancelFunc
}

func (s *Server) Init(method transport.TransportMethod) {
	s.Status = Created
	s.Transport.Init(transport.Server, method)
	s.encoding = transport.UTF16
	s.diagChan = make(chan transport.PublishDiagnosticsParams, 16)
}

// Run drives the main loop until the transport closes, the client sends
// exit, or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	end := make(chan error, 1)
	go s.Loop(ctx, end)
	select {
	case err := <-end:
		if err != nil {
			logging.Logger.Printf("server exiting because of error: %v", err)
			return err
		}
		logging.Logger.Println("server exited cleanly")
	case <-ctx.Done():
		logging.Logger.Println("canceling main loop")
	}
	if s.cancelBackgroundRun != nil {
		s.cancelBackgroundRun()
	}
	return nil
}

func (s *Server) Loop(ctx context.Context, end chan<- error) {
	var err error
	for s.Status != Exit && s.Status != ExitError && !s.Transport.Closed && err == nil {
		select {
		case <-ctx.Done():
			end <- nil
			return
		default:
		}

		var msg []byte
		msg, err = s.Transport.Read()
		if err != nil {
			break
		}
		method, methodErr := transport.GetMethod(msg)
		if methodErr != nil || len(method) == 0 {
			continue
		}

		if err = s.ValidateMethod(method); err != nil {
			break
		}

		if method != "exit" && method != "shutdown" {
			go s.HandleMethod(ctx, method, msg)
		} else {
			s.HandleMethod(ctx, method, msg)
		}
	}
	if s.Status == ExitError {
		end <- errors.New("exiting ungracefully")
		return
	}
	if s.Status == Exit {
		end <- nil
		return
	}
	if err == nil && s.Transport.Closed {
		err = errors.New("stream closed: got EOF")
	} else {
		s.Transport.Close()
	}
	end <- err
}

func (s *Server) ValidateMethod(method string) error {
	switch s.Status {
	case Created:
		if method != "initialize" {
			return fmt.Errorf("server not initialized, but received %q", method)
		}
	case Shutdown:
		if method != "exit" {
			return fmt.Errorf("server shut down, can only receive exit, got %q", method)
		}
	}
	return nil
}

func (s *Server) HandleMethod(ctx context.Context, method string, message []byte) {
	_, content, _ := bytes.Cut(message, []byte{'\r', '\n', '\r', '\n'})

	if handler, ok := requestHandlers[method]; ok {
		var m transport.RequestMessage
		if err := json.Unmarshal(content, &m); err != nil {
			logging.Logger.Printf("invalid request message for %s: %v", method, err)
			return
		}
		if id, ok := m.ID.(float64); ok {
			s.mu.Lock()
			s.reqIdCtr = int(id) + 1
			s.mu.Unlock()
		}
		resp, err := handler(ctx, s, m.ID, m.Params)
		if err != nil {
			logging.Logger.Printf("handler for %s failed: %v", method, err)
			return
		}
		if len(resp) != 0 {
			if err := s.Transport.Write(resp); err != nil {
				logging.Logger.Printf("write failed: %v", err)
			}
		}
		return
	}
	if handler, ok := notificationHandlers[method]; ok {
		var m transport.NotificationMessage
		if err := json.Unmarshal(content, &m); err != nil {
			logging.Logger.Printf("invalid notification message for %s: %v", method, err)
			return
		}
		if err := handler(ctx, s, m.Params); err != nil {
			logging.Logger.Printf("notification handler for %s failed: %v", method, err)
		}
		return
	}
	logging.Logger.Printf("no handler registered for method %q", method)
}

var requestHandlers = map[string]func(context.Context, *Server, interface{}, json.RawMessage) (json.RawMessage, error){
	"initialize":                  Initialize,
	"shutdown":                    ShutdownEnd,
	"textDocument/documentSymbol": TextDocumentSymbol,
	"textDocument/definition":     TextDocumentDefinition,
	"textDocument/references":     TextDocumentReferences,
	"textDocument/completion":     Completion,
	"workspace/symbol":            WorkspaceSymbol,
}

var notificationHandlers = map[string]func(context.Context, *Server, json.RawMessage) error{
	"initialized":            Initialized,
	"textDocument/didOpen":   TextDocumentOpen,
	"textDocument/didChange": TextDocumentChange,
	"textDocument/didClose":  TextDocumentClose,
	"textDocument/didSave":   TextDocumentSave,
	"exit":                   ExitEnd,
}

func (s *Server) nextProgressToken() string {
	return uuid.New().String()
}

func (s *Server) publishDiagnosticsLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case diag := <-s.diagChan:
			content, err := json.Marshal(diag)
			if err != nil {
				logging.Logger.Printf("failed to marshal diagnostics for %s: %v", diag.URI, err)
				continue
			}
			if err := s.Transport.WriteNotif("textDocument/publishDiagnostics", content); err != nil {
				logging.Logger.Printf("failed to publish diagnostics for %s: %v", diag.URI, err)
			}
		}
	}
}

func marshalResponse(id interface{}, result interface{}) (json.RawMessage, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	resp := transport.ResponseMessage{
		Message: transport.Message{Jsonrpc: "2.0"},
		ID:      id,
		Result:  resultBytes,
	}
	return json.Marshal(resp)
}
