package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slatex/stexls/logging"
	"github.com/slatex/stexls/transport"
	"github.com/slatex/stexls/util"
	"github.com/slatex/stexls/workspace"
)

// Initialize advertises the capabilities SPEC_FULL.md §4.7/§6 describes and
// binds the workspace to the client-supplied root.
func Initialize(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	s.Status = Initializing
	var params transport.InitializeParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	if params.RootURI == nil {
		return nil, fmt.Errorf("initialize requires rootUri")
	}
	root, err := util.URI2path(string(*params.RootURI))
	if err != nil {
		return nil, fmt.Errorf("invalid rootUri: %w", err)
	}

	s.encoding = transport.UTF16
	if params.Capabilities.General != nil {
		for _, enc := range params.Capabilities.General.PositionEncodings {
			if enc == transport.UTF32 {
				s.encoding = transport.UTF32
				break
			}
		}
	}
	s.progressSupported = params.Capabilities.Window != nil && params.Capabilities.Window.WorkDoneProgress

	ws, err := workspace.New(workspace.Config{Root: root, Jobs: 4})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workspace at %s: %w", root, err)
	}
	s.Workspace = ws
	s.Driver = workspace.NewDriver(ws, time.Second, func(r workspace.LinkResult) {
		s.publishLinkResult(r)
	})

	s.Capabilities = transport.ServerCapabilities{
		PositionEncoding: s.encoding,
		TextDocumentSync: transport.TextDocumentSyncOptions{OpenClose: true, Change: 1, Save: true},
		CompletionProvider: transport.CompletionOptions{
			TriggerCharacters:   []string{"?", "[", "{", ",", "="},
			AllCommitCharacters: []string{"]", "}", ","},
		},
		DefinitionProvider:      true,
		ReferencesProvider:      true,
		DocumentSymbolProvider:  true,
		WorkspaceSymbolProvider: true,
	}

	result := transport.InitializeResult{
		Capabilities: s.Capabilities,
		ServerInfo:   transport.ServerInfo{Name: "stexls", Version: "0.1.0"},
	}
	return marshalResponse(id, result)
}

// Initialized starts the background linker (debounce drain + filesystem
// watcher) and the diagnostics publishing loop as cooperative background
// goroutines.
func Initialized(ctx context.Context, s *Server, par json.RawMessage) error {
	s.Status = Running

	bgCtx, cancel := context.WithCancel(ctx)
	s.cancelBackgroundRun = cancel

	go s.publishDiagnosticsLoop(bgCtx)
	go s.Driver.Run(bgCtx)
	if err := workspace.Watch(bgCtx, s.Workspace, s.Driver); err != nil {
		logging.Logger.Printf("failed to start filesystem watcher: %v", err)
	}

	files, err := s.Workspace.Files()
	if err != nil {
		logging.Logger.Printf("failed to enumerate workspace files: %v", err)
		return nil
	}
	for _, f := range files {
		s.Driver.RequestRelink(f)
	}
	return nil
}

func (s *Server) publishLinkResult(r workspace.LinkResult) {
	var diags []transport.Diagnostic
	if r.Diagnostics != nil {
		for _, d := range r.Diagnostics.Items {
			diags = append(diags, toTransportDiagnostic(d))
		}
	}
	s.diagChan <- transport.PublishDiagnosticsParams{
		URI:         transport.DocumentURI(util.Path2URI(r.File)),
		Diagnostics: diags,
	}
}

func ShutdownEnd(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	s.Status = Shutdown
	return marshalResponse(id, nil)
}

func ExitEnd(ctx context.Context, s *Server, par json.RawMessage) error {
	if s.Status == Shutdown {
		s.Status = Exit
	} else {
		s.Status = ExitError
	}
	return nil
}
