package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slatex/stexls/logging"
	"github.com/slatex/stexls/transport"
	"github.com/slatex/stexls/util"
)

// TextDocumentOpen registers the client-owned buffer and schedules a relink.
func TextDocumentOpen(ctx context.Context, s *Server, par json.RawMessage) error {
	var params transport.DidOpenTextDocumentParams
	if err := json.Unmarshal(par, &params); err != nil {
		return err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return err
	}
	s.Workspace.OpenFile(path, params.TextDocument.Text)
	s.Driver.RequestRelink(path)
	return nil
}

// TextDocumentChange applies the full-document or incremental change and
// requests a relink. SPEC_FULL.md advertises TextDocumentSyncKind Full, so
// the common case is a single content-change with no Range; the incremental
// branch is kept for clients that send ranged edits anyway.
func TextDocumentChange(ctx context.Context, s *Server, par json.RawMessage) error {
	var params transport.DidChangeTextDocumentParams
	if err := json.Unmarshal(par, &params); err != nil {
		return err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}

	content, err := s.Workspace.ReadFile(path)
	if err != nil {
		logging.Logger.Printf("didChange for unknown file %s: %v", path, err)
		content = ""
	}
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			content = change.Text
			continue
		}
		content = ApplyIncrementalChange(*change.Range, change.Text, content, s.encoding)
	}

	s.Workspace.UpdateFileIncremental(path, content)
	s.Driver.RequestRelink(path)
	return nil
}

func TextDocumentClose(ctx context.Context, s *Server, par json.RawMessage) error {
	var params transport.DidCloseTextDocumentParams
	if err := json.Unmarshal(par, &params); err != nil {
		return err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return err
	}
	s.Workspace.CloseFile(path)
	s.Driver.RequestRelink(path)
	return nil
}

func TextDocumentSave(ctx context.Context, s *Server, par json.RawMessage) error {
	var params transport.DidSaveTextDocumentParams
	if err := json.Unmarshal(par, &params); err != nil {
		return err
	}
	path, err := util.URI2path(string(params.TextDocument.URI))
	if err != nil {
		return fmt.Errorf("didSave: %w", err)
	}
	s.Driver.RequestRelink(path)
	return nil
}
