// Package latex is the external-collaborator boundary named in the purpose
// and scope of the system: a LaTeX lexer/parser is assumed to exist and to
// deliver a tree of nodes, environments, tokens, optional and required
// arguments. No fetchable Go module in this repository's dependency corpus
// provides a LaTeX grammar, so this package provides a minimal,
// self-contained implementation of the contract the intermediate parser
// (package stex/parsetree) expects from it.
//
// It is deliberately small: a line/brace-aware tokenizer that recognizes
// \begin{env}...\end{env} blocks, \command{...} macros, and bracketed
// optional-argument groups, producing a Node tree that can be walked with
// Walk(enter, exit). It is not a general LaTeX parser and does not attempt
// to handle every corner of the language; it exists only to produce the
// environment/argument shape the sTeX recognizer (§4.1) consumes.
package latex

import (
	"strings"

	"github.com/slatex/stexls/loc"
)

// Arg is a single macro or environment argument.
type Arg struct {
	Name  string // empty for positional ("unnamed") arguments
	Value string
	Range loc.Range
}

// Node is either an Environment (name != "") or plain text content.
type Node struct {
	File     string
	Name     string // "" for a bare text/command node
	Range    loc.Range
	NameRange loc.Range // range of just the environment/command name token
	RArgs    []Arg
	OArgs    []Arg
	Text     string // verbatim text content for leaf/text nodes
	Children []*Node
	Parent   *Node
}

// RArg returns the i-th required argument's value, or "" if absent.
func (n *Node) RArg(i int) string {
	if i < 0 || i >= len(n.RArgs) {
		return ""
	}
	return n.RArgs[i].Value
}

// OArgNamed returns the value of a named optional argument (name=value),
// and whether it was present.
func (n *Node) OArgNamed(name string) (string, bool) {
	for _, a := range n.OArgs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// OArgPositional returns the i-th unnamed optional argument's value.
func (n *Node) OArgPositional(i int) (string, bool) {
	count := -1
	for _, a := range n.OArgs {
		if a.Name == "" {
			count++
			if count == i {
				return a.Value, true
			}
		}
	}
	return "", false
}

// Walk performs a preorder/postorder traversal, invoking enter before
// descending into a node's children and exit after.
func Walk(root *Node, enter, exit func(*Node)) {
	if root == nil {
		return
	}
	if enter != nil {
		enter(root)
	}
	for _, c := range root.Children {
		Walk(c, enter, exit)
	}
	if exit != nil {
		exit(root)
	}
}

// GetScope returns the nearest ancestor (including n itself) for which
// filter returns true, or nil if none matches.
func (n *Node) GetScope(filter func(*Node) bool) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if filter(cur) {
			return cur
		}
	}
	return nil
}

// Parse builds a Node tree for the given file content. It recognizes
// \begin{name}[oargs]{rargs}...\end{name} blocks and free-standing
// \name[oargs]{rargs} macro invocations, nesting environments by brace/
// begin-end matching. Text outside any recognized macro becomes a plain
// text child node (used by defi/trefi-in-prose detection in higher layers).
func Parse(file string, content string) *Node {
	p := &tokenizer{file: file, src: content}
	root := &Node{File: file, Name: "", Range: loc.Range{End: p.endPos()}}
	p.parseInto(root)
	return root
}

type tokenizer struct {
	file string
	src  string
	pos  int // byte offset
	line uint32
	col  uint32
}

func (p *tokenizer) endPos() loc.Position {
	line, col := uint32(0), uint32(0)
	for _, r := range p.src {
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return loc.Position{Line: line, Character: col}
}

func (p *tokenizer) posAt(offset int) loc.Position {
	line, col := uint32(0), uint32(0)
	for i, r := range p.src {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return loc.Position{Line: line, Character: col}
}

// parseInto consumes tokenizer state until end-of-input or until a matching
// \end is found when parsing a nested environment, appending child nodes to
// parent.
func (p *tokenizer) parseInto(parent *Node) {
	var textStart = p.pos
	flushText := func(end int) {
		if end > textStart {
			txt := p.src[textStart:end]
			if strings.TrimSpace(txt) != "" {
				parent.Children = append(parent.Children, &Node{
					File:   p.file,
					Range:  loc.Range{Start: p.posAt(textStart), End: p.posAt(end)},
					Text:   txt,
					Parent: parent,
				})
			}
		}
	}

	for p.pos < len(p.src) {
		idx := strings.IndexByte(p.src[p.pos:], '\\')
		if idx < 0 {
			p.pos = len(p.src)
			break
		}
		cmdStart := p.pos + idx
		flushText(cmdStart)
		p.pos = cmdStart

		name, nameEnd := readMacroName(p.src, p.pos+1)
		if name == "" {
			p.pos = p.pos + 1
			textStart = p.pos
			continue
		}

		if name == "end" {
			// Let the caller (the \begin that opened this environment) consume it.
			return
		}

		nameRange := loc.Range{Start: p.posAt(p.pos), End: p.posAt(nameEnd)}
		p.pos = nameEnd

		if name == "begin" {
			envName, oargs, rargs, bodyStart := p.readBeginHeader()
			node := &Node{
				File:      p.file,
				Name:      envName,
				NameRange: nameRange,
				RArgs:     rargs,
				OArgs:     oargs,
				Parent:    parent,
				Range:     loc.Range{Start: nameRange.Start},
			}
			p.pos = bodyStart
			p.parseInto(node)
			// consume the matching \end{envName} if present
			endStart := p.pos
			if strings.HasPrefix(p.src[p.pos:], "\\end") {
				_, afterName := readMacroName(p.src, p.pos+1)
				p.pos = afterName
				// consume {envName}
				if p.pos < len(p.src) && p.src[p.pos] == '{' {
					close := strings.IndexByte(p.src[p.pos:], '}')
					if close >= 0 {
						p.pos += close + 1
					}
				}
			}
			node.Range.End = p.posAt(p.pos)
			_ = endStart
			parent.Children = append(parent.Children, node)
			textStart = p.pos
			continue
		}

		oargs := p.readOArgs()
		rargs := p.readRArgs()
		node := &Node{
			File:      p.file,
			Name:      name,
			NameRange: nameRange,
			RArgs:     rargs,
			OArgs:     oargs,
			Parent:    parent,
			Range:     loc.Range{Start: nameRange.Start, End: p.posAt(p.pos)},
		}
		parent.Children = append(parent.Children, node)
		textStart = p.pos
	}
	flushText(p.pos)
}

func readMacroName(src string, start int) (name string, end int) {
	i := start
	for i < len(src) && (isAlpha(src[i])) {
		i++
	}
	if i == start {
		if start < len(src) {
			return string(src[start]), start + 1
		}
		return "", start
	}
	return src[start:i], i
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// readOArgs consumes zero or more [...] groups, splitting comma-separated
// name=value or bare entries inside a single bracket group.
func (p *tokenizer) readOArgs() []Arg {
	var out []Arg
	for p.pos < len(p.src) && p.src[p.pos] == '[' {
		start := p.pos + 1
		depth := 1
		i := start
		for i < len(p.src) && depth > 0 {
			switch p.src[i] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth > 0 {
				i++
			}
		}
		raw := p.src[start:i]
		rng := loc.Range{Start: p.posAt(start), End: p.posAt(i)}
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if eq := strings.IndexByte(part, '='); eq >= 0 {
				out = append(out, Arg{Name: strings.TrimSpace(part[:eq]), Value: strings.TrimSpace(part[eq+1:]), Range: rng})
			} else {
				out = append(out, Arg{Value: part, Range: rng})
			}
		}
		if i < len(p.src) {
			i++ // consume ']'
		}
		p.pos = i
	}
	return out
}

// readRArgs consumes zero or more {...} groups as required arguments.
func (p *tokenizer) readRArgs() []Arg {
	var out []Arg
	for p.pos < len(p.src) && p.src[p.pos] == '{' {
		start := p.pos + 1
		depth := 1
		i := start
		for i < len(p.src) && depth > 0 {
			switch p.src[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth > 0 {
				i++
			}
		}
		out = append(out, Arg{Value: p.src[start:i], Range: loc.Range{Start: p.posAt(start), End: p.posAt(i)}})
		if i < len(p.src) {
			i++
		}
		p.pos = i
	}
	return out
}

// readBeginHeader parses the {envname} that must directly follow \begin,
// then any [oargs]{rargs} that belong to the environment itself, returning
// the environment name, its optional and required arguments, and the offset
// at which the environment body begins.
func (p *tokenizer) readBeginHeader() (name string, oargs []Arg, rargs []Arg, bodyStart int) {
	if p.pos >= len(p.src) || p.src[p.pos] != '{' {
		return "", nil, nil, p.pos
	}
	start := p.pos + 1
	close := strings.IndexByte(p.src[start:], '}')
	if close < 0 {
		p.pos = len(p.src)
		return "", nil, nil, p.pos
	}
	name = p.src[start : start+close]
	p.pos = start + close + 1
	oargs = p.readOArgs()
	rargs = p.readRArgs()
	return name, oargs, rargs, p.pos
}
