package latex

import "testing"

func TestParseModsigEnvironment(t *testing.T) {
	root := Parse("M.tex", `\begin{modsig}{M}\symi{value}\end{modsig}`)
	if len(root.Children) != 1 {
		t.Fatalf("expected one top-level environment, got %d", len(root.Children))
	}
	modsig := root.Children[0]
	if modsig.Name != "modsig" {
		t.Fatalf("expected modsig environment, got %q", modsig.Name)
	}
	if modsig.RArg(0) != "M" {
		t.Fatalf("expected rarg 'M', got %q", modsig.RArg(0))
	}
	if len(modsig.Children) != 1 || modsig.Children[0].Name != "symi" {
		t.Fatalf("expected nested symi macro, got %+v", modsig.Children)
	}
	if modsig.Children[0].RArg(0) != "value" {
		t.Fatalf("expected symi rarg 'value', got %q", modsig.Children[0].RArg(0))
	}
}

func TestParseOptionalNamedArgs(t *testing.T) {
	root := Parse("V.tex", `\begin{module}[id=foo]\end{module}`)
	module := root.Children[0]
	id, ok := module.OArgNamed("id")
	if !ok || id != "foo" {
		t.Fatalf("expected id=foo optional arg, got %q ok=%v", id, ok)
	}
}

func TestWalkVisitsAllNodes(t *testing.T) {
	root := Parse("W.tex", `\begin{modsig}{M}\symi{a}\symi{b}\end{modsig}`)
	var names []string
	Walk(root, func(n *Node) {
		if n.Name != "" {
			names = append(names, n.Name)
		}
	}, nil)
	if len(names) != 3 {
		t.Fatalf("expected 3 named nodes (modsig + 2 symi), got %v", names)
	}
}
