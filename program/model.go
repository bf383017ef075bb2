package program

import (
	"log/slog"
	"strings"
)

// TypeDecl is a named type alias declaration: `type Name = Definition;`
type TypeDecl struct {
	Name       string
	Definition string
}

// FuncDecl is a top-level function declaration. ReturnType is empty when absent.
type FuncDecl struct {
	Name       string
	Params     string
	ReturnType string
	Body       string
}

// Model is the structured representation of the program under construction.
// A Model must not be mutated after it is published in a search state; use Clone.
type Model struct {
	Types        []TypeDecl
	Functions    []FuncDecl
	TrailingCode string
}

// Clone returns an independent deep copy of m.
func (m *Model) Clone() *Model {
	if m == nil {
		return &Model{}
	}

	c := &Model{
		TrailingCode: m.TrailingCode,
	}
	if m.Types != nil {
		c.Types = make([]TypeDecl, len(m.Types))
		copy(c.Types, m.Types)
	}
	if m.Functions != nil {
		c.Functions = make([]FuncDecl, len(m.Functions))
		copy(c.Functions, m.Functions)
	}
	return c
}

// FindFunction returns the index of the function named name, or -1.
func (m *Model) FindFunction(name string) int {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return i
		}
	}
	return -1
}

// FindType returns the index of the type named name, or -1.
func (m *Model) FindType(name string) int {
	for i := range m.Types {
		if m.Types[i].Name == name {
			return i
		}
	}
	return -1
}

// Serialize renders the model as source text: type blocks, then function blocks, then the
// trailing code, separated by one blank line. The output is deterministic and always ends
// with a newline.
func (m *Model) Serialize() string {
	var blocks []string

	for _, t := range m.Types {
		blocks = append(blocks, t.serialize())
	}
	for _, f := range m.Functions {
		blocks = append(blocks, f.serialize())
	}
	if trailing := strings.TrimSpace(m.TrailingCode); trailing != "" {
		blocks = append(blocks, trailing)
	}

	return strings.Join(blocks, "\n\n") + "\n"
}

func (t TypeDecl) serialize() string {
	def := strings.TrimSpace(t.Definition)
	def = strings.TrimSuffix(def, ";")
	return "type " + t.Name + " = " + def + ";"
}

func (f FuncDecl) serialize() string {
	var b strings.Builder
	b.WriteString("function ")
	b.WriteString(f.Name)
	b.WriteString("(")
	b.WriteString(strings.TrimSpace(f.Params))
	b.WriteString(")")
	if rt := strings.TrimSpace(f.ReturnType); rt != "" {
		b.WriteString(": ")
		b.WriteString(rt)
	}
	b.WriteString(" {\n")
	if body := strings.Trim(f.Body, "\n"); body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// Signature returns the function header without body, used in prompts and logs.
func (f FuncDecl) Signature() string {
	sig := f.Name + "(" + strings.TrimSpace(f.Params) + ")"
	if rt := strings.TrimSpace(f.ReturnType); rt != "" {
		sig += ": " + rt
	}
	return sig
}

func (m *Model) LogValue() slog.Value {
	types := make([]string, len(m.Types))
	for i, t := range m.Types {
		types[i] = t.Name
	}
	funcs := make([]string, len(m.Functions))
	for i, f := range m.Functions {
		funcs[i] = f.Name
	}
	return slog.GroupValue(
		slog.Any("types", types),
		slog.Any("functions", funcs),
	)
}
