package validate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// Status is the outcome class of a validation.
type Status string

const (
	StatusOK           Status = "ok"
	StatusCompileError Status = "compile_error"
	StatusDiagnostics  Status = "diagnostics"
)

const (
	maxSyntaxIssues = 10
	maxDepth        = 1000
)

// Diagnostic is one lint finding.
type Diagnostic struct {
	Line    int
	Column  int
	Rule    string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d %s (%s)", d.Line, d.Column, d.Message, d.Rule)
}

// Result is the outcome of validating one source text.
type Result struct {
	Status       Status
	CompileError string
	Diagnostics  []Diagnostic
}

// OK reports whether the source compiled and produced no diagnostics.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusOK
}

// String renders the result as the text recorded in the reasoning trace.
func (r *Result) String() string {
	switch r.Status {
	case StatusOK:
		return "validation passed"
	case StatusCompileError:
		return "compile error:\n" + r.CompileError
	default:
		lines := make([]string, len(r.Diagnostics))
		for i, d := range r.Diagnostics {
			lines[i] = d.String()
		}
		return "lint diagnostics:\n" + strings.Join(lines, "\n")
	}
}

func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("status", string(r.Status)),
		slog.Int("diagnostics", len(r.Diagnostics)),
	)
}

// Validator checks TSX source for syntax errors and references to undefined names.
// It holds no parser state and is safe for concurrent use.
type Validator struct {
	globals map[string]struct{}
}

type Option func(*Validator)

// WithGlobals adds names that are injected into the program's scope at run time.
func WithGlobals(names ...string) Option {
	return func(v *Validator) {
		for _, name := range names {
			v.globals[name] = struct{}{}
		}
	}
}

func New(options ...Option) *Validator {
	v := &Validator{
		globals: make(map[string]struct{}, len(defaultGlobals)),
	}
	for _, name := range defaultGlobals {
		v.globals[name] = struct{}{}
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate parses source and reports either a compile error, lint diagnostics, or success.
// An error is returned only when parsing could not run, e.g. the context was cancelled.
func (v *Validator) Validate(ctx context.Context, source string) (*Result, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsx.GetLanguage())

	src := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse source")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		var issues []string
		collectSyntaxIssues(root, src, &issues, 0)
		if len(issues) == 0 {
			issues = append(issues, "syntax error")
		}
		return &Result{
			Status:       StatusCompileError,
			CompileError: strings.Join(issues, "\n"),
		}, nil
	}

	diags := v.undefinedReferences(root, src)
	if len(diags) > 0 {
		return &Result{Status: StatusDiagnostics, Diagnostics: diags}, nil
	}

	return &Result{Status: StatusOK}, nil
}

func collectSyntaxIssues(node *sitter.Node, src []byte, issues *[]string, depth int) {
	if depth > maxDepth || len(*issues) >= maxSyntaxIssues {
		return
	}

	if node.IsError() || node.IsMissing() {
		pos := node.StartPoint()
		msg := "unexpected token"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %s", node.Type())
		} else if text := node.Content(src); text != "" && len(text) < 60 {
			msg = fmt.Sprintf("unexpected %q", text)
		}
		*issues = append(*issues, fmt.Sprintf("line %d:%d: %s", pos.Row+1, pos.Column+1, msg))
		if node.IsError() {
			return
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxIssues(node.Child(i), src, issues, depth+1)
	}
}

func (v *Validator) undefinedReferences(root *sitter.Node, src []byte) []Diagnostic {
	bound := make(map[string]struct{})
	collectBindings(root, src, bound, 0)

	seen := make(map[string]struct{})
	var diags []Diagnostic
	walkReferences(root, src, 0, func(node *sitter.Node, name string) {
		if _, ok := bound[name]; ok {
			return
		}
		if _, ok := v.globals[name]; ok {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}

		pos := node.StartPoint()
		diags = append(diags, Diagnostic{
			Line:    int(pos.Row) + 1,
			Column:  int(pos.Column) + 1,
			Rule:    "no-undef",
			Message: fmt.Sprintf("'%s' is not defined.", name),
		})
	})

	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Column < diags[j].Column
	})
	return diags
}
