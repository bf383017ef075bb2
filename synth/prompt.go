package synth

import (
	_ "embed"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pkoukk/tiktoken-go"
)

//go:embed templates/action_system.md
var actionSystemPrompt string

//go:embed templates/action_prompt.md
var actionPromptTemplate string

//go:embed templates/critic_system.md
var criticSystemPrompt string

//go:embed templates/critic_prompt.md
var criticPromptTemplate string

var (
	actionTmpl = template.Must(template.New("action").Parse(actionPromptTemplate))
	criticTmpl = template.Must(template.New("critic").Parse(criticPromptTemplate))
)

const (
	// DefaultTokenBudget caps the rendered user prompt.
	DefaultTokenBudget = 12000

	maxResultChars = 2000
)

// TokenCounter estimates the number of tokens in a text.
type TokenCounter func(string) int

var cl100k = sync.OnceValue(func() *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return enc
})

// DefaultTokenCounter counts cl100k_base tokens, or approximates four characters per token
// when the encoding cannot be loaded.
func DefaultTokenCounter(text string) int {
	if enc := cl100k(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return ApproxTokenCounter(text)
}

// ApproxTokenCounter assumes four characters per token.
func ApproxTokenCounter(text string) int {
	return (len(text) + 3) / 4
}

type stepView struct {
	Action string
	Result string
}

type actionPromptData struct {
	Goal    string
	Pages   []Page
	Focus   string
	Style   string
	Source  string
	Steps   []stepView
	Omitted int
}

type criticPromptData struct {
	Goal       string
	Pages      []Page
	Style      string
	LastAction string
	LastResult string
	Steps      []stepView
	Omitted    int
}

func viewSteps(steps []*Step) []stepView {
	out := make([]stepView, len(steps))
	for i, s := range steps {
		out[i] = stepView{Action: s.Action.String(), Result: truncate(s.ResultText, maxResultChars)}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n... (truncated)"
}

func formatStyle(s StyleConstraints) string {
	if s.IsZero() {
		return ""
	}
	var lines []string
	if len(s.Palette) > 0 {
		lines = append(lines, "- palette: "+strings.Join(s.Palette, ", "))
	}
	if s.Typography != "" {
		lines = append(lines, "- typography: "+s.Typography)
	}
	if s.Layout != "" {
		lines = append(lines, "- layout: "+s.Layout)
	}
	if s.Notes != "" {
		lines = append(lines, "- notes: "+s.Notes)
	}
	return strings.Join(lines, "\n")
}

// renderTrimmed renders tmpl, dropping the oldest steps until the prompt fits budget.
// The newest step is always kept.
func renderTrimmed(tmpl *template.Template, steps *[]stepView, omitted *int, data any, budget int, count TokenCounter) (string, error) {
	for {
		var b strings.Builder
		if err := tmpl.Execute(&b, data); err != nil {
			return "", goerr.Wrap(err, "failed to render prompt", goerr.V("template", tmpl.Name()))
		}
		out := b.String()
		if budget <= 0 || len(*steps) <= 1 || count(out) <= budget {
			return out, nil
		}
		*steps = (*steps)[:len(*steps)-1]
		*omitted++
	}
}

func buildActionPrompt(req *ActionRequest, budget int, count TokenCounter) (string, error) {
	data := &actionPromptData{
		Goal:   req.Problem.Goal,
		Pages:  req.Problem.Pages,
		Focus:  req.Focus,
		Style:  formatStyle(req.Problem.Style),
		Source: req.Source,
		Steps:  viewSteps(req.Window),
	}
	return renderTrimmed(actionTmpl, &data.Steps, &data.Omitted, data, budget, count)
}

func buildCriticPrompt(req *CriticRequest, budget int, count TokenCounter) (string, error) {
	data := &criticPromptData{
		Goal:  req.Problem.Goal,
		Pages: req.Problem.Pages,
		Style: formatStyle(req.Problem.Style),
	}
	if req.Last != nil {
		data.LastAction = req.Last.Action.String()
		data.LastResult = truncate(req.Last.ResultText, maxResultChars)
	}
	data.Steps = viewSteps(req.Window)
	return renderTrimmed(criticTmpl, &data.Steps, &data.Omitted, data, budget, count)
}
