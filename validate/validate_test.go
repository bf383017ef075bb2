package validate_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uisynth/validate"
)

func TestValidate(t *testing.T) {
	type testCase struct {
		source  string
		options []validate.Option
		status  validate.Status
		undef   []string
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			v := validate.New(tc.options...)
			result, err := v.Validate(t.Context(), tc.source)
			gt.NoError(t, err).Required()
			gt.Equal(t, result.Status, tc.status)

			if tc.status == validate.StatusCompileError {
				gt.S(t, result.CompileError).Contains("line ")
				gt.False(t, result.OK())
			}

			gt.A(t, result.Diagnostics).Length(len(tc.undef))
			for i, name := range tc.undef {
				gt.Equal(t, result.Diagnostics[i].Rule, "no-undef")
				gt.S(t, result.Diagnostics[i].Message).Contains("'" + name + "'")
			}
		}
	}

	t.Run("placeholder program", runTest(testCase{
		source: "function App(): JSX.Element {\n  return <div>Loading...</div>;\n}\n\n" +
			"ReactDOM.createRoot(document.getElementById(\"root\")).render(<App />);\n",
		status: validate.StatusOK,
	}))

	t.Run("syntax error", runTest(testCase{
		source: "function App( {\n  return <div>;\n",
		status: validate.StatusCompileError,
	}))

	t.Run("undefined component and variable", runTest(testCase{
		source: "function App() {\n  return <TodoList items={todos} />;\n}\n",
		status: validate.StatusDiagnostics,
		undef:  []string{"TodoList", "todos"},
	}))

	t.Run("undefined name reported once", runTest(testCase{
		source: "function App() {\n  const a = missing + 1;\n  const b = missing + 2;\n  return <p>{a + b}</p>;\n}\n",
		status: validate.StatusDiagnostics,
		undef:  []string{"missing"},
	}))

	t.Run("destructuring and callbacks bind names", runTest(testCase{
		source: "function App() {\n" +
			"  const [items, setItems] = useState([]);\n" +
			"  const { length } = items;\n" +
			"  const add = (title) => setItems([...items, title]);\n" +
			"  return <ul onClick={() => add(\"x\")}>{items.map((item, idx) => <li key={idx}>{item}{length}</li>)}</ul>;\n" +
			"}\n",
		status: validate.StatusOK,
	}))

	t.Run("type references are not value references", runTest(testCase{
		source: "type Todo = { id: number; title: string };\n\n" +
			"function Item(props: { todo: Todo }): JSX.Element {\n" +
			"  return <span>{props.todo.title}</span>;\n" +
			"}\n",
		status: validate.StatusOK,
	}))

	t.Run("injected globals", runTest(testCase{
		source:  "function App() {\n  return <div>{API_URL}</div>;\n}\n",
		options: []validate.Option{validate.WithGlobals("API_URL")},
		status:  validate.StatusOK,
	}))

	t.Run("injected globals are required", runTest(testCase{
		source: "function App() {\n  return <div>{API_URL}</div>;\n}\n",
		status: validate.StatusDiagnostics,
		undef:  []string{"API_URL"},
	}))
}

func TestResultString(t *testing.T) {
	v := validate.New()
	result, err := v.Validate(t.Context(), "function App() {\n  return <Missing />;\n}\n")
	gt.NoError(t, err).Required()
	gt.S(t, result.String()).Contains("lint diagnostics")
	gt.S(t, result.String()).Contains("2:11")

	ok, err := v.Validate(t.Context(), "const x = 1;\n")
	gt.NoError(t, err).Required()
	gt.Equal(t, ok.String(), "validation passed")
}
