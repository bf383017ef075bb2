package validate

// defaultGlobals are injected by the preview runtime: React and its hooks, ReactDOM, and the
// browser and language globals a component may use.
var defaultGlobals = []string{
	// React runtime
	"React", "ReactDOM", "Fragment",
	"useState", "useEffect", "useLayoutEffect", "useMemo", "useCallback", "useRef",
	"useReducer", "useContext", "useId", "useTransition", "useDeferredValue",
	"createContext", "forwardRef", "memo",

	// language
	"undefined", "NaN", "Infinity", "globalThis", "arguments",
	"Object", "Array", "String", "Number", "Boolean", "Symbol", "BigInt",
	"Date", "Math", "JSON", "RegExp", "Promise", "Proxy", "Reflect", "Intl",
	"Map", "Set", "WeakMap", "WeakSet",
	"Error", "TypeError", "RangeError", "SyntaxError",
	"parseInt", "parseFloat", "isNaN", "isFinite",
	"encodeURIComponent", "decodeURIComponent", "encodeURI", "decodeURI",
	"structuredClone", "queueMicrotask",

	// browser
	"window", "document", "console", "navigator", "location", "history",
	"localStorage", "sessionStorage", "fetch", "alert", "confirm", "prompt",
	"setTimeout", "clearTimeout", "setInterval", "clearInterval",
	"requestAnimationFrame", "cancelAnimationFrame", "performance", "crypto",
	"URL", "URLSearchParams", "FormData", "Blob", "File", "FileReader",
	"TextEncoder", "TextDecoder", "AbortController",
	"Event", "CustomEvent", "KeyboardEvent", "MouseEvent",
	"HTMLElement", "HTMLInputElement", "HTMLFormElement", "HTMLDivElement",
}
