package validate

import (
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// One flat scope covers the whole file: a name bound anywhere counts as bound everywhere.

func collectBindings(node *sitter.Node, src []byte, bound map[string]struct{}, depth int) {
	if node == nil || depth > maxDepth {
		return
	}

	switch node.Type() {
	case "variable_declarator":
		bindPattern(node.ChildByFieldName("name"), src, bound)

	case "function_declaration", "generator_function_declaration", "function_expression",
		"function", "class_declaration", "abstract_class_declaration", "class", "enum_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			bound[name.Content(src)] = struct{}{}
		}

	case "required_parameter", "optional_parameter":
		bindPattern(node.ChildByFieldName("pattern"), src, bound)

	case "arrow_function":
		bindPattern(node.ChildByFieldName("parameter"), src, bound)

	case "catch_clause":
		bindPattern(node.ChildByFieldName("parameter"), src, bound)

	case "for_in_statement":
		bindPattern(node.ChildByFieldName("left"), src, bound)

	case "import_specifier":
		if alias := node.ChildByFieldName("alias"); alias != nil {
			bound[alias.Content(src)] = struct{}{}
		} else if name := node.ChildByFieldName("name"); name != nil {
			bound[name.Content(src)] = struct{}{}
		}

	case "import_clause", "namespace_import":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() == "identifier" {
				bound[child.Content(src)] = struct{}{}
			}
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectBindings(node.NamedChild(i), src, bound, depth+1)
	}
}

func bindPattern(node *sitter.Node, src []byte, bound map[string]struct{}) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		bound[node.Content(src)] = struct{}{}

	case "pair_pattern":
		bindPattern(node.ChildByFieldName("value"), src, bound)

	case "assignment_pattern", "object_assignment_pattern":
		bindPattern(node.ChildByFieldName("left"), src, bound)

	case "object_pattern", "array_pattern", "rest_pattern", "formal_parameters":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			bindPattern(node.NamedChild(i), src, bound)
		}

	case "required_parameter", "optional_parameter":
		bindPattern(node.ChildByFieldName("pattern"), src, bound)
	}
}

// skipped subtrees never contain value references.
var skipped = map[string]bool{
	"type_annotation":           true,
	"type_arguments":            true,
	"type_parameters":           true,
	"type_alias_declaration":    true,
	"interface_declaration":     true,
	"import_statement":          true,
	"jsx_closing_element":       true,
	"predefined_type":           true,
	"asserts_annotation":        true,
	"type_predicate_annotation": true,
}

func walkReferences(node *sitter.Node, src []byte, depth int, report func(*sitter.Node, string)) {
	if node == nil || depth > maxDepth {
		return
	}

	nodeType := node.Type()
	if skipped[nodeType] {
		return
	}

	switch nodeType {
	case "identifier", "shorthand_property_identifier":
		report(node, node.Content(src))
		return

	case "as_expression", "satisfies_expression":
		// the right operand is a type
		if node.NamedChildCount() > 0 {
			walkReferences(node.NamedChild(0), src, depth+1, report)
		}
		return

	case "jsx_opening_element", "jsx_self_closing_element":
		name := node.ChildByFieldName("name")
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if name != nil && sameNode(child, name) && isIntrinsicTag(child, src) {
				continue
			}
			walkReferences(child, src, depth+1, report)
		}
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		walkReferences(node.NamedChild(i), src, depth+1, report)
	}
}

// isIntrinsicTag reports whether a JSX element name refers to a host element such as <div>.
func isIntrinsicTag(name *sitter.Node, src []byte) bool {
	if name.Type() != "identifier" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name.Content(src))
	return unicode.IsLower(r)
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
