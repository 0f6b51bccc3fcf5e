package compiler

import "github.com/scanforge/sourceguard/internal/parseadapter"

// preDeclareBindings performs the shallow pre-pass rule 7 needs: collect
// every name assigned within a scope before compiling it, so a forward
// reference to a not-yet-assigned local still resolves to LOAD_FAST rather
// than LOAD_GLOBAL. It never descends into nested function/class bodies —
// those get their own scope when they are compiled.
func preDeclareBindings(sc *scope, root parseadapter.Node, language string) {
	if sc.isModule {
		return // module scope resolves everything through NAME opcodes; nothing to pre-declare.
	}
	walkBindings(sc, root, language, true)
}

func walkBindings(sc *scope, n parseadapter.Node, language string, top bool) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "function_definition", "function_declaration", "arrow_function",
		"function", "lambda", "class_definition", "class_declaration", "method_definition":
		if !top {
			return // nested scope: its own bindings are collected when it is compiled.
		}
	case "global_statement":
		for _, id := range n.NamedChildren() {
			sc.declareGlobal(id.Text())
		}
		return
	case "nonlocal_statement":
		for _, id := range n.NamedChildren() {
			sc.declareNonlocal(id.Text())
		}
		return
	case "assignment", "augmented_assignment":
		if lhs, ok := n.Field("left"); ok {
			declareTargets(sc, lhs)
		}
	case "for_statement", "for_in_statement":
		if left, ok := n.Field("left"); ok {
			declareTargets(sc, left)
		}
	case "with_item", "except_clause":
		if alias, ok := n.Field("alias"); ok {
			declareTargets(sc, alias)
		}
	case "variable_declarator":
		if idn, ok := n.Field("name"); ok {
			declareTargets(sc, idn)
		}
	}

	for _, c := range n.Children() {
		walkBindings(sc, c, language, false)
	}
}

// declareTargets records every identifier appearing in an assignment target,
// covering plain names as well as tuple/list/pattern destructuring.
func declareTargets(sc *scope, target parseadapter.Node) {
	switch target.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		sc.declareLocal(target.Text())
	default:
		for _, c := range target.NamedChildren() {
			declareTargets(sc, c)
		}
	}
}
