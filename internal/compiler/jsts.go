package compiler

import (
	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/parseadapter"
)

var jstsDispatch = dispatch{
	"expression_statement":  jsExpressionStatement,
	"assignment_expression": jsAssignmentExpression,
	"call_expression":       jsCallExpression,
	"new_expression":        jsCallExpression,
	"member_expression":     jsMemberExpression,
	"subscript_expression":  jsSubscriptExpression,
	"identifier":            jsIdentifier,
	"shorthand_property_identifier": jsIdentifier,
	"binary_expression":     jsBinaryExpression,
	"unary_expression":      jsUnaryExpression,
	"update_expression":     jsUpdateExpression,
	"ternary_expression":    jsTernaryExpression,
	"parenthesized_expression": pyParenthesized,
	"sequence_expression":   pyParenthesized,
	"if_statement":          jsIfStatement,
	"for_statement":         jsForStatement,
	"for_in_statement":      jsForInStatement,
	"while_statement":       jsWhileStatement,
	"do_statement":          jsWhileStatement,
	"try_statement":         jsTryStatement,
	"return_statement":      jsReturnStatement,
	"throw_statement":       jsThrowStatement,
	"break_statement":       pyBreak,
	"continue_statement":    pyContinue,
	"import_statement":      jsImportStatement,
	"function_declaration":  jsFunctionDeclaration,
	"function":              jsFunctionDeclaration,
	"generator_function_declaration": jsFunctionDeclaration,
	"arrow_function":        jsArrowFunction,
	"class_declaration":     jsClassDeclaration,
	"class":                 jsClassDeclaration,
	"variable_declaration":  jsVariableDeclaration,
	"lexical_declaration":   jsVariableDeclaration,
	"array":                 jsArray,
	"object":                jsObject,
	"statement_block":       pyBlock,
	"string":                pyLiteralPass,
	"template_string":       pyLiteralPass,
	"number":                pyLiteralPass,
	"true":                  pyLiteralPass,
	"false":                 pyLiteralPass,
	"null":                  pyLiteralPass,
	"undefined":             pyLiteralPass,
	"await_expression":      jsAwaitExpression,
}

func jstsFallback(e *emitter, n parseadapter.Node) {
	if e.emitLiteral(n) {
		return
	}
	e.emitAll(n.NamedChildren())
}

func jsExpressionStatement(e *emitter, n parseadapter.Node) {
	children := n.NamedChildren()
	if len(children) == 0 {
		return
	}
	e.emitNode(children[0])
	e.b.emit(instr.POP_TOP, instr.NoArg(), n.StartLine())
}

func jsAssignmentExpression(e *emitter, n parseadapter.Node) {
	left, hasLeft := n.Field("left")
	right, hasRight := n.Field("right")
	if hasRight {
		e.emitNode(right)
	}
	if hasLeft {
		e.emitStoreTarget(left)
	}
}

func jsCallExpression(e *emitter, n parseadapter.Node) {
	fn, _ := n.Field("function")
	if fn == nil {
		fn, _ = n.Field("constructor")
	}
	e.emitNode(fn)

	argsNode, _ := n.Field("arguments")
	var args []parseadapter.Node
	if argsNode != nil {
		args = argsNode.NamedChildren()
	}
	for _, a := range args {
		e.emitNode(a)
	}
	e.b.emit(instr.CALL, instr.IntArg(int64(len(args))), n.StartLine())
}

func jsMemberExpression(e *emitter, n parseadapter.Node) {
	if obj, ok := n.Field("object"); ok {
		e.emitNode(obj)
	}
	if prop, ok := n.Field("property"); ok {
		e.b.emit(instr.LOAD_ATTR, instr.SymbolArg(prop.Text()), n.StartLine())
	}
}

func jsSubscriptExpression(e *emitter, n parseadapter.Node) {
	if val, ok := n.Field("object"); ok {
		e.emitNode(val)
	}
	if idx, ok := n.Field("index"); ok {
		e.emitNode(idx)
	}
	e.b.emit(instr.BINARY_SUBSCR, instr.NoArg(), n.StartLine())
}

func jsIdentifier(e *emitter, n parseadapter.Node) {
	name := n.Text()
	e.b.emit(e.sc.loadOp(name), instr.SymbolArg(name), n.StartLine())
}

func jsBinaryExpression(e *emitter, n parseadapter.Node) {
	left, _ := n.Field("left")
	right, _ := n.Field("right")
	e.emitNode(left)
	e.emitNode(right)
	e.emitOperator(operatorToken(n), n.StartLine())
}

func jsUnaryExpression(e *emitter, n parseadapter.Node) {
	if arg, ok := n.Field("argument"); ok {
		e.emitNode(arg)
	}
	switch operatorToken(n) {
	case "-":
		e.b.emit(instr.UNARY_NEG, instr.NoArg(), n.StartLine())
	case "~":
		e.b.emit(instr.UNARY_INV, instr.NoArg(), n.StartLine())
	default:
		e.b.emit(instr.UNARY_NOT, instr.NoArg(), n.StartLine())
	}
}

func jsUpdateExpression(e *emitter, n parseadapter.Node) {
	if arg, ok := n.Field("argument"); ok {
		e.emitNode(arg)
		e.b.emit(instr.LOAD_CONST, instr.IntArg(1), n.StartLine())
		if operatorToken(n) == "--" {
			e.b.emit(instr.BINARY_SUB, instr.NoArg(), n.StartLine())
		} else {
			e.b.emit(instr.BINARY_ADD, instr.NoArg(), n.StartLine())
		}
		e.emitStoreTarget(arg)
	}
}

func jsTernaryExpression(e *emitter, n parseadapter.Node) {
	cond, _ := n.Field("condition")
	cons, _ := n.Field("consequence")
	alt, _ := n.Field("alternative")

	elseLabel := e.b.newLabel()
	endLabel := e.b.newLabel()
	e.emitNode(cond)
	e.b.emitJump(instr.POP_JUMP_IF_FALSE, elseLabel, n.StartLine())
	e.emitNode(cons)
	e.b.emitJump(instr.JUMP_FORWARD, endLabel, n.StartLine())
	e.b.mark(elseLabel)
	e.emitNode(alt)
	e.b.mark(endLabel)
}

func jsAwaitExpression(e *emitter, n parseadapter.Node) {
	e.emitAll(n.NamedChildren())
	e.b.emit(instr.AWAIT, instr.NoArg(), n.StartLine())
}

func jsIfStatement(e *emitter, n parseadapter.Node) {
	cond, _ := n.Field("condition")
	body, _ := n.Field("consequence")
	alt, hasAlt := n.Field("alternative")

	elseLabel := e.b.newLabel()
	endLabel := e.b.newLabel()
	e.emitNode(cond)
	e.b.emitJump(instr.POP_JUMP_IF_FALSE, elseLabel, n.StartLine())
	e.emitNode(body)
	e.b.emitJump(instr.JUMP_FORWARD, endLabel, n.StartLine())
	e.b.mark(elseLabel)
	if hasAlt {
		e.emitNode(alt)
	}
	e.b.mark(endLabel)
}

func jsForStatement(e *emitter, n parseadapter.Node) {
	init, hasInit := n.Field("initializer")
	cond, hasCond := n.Field("condition")
	update, hasUpdate := n.Field("increment")
	body, _ := n.Field("body")

	if hasInit {
		e.emitNode(init)
	}
	loopStart := e.b.newLabel()
	loopEnd := e.b.newLabel()
	e.b.mark(loopStart)
	if hasCond {
		e.emitNode(cond)
		e.b.emitJump(instr.POP_JUMP_IF_FALSE, loopEnd, n.StartLine())
	}
	e.pushLoop(loopStart, loopEnd)
	e.emitNode(body)
	e.popLoop()
	if hasUpdate {
		e.emitNode(update)
	}
	e.b.emitJump(instr.JUMP_BACKWARD, loopStart, n.StartLine())
	e.b.mark(loopEnd)
}

func jsForInStatement(e *emitter, n parseadapter.Node) {
	left, _ := n.Field("left")
	right, _ := n.Field("right")
	body, _ := n.Field("body")

	loopStart := e.b.newLabel()
	loopEnd := e.b.newLabel()
	e.emitNode(right)
	e.b.emit(instr.GET_ITER, instr.NoArg(), n.StartLine())
	e.b.mark(loopStart)
	e.b.emitJump(instr.FOR_ITER, loopEnd, n.StartLine())
	if left != nil {
		e.emitStoreTarget(left)
	}
	e.pushLoop(loopStart, loopEnd)
	e.emitNode(body)
	e.popLoop()
	e.b.emitJump(instr.JUMP_BACKWARD, loopStart, n.StartLine())
	e.b.mark(loopEnd)
}

func jsWhileStatement(e *emitter, n parseadapter.Node) {
	cond, _ := n.Field("condition")
	body, _ := n.Field("body")

	loopStart := e.b.newLabel()
	loopEnd := e.b.newLabel()
	e.b.mark(loopStart)
	e.emitNode(cond)
	e.b.emitJump(instr.POP_JUMP_IF_FALSE, loopEnd, n.StartLine())
	e.pushLoop(loopStart, loopEnd)
	e.emitNode(body)
	e.popLoop()
	e.b.emitJump(instr.JUMP_BACKWARD, loopStart, n.StartLine())
	e.b.mark(loopEnd)
}

func jsTryStatement(e *emitter, n parseadapter.Node) {
	handler := e.b.newLabel()
	after := e.b.newLabel()
	e.b.emitJump(instr.SETUP_FINALLY, handler, n.StartLine())

	var catchNode, finallyNode, bodyNode parseadapter.Node
	for _, c := range n.NamedChildren() {
		switch c.Kind() {
		case "catch_clause":
			catchNode = c
		case "finally_clause":
			finallyNode = c
		case "statement_block":
			if bodyNode == nil {
				bodyNode = c
			}
		}
	}
	if bodyNode != nil {
		e.emitNode(bodyNode)
	}
	e.b.emitJump(instr.JUMP_FORWARD, after, n.StartLine())
	e.b.mark(handler)
	if catchNode != nil {
		e.emitAll(catchNode.NamedChildren())
		e.b.emit(instr.POP_EXCEPT, instr.NoArg(), catchNode.StartLine())
	}
	e.b.mark(after)
	if finallyNode != nil {
		e.emitAll(finallyNode.NamedChildren())
	}
}

func jsReturnStatement(e *emitter, n parseadapter.Node) {
	children := n.NamedChildren()
	if len(children) == 0 {
		e.b.emit(instr.RETURN_CONST, instr.NoArg(), n.StartLine())
		return
	}
	e.emitNode(children[0])
	e.b.emit(instr.RETURN_VALUE, instr.NoArg(), n.StartLine())
}

func jsThrowStatement(e *emitter, n parseadapter.Node) {
	e.emitAll(n.NamedChildren())
	e.b.emit(instr.RAISE, instr.NoArg(), n.StartLine())
}

func jsImportStatement(e *emitter, n parseadapter.Node) {
	var source string
	for _, c := range n.NamedChildren() {
		if c.Kind() == "string" {
			source = unquote(c.Text())
		}
	}
	e.b.emit(instr.IMPORT_NAME, instr.SymbolArg(source), n.StartLine())

	for _, c := range n.NamedChildren() {
		switch c.Kind() {
		case "import_clause":
			e.walkImportClause(c)
		case "namespace_import":
			if len(c.NamedChildren()) > 0 {
				name := c.NamedChildren()[0].Text()
				e.b.emit(instr.IMPORT_STAR, instr.NoArg(), n.StartLine())
				e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), n.StartLine())
			}
		}
	}
}

func (e *emitter) walkImportClause(c parseadapter.Node) {
	for _, spec := range c.NamedChildren() {
		switch spec.Kind() {
		case "identifier":
			name := spec.Text()
			e.b.emit(instr.IMPORT_FROM, instr.SymbolArg("default"), spec.StartLine())
			e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), spec.StartLine())
		case "named_imports":
			for _, im := range spec.NamedChildren() {
				if im.Kind() != "import_specifier" {
					continue
				}
				nameNode, _ := im.Field("name")
				aliasNode, hasAlias := im.Field("alias")
				name := nameNode.Text()
				e.b.emit(instr.IMPORT_FROM, instr.SymbolArg(name), im.StartLine())
				bound := name
				if hasAlias {
					bound = aliasNode.Text()
				}
				e.b.emit(e.sc.storeOp(bound), instr.SymbolArg(bound), im.StartLine())
			}
		case "namespace_import":
			if len(spec.NamedChildren()) > 0 {
				name := spec.NamedChildren()[0].Text()
				e.b.emit(instr.IMPORT_STAR, instr.NoArg(), spec.StartLine())
				e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), spec.StartLine())
			}
		}
	}
}

func jsFunctionDeclaration(e *emitter, n parseadapter.Node) {
	nameNode, hasName := n.Field("name")
	name := "<anonymous>"
	if hasName {
		name = nameNode.Text()
	}
	paramsNode, _ := n.Field("parameters")
	bodyNode, _ := n.Field("body")

	if e.defDepth > 0 {
		e.defDepth++
		fnScope := newFunctionScope()
		fnScope.outer = e.sc
		declareJSParams(fnScope, paramsNode)
		preDeclareBindings(fnScope, bodyNode, e.language)
		outer := e.sc
		e.sc = fnScope
		e.emitNode(bodyNode)
		e.sc = outer
		e.defDepth--
		return
	}

	fnScope := newFunctionScope()
	fnScope.outer = e.sc
	declareJSParams(fnScope, paramsNode)
	e.defDepth++
	id, resume := e.newChildObject(name, fnScope)
	preDeclareBindings(e.sc, bodyNode, e.language)
	e.emitNode(bodyNode)
	if noTerminalReturn(e.co) {
		e.b.emit(instr.RETURN_CONST, instr.NoArg(), n.EndLine())
	}
	resume()
	e.defDepth--

	e.b.emit(instr.MAKE_FUNCTION, instr.RefArg(id), n.StartLine())
	if hasName {
		e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), n.StartLine())
	}
}

func jsArrowFunction(e *emitter, n parseadapter.Node) {
	paramsNode, hasParams := n.Field("parameters")
	bodyNode, _ := n.Field("body")

	bind := func(sc *scope) {
		if hasParams {
			declareJSParams(sc, paramsNode)
		} else if p, ok := n.Field("parameter"); ok {
			sc.declareParam(p.Text())
		}
	}

	if e.defDepth > 0 {
		fnScope := newFunctionScope()
		fnScope.outer = e.sc
		bind(fnScope)
		outer := e.sc
		e.sc = fnScope
		e.defDepth++
		e.emitExpressionOrBlockBody(bodyNode)
		e.defDepth--
		e.sc = outer
		return
	}

	fnScope := newFunctionScope()
	fnScope.outer = e.sc
	bind(fnScope)
	e.defDepth++
	id, resume := e.newChildObject("<arrow>", fnScope)
	e.emitExpressionOrBlockBody(bodyNode)
	resume()
	e.defDepth--
	e.b.emit(instr.MAKE_FUNCTION, instr.RefArg(id), n.StartLine())
}

// emitExpressionOrBlockBody handles an arrow function body that is either a
// statement_block or a bare expression implicitly returned.
func (e *emitter) emitExpressionOrBlockBody(body parseadapter.Node) {
	if body == nil {
		e.b.emit(instr.RETURN_CONST, instr.NoArg(), 0)
		return
	}
	if body.Kind() == "statement_block" {
		e.emitNode(body)
		if noTerminalReturn(e.co) {
			e.b.emit(instr.RETURN_CONST, instr.NoArg(), body.EndLine())
		}
		return
	}
	e.emitNode(body)
	e.b.emit(instr.RETURN_VALUE, instr.NoArg(), body.EndLine())
}

func jsClassDeclaration(e *emitter, n parseadapter.Node) {
	nameNode, hasName := n.Field("name")
	name := "<anonymous>"
	if hasName {
		name = nameNode.Text()
	}
	bodyNode, _ := n.Field("body")

	classScope := newFunctionScope()
	classScope.outer = e.sc
	id, resume := e.newChildObject(name, classScope)
	if bodyNode != nil {
		for _, member := range bodyNode.NamedChildren() {
			if member.Kind() == "method_definition" {
				e.inlineJSMethod(member)
				continue
			}
			e.emitNode(member)
		}
	}
	resume()

	e.b.emit(instr.MAKE_CLASS, instr.RefArg(id), n.StartLine())
	if hasName {
		e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), n.StartLine())
	}
}

func (e *emitter) inlineJSMethod(n parseadapter.Node) {
	paramsNode, _ := n.Field("parameters")
	bodyNode, _ := n.Field("body")

	methodScope := newFunctionScope()
	// Method bodies don't close over the class body's own locals (same
	// scoping rule as inlineMethod in python.go).
	methodScope.outer = e.sc.outer
	declareJSParams(methodScope, paramsNode)
	preDeclareBindings(methodScope, bodyNode, e.language)

	outer := e.sc
	e.sc = methodScope
	e.defDepth++
	e.emitNode(bodyNode)
	e.defDepth--
	e.sc = outer
}

func jsVariableDeclaration(e *emitter, n parseadapter.Node) {
	for _, decl := range n.NamedChildren() {
		if decl.Kind() != "variable_declarator" {
			continue
		}
		nameNode, _ := decl.Field("name")
		valueNode, hasValue := decl.Field("value")
		if hasValue {
			e.emitNode(valueNode)
		} else {
			e.b.emit(instr.LOAD_CONST, instr.CategoryArg("NONE"), decl.StartLine())
		}
		if nameNode != nil {
			e.emitStoreTarget(nameNode)
		}
	}
}

func jsArray(e *emitter, n parseadapter.Node)  { e.emitContainer(n, instr.BUILD_LIST) }
func jsObject(e *emitter, n parseadapter.Node) {
	pairs := n.NamedChildren()
	count := 0
	for _, p := range pairs {
		if p.Kind() != "pair" {
			if p.Kind() == "shorthand_property_identifier" {
				e.emitNode(p)
				e.emitNode(p)
				count++
			}
			continue
		}
		if key, ok := p.Field("key"); ok {
			e.emitNode(key)
		}
		if val, ok := p.Field("value"); ok {
			e.emitNode(val)
		}
		count++
	}
	e.b.emit(instr.BUILD_MAP, instr.IntArg(int64(count)), n.StartLine())
}

func declareJSParams(sc *scope, paramsNode parseadapter.Node) {
	if paramsNode == nil {
		return
	}
	for _, p := range paramsNode.NamedChildren() {
		switch p.Kind() {
		case "identifier":
			sc.declareParam(p.Text())
		case "assignment_pattern":
			if left, ok := p.Field("left"); ok {
				sc.declareParam(left.Text())
			}
		case "rest_pattern":
			if len(p.NamedChildren()) > 0 {
				sc.declareParam(p.NamedChildren()[0].Text())
			}
		case "object_pattern", "array_pattern":
			for _, c := range p.NamedChildren() {
				sc.declareParam(c.Text())
			}
		}
	}
}
