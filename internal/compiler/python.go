package compiler

import (
	"strings"

	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/parseadapter"
)

var pythonDispatch = dispatch{
	"expression_statement": pyExpressionStatement,
	"assignment":            pyAssignment,
	"augmented_assignment":  pyAugAssignment,
	"call":                  pyCall,
	"attribute":             pyAttribute,
	"identifier":            pyIdentifier,
	"binary_operator":       pyBinaryOperator,
	"comparison_operator":   pyComparisonOperator,
	"boolean_operator":      pyComparisonOperator,
	"not_operator":          pyNotOperator,
	"unary_operator":        pyUnaryOperator,
	"parenthesized_expression": pyParenthesized,
	"if_statement":          pyIfStatement,
	"elif_clause":           pyElifClause,
	"for_statement":         pyForStatement,
	"while_statement":       pyWhileStatement,
	"try_statement":         pyTryStatement,
	"with_statement":        pyWithStatement,
	"return_statement":      pyReturnStatement,
	"raise_statement":       pyRaiseStatement,
	"pass_statement":        pyPass,
	"break_statement":       pyBreak,
	"continue_statement":    pyContinue,
	"import_statement":      pyImportStatement,
	"import_from_statement": pyImportFromStatement,
	"function_definition":   pyFunctionDefinition,
	"class_definition":      pyClassDefinition,
	"lambda":                pyLambda,
	"list":                  pyList,
	"tuple":                 pyTuple,
	"set":                   pySet,
	"dictionary":            pyDictionary,
	"list_comprehension":    pyComprehension,
	"set_comprehension":     pyComprehension,
	"dictionary_comprehension": pyComprehension,
	"generator_expression":  pyComprehension,
	"subscript":             pySubscript,
	"block":                 pyBlock,
	"string":                pyLiteralPass,
	"integer":                pyLiteralPass,
	"float":                  pyLiteralPass,
	"true":                   pyLiteralPass,
	"false":                  pyLiteralPass,
	"none":                   pyLiteralPass,
}

func pythonFallback(e *emitter, n parseadapter.Node) {
	if e.emitLiteral(n) {
		return
	}
	// Unrecognized node kind: recurse into named children so literals and
	// calls buried inside it still get emitted (closed-table fallback,
	// Design Notes §9: "a single central table", total by construction).
	e.emitAll(n.NamedChildren())
}

func pyLiteralPass(e *emitter, n parseadapter.Node) { e.emitLiteral(n) }

func pyBlock(e *emitter, n parseadapter.Node) { e.emitAll(n.NamedChildren()) }

func pyExpressionStatement(e *emitter, n parseadapter.Node) {
	children := n.NamedChildren()
	if len(children) == 0 {
		return
	}
	e.emitNode(children[0])
	e.b.emit(instr.POP_TOP, instr.NoArg(), n.StartLine())
}

func pyAssignment(e *emitter, n parseadapter.Node) {
	right, hasRight := n.Field("right")
	left, hasLeft := n.Field("left")
	if hasRight {
		e.emitNode(right)
	}
	if hasLeft {
		e.emitStoreTarget(left)
	}
}

func pyAugAssignment(e *emitter, n parseadapter.Node) {
	left, hasLeft := n.Field("left")
	right, hasRight := n.Field("right")
	if hasLeft {
		e.emitNode(left)
	}
	if hasRight {
		e.emitNode(right)
	}
	e.emitOperator(operatorToken(n), n.StartLine())
	if hasLeft {
		e.emitStoreTarget(left)
	}
}

// emitStoreTarget emits the appropriate STORE_* for an assignment target,
// recursing into tuple/list destructuring patterns.
func (e *emitter) emitStoreTarget(target parseadapter.Node) {
	switch target.Kind() {
	case "identifier":
		e.b.emit(e.sc.storeOp(target.Text()), instr.SymbolArg(target.Text()), target.StartLine())
	case "attribute", "member_expression":
		if obj, ok := target.Field("object"); ok {
			e.emitNode(obj)
		}
		field := "attribute"
		if target.Kind() == "member_expression" {
			field = "property"
		}
		if attr, ok := target.Field(field); ok {
			e.b.emit(instr.STORE_ATTR, instr.SymbolArg(attr.Text()), target.StartLine())
		}
	case "subscript", "subscript_expression":
		if val, ok := target.Field("value"); ok {
			e.emitNode(val)
		}
		idxField := "subscript"
		if target.Kind() == "subscript_expression" {
			idxField = "index"
		}
		if sub, ok := target.Field(idxField); ok {
			e.emitNode(sub)
		}
		e.b.emit(instr.STORE_SUBSCR, instr.NoArg(), target.StartLine())
	case "tuple_pattern", "list_pattern", "tuple", "list", "pattern_list",
		"array_pattern", "object_pattern", "array":
		for _, c := range target.NamedChildren() {
			e.emitStoreTarget(c)
		}
	default:
		e.emitAll(target.NamedChildren())
	}
}

func pyCall(e *emitter, n parseadapter.Node) {
	fn, _ := n.Field("function")
	e.emitNode(fn)

	argsNode, _ := n.Field("arguments")
	var positional []parseadapter.Node
	var kwNames []string
	var kwValues []parseadapter.Node
	if argsNode != nil {
		for _, a := range argsNode.NamedChildren() {
			if a.Kind() == "keyword_argument" {
				if name, ok := a.Field("name"); ok {
					kwNames = append(kwNames, name.Text())
				}
				if val, ok := a.Field("value"); ok {
					kwValues = append(kwValues, val)
				}
				continue
			}
			positional = append(positional, a)
		}
	}

	for _, p := range positional {
		e.emitNode(p)
	}
	for _, v := range kwValues {
		e.emitNode(v)
	}
	if len(kwNames) > 0 {
		// spec §4.2 rule 5: KW_NAMES carries the ordered keyword-name list
		// and must immediately precede CALL.
		e.b.emit(instr.KW_NAMES, instr.KWNamesArg(kwNames), n.StartLine())
	}
	e.b.emit(instr.CALL, instr.IntArg(int64(len(positional))), n.StartLine())
}

func pyAttribute(e *emitter, n parseadapter.Node) {
	if obj, ok := n.Field("object"); ok {
		e.emitNode(obj)
	}
	if attr, ok := n.Field("attribute"); ok {
		e.b.emit(instr.LOAD_ATTR, instr.SymbolArg(attr.Text()), n.StartLine())
	}
}

func pyIdentifier(e *emitter, n parseadapter.Node) {
	name := n.Text()
	e.b.emit(e.sc.loadOp(name), instr.SymbolArg(name), n.StartLine())
}

func pyBinaryOperator(e *emitter, n parseadapter.Node) {
	left, _ := n.Field("left")
	right, _ := n.Field("right")
	e.emitNode(left)
	e.emitNode(right)
	e.emitOperator(operatorToken(n), n.StartLine())
}

func pyComparisonOperator(e *emitter, n parseadapter.Node) {
	named := n.NamedChildren()
	for _, c := range named {
		e.emitNode(c)
	}
	e.emitOperator(operatorToken(n), n.StartLine())
}

func pyNotOperator(e *emitter, n parseadapter.Node) {
	if arg, ok := n.Field("argument"); ok {
		e.emitNode(arg)
	}
	e.b.emit(instr.UNARY_NOT, instr.NoArg(), n.StartLine())
}

func pyUnaryOperator(e *emitter, n parseadapter.Node) {
	if arg, ok := n.Field("argument"); ok {
		e.emitNode(arg)
	}
	op := operatorToken(n)
	switch op {
	case "-":
		e.b.emit(instr.UNARY_NEG, instr.NoArg(), n.StartLine())
	case "~":
		e.b.emit(instr.UNARY_INV, instr.NoArg(), n.StartLine())
	default:
		e.b.emit(instr.UNARY_NOT, instr.NoArg(), n.StartLine())
	}
}

func pyParenthesized(e *emitter, n parseadapter.Node) { e.emitAll(n.NamedChildren()) }

func pyIfStatement(e *emitter, n parseadapter.Node) {
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

func pyElifClause(e *emitter, n parseadapter.Node) {
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

func pyForStatement(e *emitter, n parseadapter.Node) {
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

func pyWhileStatement(e *emitter, n parseadapter.Node) {
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

func pyTryStatement(e *emitter, n parseadapter.Node) {
	handler := e.b.newLabel()
	after := e.b.newLabel()
	e.b.emitJump(instr.SETUP_FINALLY, handler, n.StartLine())

	var exceptClauses, finallyClauses []parseadapter.Node
	var body []parseadapter.Node
	for _, c := range n.NamedChildren() {
		switch c.Kind() {
		case "except_clause":
			exceptClauses = append(exceptClauses, c)
		case "finally_clause":
			finallyClauses = append(finallyClauses, c)
		case "else_clause":
			// executed only if no exception; inlined after the try body.
			body = append(body, c.NamedChildren()...)
		default:
			body = append(body, c)
		}
	}
	e.emitAll(body)
	e.b.emitJump(instr.JUMP_FORWARD, after, n.StartLine())
	e.b.mark(handler)
	for _, ex := range exceptClauses {
		e.emitAll(ex.NamedChildren())
		e.b.emit(instr.POP_EXCEPT, instr.NoArg(), ex.StartLine())
	}
	e.b.mark(after)
	for _, fin := range finallyClauses {
		e.emitAll(fin.NamedChildren())
	}
}

func pyWithStatement(e *emitter, n parseadapter.Node) {
	var items []parseadapter.Node
	for _, c := range n.NamedChildren() {
		if c.Kind() == "with_clause" {
			items = c.NamedChildren()
		}
	}
	for _, item := range items {
		var value parseadapter.Node
		if item.Kind() == "with_item" {
			value, _ = item.Field("value")
		} else {
			value = item
		}
		if value != nil {
			e.emitNode(value)
		}
		e.b.emit(instr.BEFORE_WITH, instr.NoArg(), n.StartLine())
		if item.Kind() == "with_item" {
			if alias, ok := item.Field("alias"); ok {
				e.emitStoreTarget(alias)
			}
		}
	}
	for _, c := range n.NamedChildren() {
		if c.Kind() == "block" {
			e.emitNode(c)
		}
	}
	e.b.emit(instr.WITH_EXIT, instr.NoArg(), n.StartLine())
}

func pyReturnStatement(e *emitter, n parseadapter.Node) {
	children := n.NamedChildren()
	if len(children) == 0 {
		e.b.emit(instr.RETURN_CONST, instr.NoArg(), n.StartLine())
		return
	}
	e.emitNode(children[0])
	e.b.emit(instr.RETURN_VALUE, instr.NoArg(), n.StartLine())
}

func pyRaiseStatement(e *emitter, n parseadapter.Node) {
	children := n.NamedChildren()
	if len(children) > 0 {
		e.emitNode(children[0])
	}
	e.b.emit(instr.RAISE, instr.NoArg(), n.StartLine())
}

func pyPass(e *emitter, n parseadapter.Node) { e.b.emit(instr.NOP, instr.NoArg(), n.StartLine()) }

func pyBreak(e *emitter, n parseadapter.Node) {
	if _, end, ok := e.currentLoop(); ok {
		e.b.emitJump(instr.JUMP_FORWARD, end, n.StartLine())
		return
	}
	e.b.emit(instr.NOP, instr.CategoryArg("BREAK_OUTSIDE_LOOP"), n.StartLine())
}

func pyContinue(e *emitter, n parseadapter.Node) {
	if start, _, ok := e.currentLoop(); ok {
		e.b.emitJump(instr.JUMP_BACKWARD, start, n.StartLine())
		return
	}
	e.b.emit(instr.NOP, instr.CategoryArg("CONTINUE_OUTSIDE_LOOP"), n.StartLine())
}

func pyImportStatement(e *emitter, n parseadapter.Node) {
	for _, c := range n.NamedChildren() {
		switch c.Kind() {
		case "dotted_name":
			name := c.Text()
			e.b.emit(instr.IMPORT_NAME, instr.SymbolArg(name), n.StartLine())
			e.b.emit(e.sc.storeOp(topModule(name)), instr.SymbolArg(topModule(name)), n.StartLine())
		case "aliased_import":
			nameNode, _ := c.Field("name")
			aliasNode, hasAlias := c.Field("alias")
			name := ""
			if nameNode != nil {
				name = nameNode.Text()
			}
			e.b.emit(instr.IMPORT_NAME, instr.SymbolArg(name), n.StartLine())
			bound := name
			if hasAlias {
				bound = aliasNode.Text()
			}
			e.b.emit(e.sc.storeOp(bound), instr.SymbolArg(bound), n.StartLine())
		}
	}
}

func pyImportFromStatement(e *emitter, n parseadapter.Node) {
	moduleNode, _ := n.Field("module_name")
	module := ""
	if moduleNode != nil {
		module = moduleNode.Text()
	}
	e.b.emit(instr.IMPORT_NAME, instr.SymbolArg(module), n.StartLine())

	names := n.NamedChildren()
	star := false
	for _, c := range names {
		if c.Kind() == "wildcard_import" {
			star = true
		}
	}
	if star {
		e.b.emit(instr.IMPORT_STAR, instr.NoArg(), n.StartLine())
		return
	}
	for _, c := range names {
		switch c.Kind() {
		case "dotted_name", "identifier":
			if c == moduleNode {
				continue
			}
			name := c.Text()
			e.b.emit(instr.IMPORT_FROM, instr.SymbolArg(name), n.StartLine())
			e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), n.StartLine())
		case "aliased_import":
			nameNode, _ := c.Field("name")
			aliasNode, hasAlias := c.Field("alias")
			name := nameNode.Text()
			e.b.emit(instr.IMPORT_FROM, instr.SymbolArg(name), n.StartLine())
			bound := name
			if hasAlias {
				bound = aliasNode.Text()
			}
			e.b.emit(e.sc.storeOp(bound), instr.SymbolArg(bound), n.StartLine())
		}
	}
}

func pyFunctionDefinition(e *emitter, n parseadapter.Node) {
	nameNode, _ := n.Field("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = nameNode.Text()
	}
	paramsNode, _ := n.Field("parameters")
	bodyNode, _ := n.Field("body")

	if e.defDepth > 0 {
		// Nested (depth > 0): inlined into the enclosing stream, no
		// separate Code Object (spec §4.2 rule 2).
		e.defDepth++
		fnScope := newFunctionScope()
		fnScope.outer = e.sc
		declareParams(fnScope, paramsNode)
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
	declareParams(fnScope, paramsNode)
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
	e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), n.StartLine())
}

func pyClassDefinition(e *emitter, n parseadapter.Node) {
	nameNode, _ := n.Field("name")
	name := "<anonymous>"
	if nameNode != nil {
		name = nameNode.Text()
	}
	bodyNode, _ := n.Field("body")

	classScope := newFunctionScope()
	classScope.outer = e.sc
	id, resume := e.newChildObject(name, classScope)
	for _, member := range bodyNode.NamedChildren() {
		if member.Kind() == "function_definition" {
			e.inlineMethod(member)
			continue
		}
		e.emitNode(member)
	}
	resume()

	e.b.emit(instr.MAKE_CLASS, instr.RefArg(id), n.StartLine())
	e.b.emit(e.sc.storeOp(name), instr.SymbolArg(name), n.StartLine())
}

// inlineMethod emits a method's body directly into the class Code Object's
// stream, per spec §4.2 rule 3; its own nested defs are depth > 0 from here.
func (e *emitter) inlineMethod(n parseadapter.Node) {
	paramsNode, _ := n.Field("parameters")
	bodyNode, _ := n.Field("body")

	methodScope := newFunctionScope()
	// Method bodies don't close over the class body's own locals (real
	// Python scoping rule); skip past classScope to whatever enclosed it.
	methodScope.outer = e.sc.outer
	declareParams(methodScope, paramsNode)
	preDeclareBindings(methodScope, bodyNode, e.language)

	outer := e.sc
	e.sc = methodScope
	e.defDepth++
	e.emitNode(bodyNode)
	e.defDepth--
	e.sc = outer
}

func pyLambda(e *emitter, n parseadapter.Node) {
	paramsNode, _ := n.Field("parameters")
	bodyNode, _ := n.Field("body")

	if e.defDepth > 0 {
		lamScope := newFunctionScope()
		lamScope.outer = e.sc
		declareParams(lamScope, paramsNode)
		outer := e.sc
		e.sc = lamScope
		e.defDepth++
		e.emitNode(bodyNode)
		e.defDepth--
		e.sc = outer
		return
	}

	lamScope := newFunctionScope()
	lamScope.outer = e.sc
	declareParams(lamScope, paramsNode)
	e.defDepth++
	id, resume := e.newChildObject("<lambda>", lamScope)
	e.emitNode(bodyNode)
	e.b.emit(instr.RETURN_VALUE, instr.NoArg(), n.EndLine())
	resume()
	e.defDepth--
	e.b.emit(instr.MAKE_FUNCTION, instr.RefArg(id), n.StartLine())
}

func pyList(e *emitter, n parseadapter.Node)  { e.emitContainer(n, instr.BUILD_LIST) }
func pyTuple(e *emitter, n parseadapter.Node) { e.emitContainer(n, instr.BUILD_TUPLE) }
func pySet(e *emitter, n parseadapter.Node)   { e.emitContainer(n, instr.BUILD_SET) }

func pyDictionary(e *emitter, n parseadapter.Node) {
	pairs := n.NamedChildren()
	count := 0
	for _, p := range pairs {
		if p.Kind() != "pair" {
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

// pyComprehension treats comprehensions per rule 4 (synthetic child object
// at depth 0, inlined otherwise), collapsing the body expression and
// for-clauses into a single linear emission since no real iteration runs.
func pyComprehension(e *emitter, n parseadapter.Node) {
	op := instr.BUILD_LIST
	switch n.Kind() {
	case "set_comprehension":
		op = instr.BUILD_SET
	case "dictionary_comprehension":
		op = instr.BUILD_MAP
	case "generator_expression":
		op = instr.BUILD_TUPLE
	}

	emitBody := func() {
		for _, c := range n.NamedChildren() {
			if c.Kind() == "for_in_clause" {
				if right, ok := c.Field("right"); ok {
					e.emitNode(right)
				}
				e.b.emit(instr.GET_ITER, instr.NoArg(), c.StartLine())
				continue
			}
			if c.Kind() == "if_clause" {
				e.emitAll(c.NamedChildren())
				continue
			}
			e.emitNode(c)
		}
		e.b.emit(op, instr.IntArg(0), n.StartLine())
	}

	if e.defDepth > 0 {
		emitBody()
		return
	}
	e.defDepth++
	compScope := newFunctionScope()
	compScope.outer = e.sc
	id, resume := e.newChildObject("<comprehension>", compScope)
	emitBody()
	e.b.emit(instr.RETURN_VALUE, instr.NoArg(), n.EndLine())
	resume()
	e.defDepth--
	e.b.emit(instr.MAKE_FUNCTION, instr.RefArg(id), n.StartLine())
	e.b.emit(instr.CALL, instr.IntArg(0), n.StartLine())
}

func pySubscript(e *emitter, n parseadapter.Node) {
	if val, ok := n.Field("value"); ok {
		e.emitNode(val)
	}
	if sub, ok := n.Field("subscript"); ok {
		e.emitNode(sub)
	}
	e.b.emit(instr.BINARY_SUBSCR, instr.NoArg(), n.StartLine())
}

func declareParams(sc *scope, paramsNode parseadapter.Node) {
	if paramsNode == nil {
		return
	}
	for _, p := range paramsNode.NamedChildren() {
		switch p.Kind() {
		case "identifier":
			sc.declareParam(p.Text())
		case "default_parameter", "typed_parameter", "typed_default_parameter":
			if nm, ok := p.Field("name"); ok {
				sc.declareParam(nm.Text())
			} else if len(p.NamedChildren()) > 0 {
				sc.declareParam(p.NamedChildren()[0].Text())
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			for _, c := range p.NamedChildren() {
				sc.declareParam(c.Text())
			}
		}
	}
}

func topModule(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

// operatorToken returns the text of the first anonymous (operator) token
// child, used by binary/comparison/augmented-assignment/unary handlers.
func operatorToken(n parseadapter.Node) string {
	for _, c := range n.Children() {
		if !c.IsNamed() {
			t := strings.TrimSpace(c.Text())
			if t != "" && t != "(" && t != ")" {
				return t
			}
		}
	}
	return ""
}

func noTerminalReturn(co *instr.CodeObject) bool {
	if len(co.Instructions) == 0 {
		return true
	}
	last := co.Instructions[len(co.Instructions)-1].Op
	return last != instr.RETURN_VALUE && last != instr.RETURN_CONST
}
