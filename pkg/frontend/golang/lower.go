// Package golang lowers Go source functions into the instruction stream
// consumed by the CFG builder. Parsing uses tree-sitter, so the source only
// has to be syntactically valid.
//
// Straight-line statements become "stmt" or "assign" operations that carry
// the statement text as their value and the identifiers they read as args.
// Conditions become "cond" operations writing a temporary that a br then
// tests. Loops, switches, selects, labels, goto, break, continue and
// fallthrough become labels and jmp/br terminators.
package golang

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/l3aro/go-dominance/pkg/ir"
)

// Operations produced by the lowering besides br, jmp and ret.
const (
	OpStmt   = "stmt"
	OpAssign = "assign"
	OpCond   = "cond"
)

var (
	// ErrFunctionNotFound is returned when no function has the requested name.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrSyntax is returned when tree-sitter reports a parse error.
	ErrSyntax = errors.New("syntax error")

	// ErrUnresolvedJump is returned for a break or continue outside any
	// enclosing target, or naming an unknown label.
	ErrUnresolvedJump = errors.New("unresolved jump")
)

// LowerFile reads and lowers every function of a Go source file.
func LowerFile(ctx context.Context, path string) (*ir.Program, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	prog, err := Lower(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// LowerFiles lowers several files into one program. Function names are
// qualified by the file's path as given, "path:Name".
func LowerFiles(ctx context.Context, paths []string) (*ir.Program, error) {
	out := &ir.Program{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prog, err := LowerFile(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, fn := range prog.Functions {
			fn.Name = path + ":" + fn.Name
			out.Functions = append(out.Functions, fn)
		}
	}
	return out, nil
}

// Lower parses src and lowers every function and method with a body, in
// source order. Methods are named Recv.Name.
func Lower(ctx context.Context, src []byte) (*ir.Program, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w at %s", ErrSyntax, firstError(root))
	}

	prog := &ir.Program{}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)
		if decl.Type() != "function_declaration" && decl.Type() != "method_declaration" {
			continue
		}
		body := decl.ChildByFieldName("body")
		if body == nil {
			continue
		}

		fn, err := newLowerer(src).function(decl, body)
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, *fn)
	}
	return prog, nil
}

// LowerFunction lowers the single function called name.
func LowerFunction(ctx context.Context, src []byte, name string) (*ir.Function, error) {
	prog, err := Lower(ctx, src)
	if err != nil {
		return nil, err
	}
	fn, err := prog.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return fn, nil
}

func firstError(n *sitter.Node) string {
	if n.IsError() || n.IsMissing() {
		p := n.StartPoint()
		return fmt.Sprintf("line %d column %d", p.Row+1, p.Column+1)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.HasError() {
			return firstError(c)
		}
	}
	return "unknown position"
}

// jumpTarget is an enclosing statement that break, and for loops continue,
// may leave.
type jumpTarget struct {
	label string // Go label attached to the statement, if any
	brk   string
	cont  string // empty for switch and select
}

type lowerer struct {
	src     []byte
	instrs  []ir.Instruction
	n       int
	targets []jumpTarget
	pending string // Go label waiting for the next loop, switch or select
	err     error  // first literal encoding failure
}

func newLowerer(src []byte) *lowerer {
	return &lowerer{src: src}
}

func (l *lowerer) function(decl, body *sitter.Node) (*ir.Function, error) {
	fn := &ir.Function{Name: l.text(decl.ChildByFieldName("name"))}
	if decl.Type() == "method_declaration" {
		if recv := receiverType(l, decl.ChildByFieldName("receiver")); recv != "" {
			fn.Name = recv + "." + fn.Name
		}
	}
	fn.Args = l.params(decl.ChildByFieldName("parameters"))
	if result := decl.ChildByFieldName("result"); result != nil {
		fn.Type = l.text(result)
	}

	if err := l.block(body); err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name, err)
	}
	if l.err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name, l.err)
	}
	fn.Instrs = l.instrs
	return fn, nil
}

func receiverType(l *lowerer, recv *sitter.Node) string {
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	t := recv.NamedChild(0).ChildByFieldName("type")
	if t == nil {
		return ""
	}
	name := strings.TrimPrefix(l.text(t), "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func (l *lowerer) params(list *sitter.Node) []ir.Arg {
	if list == nil {
		return nil
	}
	var args []ir.Arg
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		typ := l.text(p.ChildByFieldName("type"))
		for j := 0; j < int(p.NamedChildCount()); j++ {
			c := p.NamedChild(j)
			if c.Type() == "identifier" {
				args = append(args, ir.Arg{Name: l.text(c), Type: typ})
			}
		}
	}
	return args
}

func (l *lowerer) fresh() int {
	l.n++
	return l.n
}

func (l *lowerer) temp() string {
	return fmt.Sprintf("%%%d", l.fresh())
}

func (l *lowerer) emit(instr ir.Instruction) {
	l.instrs = append(l.instrs, instr)
}

func (l *lowerer) label(name string) {
	l.emit(ir.NewLabel(name))
}

// jmp emits a jump unless the stream already ends in a terminator, which
// would leave the jump in a dead block of its own.
func (l *lowerer) jmp(target string) {
	if n := len(l.instrs); n > 0 && l.instrs[n-1].IsTerminator() {
		return
	}
	l.emit(ir.Jmp(target))
}

func (l *lowerer) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(l.src)
}

// quote encodes s as a JSON string literal without HTML escaping, so
// operators such as < and & stay readable in reports.
func (l *lowerer) quote(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		if l.err == nil {
			l.err = fmt.Errorf("encoding literal %q: %w", s, err)
		}
		return nil
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// block lowers the statements of a block or case body.
func (l *lowerer) block(n *sitter.Node) error {
	for _, s := range statements(n) {
		if err := l.statement(s); err != nil {
			return err
		}
	}
	return nil
}

// statements returns the statements directly inside n, looking through
// statement_list wrappers and skipping comments.
func statements(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
		case "statement_list":
			out = append(out, statements(c)...)
		default:
			out = append(out, c)
		}
	}
	return out
}

// caseBody returns the statements after the colon of a case clause.
func caseBody(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	seenColon := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if !seenColon {
			seenColon = c.Type() == ":"
			continue
		}
		if !c.IsNamed() || c.Type() == "comment" {
			continue
		}
		if c.Type() == "statement_list" {
			out = append(out, statements(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// caseHead returns the text of a case clause up to its colon.
func (l *lowerer) caseHead(n *sitter.Node) string {
	text := l.text(n)
	if i := strings.IndexByte(text, ':'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}

func (l *lowerer) statement(n *sitter.Node) error {
	switch n.Type() {
	case "block":
		return l.block(n)
	case "empty_statement":
		return nil
	case "if_statement":
		return l.ifStatement(n)
	case "for_statement":
		return l.forStatement(n)
	case "expression_switch_statement", "type_switch_statement":
		return l.switchStatement(n)
	case "select_statement":
		return l.selectStatement(n)
	case "labeled_statement":
		return l.labeledStatement(n)
	case "return_statement":
		l.emit(ir.Instruction{Op: ir.OpRet, Args: l.uses(n), Value: l.quote(l.text(n))})
		return nil
	case "goto_statement":
		l.jmp(l.text(n.NamedChild(0)))
		return nil
	case "break_statement":
		return l.branchStatement(n, false)
	case "continue_statement":
		return l.branchStatement(n, true)
	case "fallthrough_statement":
		// Resolved by switchStatement, which ends the case with a jump to the
		// next body.
		return nil
	case "short_var_declaration", "assignment_statement":
		l.assignment(n)
		return nil
	case "inc_statement", "dec_statement":
		operand := n.NamedChild(0)
		dest := ""
		if operand != nil && operand.Type() == "identifier" {
			dest = l.text(operand)
		}
		l.emit(ir.Instruction{Op: OpAssign, Dest: dest, Args: l.uses(n), Value: l.quote(l.text(n))})
		return nil
	case "var_declaration":
		l.varDeclaration(n)
		return nil
	default:
		l.emit(ir.Instruction{Op: OpStmt, Args: l.uses(n), Value: l.quote(l.text(n))})
		return nil
	}
}

func (l *lowerer) assignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	args := l.uses(right)

	op := n.ChildByFieldName("operator")
	compound := op != nil && l.text(op) != "=" && l.text(op) != ":="

	var dests []string
	for i := 0; left != nil && i < int(left.NamedChildCount()); i++ {
		c := left.NamedChild(i)
		if c.Type() == "identifier" && l.text(c) != "_" {
			dests = append(dests, l.text(c))
			continue
		}
		args = appendUnique(args, l.uses(c)...)
	}
	if compound {
		args = appendUnique(l.uses(left), args...)
	}

	if len(dests) == 0 {
		l.emit(ir.Instruction{Op: OpAssign, Args: args, Value: l.quote(l.text(n))})
		return
	}
	for i, d := range dests {
		instr := ir.Instruction{Op: OpAssign, Dest: d, Args: args}
		if i == 0 {
			instr.Value = l.quote(l.text(n))
		}
		l.emit(instr)
	}
}

func (l *lowerer) varDeclaration(n *sitter.Node) {
	var specs []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "var_spec":
			specs = append(specs, c)
		case "var_spec_list":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if s := c.NamedChild(j); s.Type() == "var_spec" {
					specs = append(specs, s)
				}
			}
		}
	}

	for _, spec := range specs {
		args := l.uses(spec.ChildByFieldName("value"))
		first := true
		for j := 0; j < int(spec.NamedChildCount()); j++ {
			c := spec.NamedChild(j)
			if c.Type() != "identifier" || l.text(c) == "_" {
				continue
			}
			instr := ir.Instruction{Op: OpAssign, Dest: l.text(c), Args: args}
			if first {
				instr.Value = l.quote(l.text(spec))
				first = false
			}
			l.emit(instr)
		}
	}
}

// cond emits a cond operation for an expression and returns its temporary.
func (l *lowerer) cond(n *sitter.Node, text string) string {
	t := l.temp()
	l.emit(ir.Instruction{Op: OpCond, Dest: t, Args: l.uses(n), Value: l.quote(text)})
	return t
}

func (l *lowerer) ifStatement(n *sitter.Node) error {
	if init := n.ChildByFieldName("initializer"); init != nil {
		if err := l.statement(init); err != nil {
			return err
		}
	}

	k := l.fresh()
	then := fmt.Sprintf("if.then.%d", k)
	done := fmt.Sprintf("if.done.%d", k)
	alt := n.ChildByFieldName("alternative")
	otherwise := done
	if alt != nil {
		otherwise = fmt.Sprintf("if.else.%d", k)
	}

	condition := n.ChildByFieldName("condition")
	l.emit(ir.Br(l.cond(condition, l.text(condition)), then, otherwise))

	l.label(then)
	if err := l.block(n.ChildByFieldName("consequence")); err != nil {
		return err
	}
	l.jmp(done)

	if alt != nil {
		l.label(otherwise)
		if err := l.statement(alt); err != nil {
			return err
		}
		l.jmp(done)
	}

	l.label(done)
	return nil
}

func (l *lowerer) takeLabel() string {
	label := l.pending
	l.pending = ""
	return label
}

func (l *lowerer) forStatement(n *sitter.Node) error {
	goLabel := l.takeLabel()
	k := l.fresh()
	head := fmt.Sprintf("for.head.%d", k)
	body := fmt.Sprintf("for.body.%d", k)
	post := fmt.Sprintf("for.post.%d", k)
	done := fmt.Sprintf("for.done.%d", k)

	var condition, update, rangeClause *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch {
		case c.Type() == "for_clause":
			if init := c.ChildByFieldName("initializer"); init != nil {
				if err := l.statement(init); err != nil {
					return err
				}
			}
			condition = c.ChildByFieldName("condition")
			update = c.ChildByFieldName("update")
		case c.Type() == "range_clause":
			rangeClause = c
		case c.Type() == "block" || c.Type() == "comment":
		default:
			condition = c
		}
	}

	l.jmp(head)
	l.label(head)
	switch {
	case rangeClause != nil:
		t := l.temp()
		l.emit(ir.Instruction{Op: OpCond, Dest: t, Args: l.uses(rangeClause.ChildByFieldName("right")), Value: l.quote(l.text(rangeClause))})
		l.emit(ir.Br(t, body, done))
	case condition != nil:
		l.emit(ir.Br(l.cond(condition, l.text(condition)), body, done))
	default:
		l.jmp(body)
	}

	l.label(body)
	if rangeClause != nil {
		if left := rangeClause.ChildByFieldName("left"); left != nil {
			for i := 0; i < int(left.NamedChildCount()); i++ {
				if c := left.NamedChild(i); c.Type() == "identifier" && l.text(c) != "_" {
					l.emit(ir.Instruction{Op: OpAssign, Dest: l.text(c), Value: l.quote(l.text(left))})
				}
			}
		}
	}

	l.targets = append(l.targets, jumpTarget{label: goLabel, brk: done, cont: post})
	err := l.block(n.ChildByFieldName("body"))
	l.targets = l.targets[:len(l.targets)-1]
	if err != nil {
		return err
	}
	l.jmp(post)

	l.label(post)
	if update != nil {
		if err := l.statement(update); err != nil {
			return err
		}
	}
	l.jmp(head)

	l.label(done)
	return nil
}

// switchStatement lowers a switch into a chain of case tests. Each test
// branches to its body or the next test; the last test falls back to the
// default body when there is one.
func (l *lowerer) switchStatement(n *sitter.Node) error {
	goLabel := l.takeLabel()
	if init := n.ChildByFieldName("initializer"); init != nil {
		if err := l.statement(init); err != nil {
			return err
		}
	}

	k := l.fresh()
	done := fmt.Sprintf("switch.done.%d", k)

	if tag := n.ChildByFieldName("value"); tag != nil {
		l.emit(ir.Instruction{Op: OpStmt, Args: l.uses(tag), Value: l.quote("switch " + l.text(tag))})
	}
	if alias := n.ChildByFieldName("alias"); alias != nil {
		for i := 0; i < int(alias.NamedChildCount()); i++ {
			l.emit(ir.Instruction{Op: OpAssign, Dest: l.text(alias.NamedChild(i))})
		}
	}

	var clauses []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch c := n.NamedChild(i); c.Type() {
		case "expression_case", "type_case", "default_case":
			clauses = append(clauses, c)
		}
	}
	return l.cases(clauses, "switch", k, done, goLabel)
}

func (l *lowerer) selectStatement(n *sitter.Node) error {
	goLabel := l.takeLabel()
	k := l.fresh()
	done := fmt.Sprintf("select.done.%d", k)

	var clauses []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch c := n.NamedChild(i); c.Type() {
		case "communication_case", "default_case":
			clauses = append(clauses, c)
		}
	}
	return l.cases(clauses, "select", k, done, goLabel)
}

func (l *lowerer) cases(clauses []*sitter.Node, kind string, k int, done, goLabel string) error {
	bodies := make([]string, len(clauses))
	dflt := -1
	for i, c := range clauses {
		bodies[i] = fmt.Sprintf("%s.body.%d.%d", kind, k, i)
		if c.Type() == "default_case" {
			dflt = i
		}
	}

	fallback := done
	if dflt >= 0 {
		fallback = bodies[dflt]
	}

	// Tests in source order, default excluded.
	var tests []int
	for i := range clauses {
		if i != dflt {
			tests = append(tests, i)
		}
	}
	if len(tests) == 0 {
		l.jmp(fallback)
	}
	for j, i := range tests {
		next := fallback
		if j+1 < len(tests) {
			next = fmt.Sprintf("%s.case.%d.%d", kind, k, tests[j+1])
		}
		if j > 0 {
			l.label(fmt.Sprintf("%s.case.%d.%d", kind, k, i))
		}
		test := clauses[i].ChildByFieldName("value")
		if test == nil {
			test = clauses[i].ChildByFieldName("communication")
		}
		l.emit(ir.Br(l.cond(test, l.caseHead(clauses[i])), bodies[i], next))
	}

	l.targets = append(l.targets, jumpTarget{label: goLabel, brk: done})
	defer func() { l.targets = l.targets[:len(l.targets)-1] }()

	for i, c := range clauses {
		l.label(bodies[i])
		if comm := c.ChildByFieldName("communication"); comm != nil {
			if err := l.statement(comm); err != nil {
				return err
			}
		}
		stmts := caseBody(c)
		for _, s := range stmts {
			if err := l.statement(s); err != nil {
				return err
			}
		}
		if len(stmts) > 0 && stmts[len(stmts)-1].Type() == "fallthrough_statement" && i+1 < len(clauses) {
			l.jmp(bodies[i+1])
			continue
		}
		l.jmp(done)
	}

	l.label(done)
	return nil
}

func (l *lowerer) labeledStatement(n *sitter.Node) error {
	name := l.text(n.ChildByFieldName("label"))
	l.label(name)

	var stmt *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "label_name" && c.Type() != "comment" {
			stmt = c
			break
		}
	}
	if stmt == nil {
		return nil
	}
	l.pending = name
	err := l.statement(stmt)
	l.pending = ""
	return err
}

func (l *lowerer) branchStatement(n *sitter.Node, isContinue bool) error {
	var name string
	if n.NamedChildCount() > 0 {
		name = l.text(n.NamedChild(0))
	}

	for i := len(l.targets) - 1; i >= 0; i-- {
		t := l.targets[i]
		if name != "" && t.label != name {
			continue
		}
		if isContinue {
			if t.cont == "" {
				if name != "" {
					break
				}
				continue
			}
			l.jmp(t.cont)
			return nil
		}
		l.jmp(t.brk)
		return nil
	}

	p := n.StartPoint()
	return fmt.Errorf("%w: %q at line %d", ErrUnresolvedJump, l.text(n), p.Row+1)
}

// uses collects the identifiers read inside n in first-seen order. Called
// function names and the blank identifier are left out.
func (l *lowerer) uses(n *sitter.Node) []string {
	var out []string
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "identifier" {
			if name := l.text(n); name != "_" {
				out = appendUnique(out, name)
			}
			return
		}
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() != "identifier" {
				walk(fn)
			}
			walk(n.ChildByFieldName("arguments"))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(n)
	return out
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, have := range list {
			if have == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
