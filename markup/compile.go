// Package markup compiles template markup against a typed data context.
// Templates support variable substitution, conditional blocks, iteration
// over ordered sequences, and a fixed set of helper functions. Compilation
// is pure: the same markup, schema, and data always produce the same
// resolved output, and no unresolved binding ever renders as empty text.
package markup

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

var identPattern = regexp.MustCompile(`^@?[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Compiler resolves markup templates. The zero value is ready to use.
type Compiler struct{}

// New creates a Compiler.
func New() *Compiler {
	return &Compiler{}
}

var _ docgen.Compiler = (*Compiler)(nil)

// Compile resolves every binding in markup against data, constrained by
// schema. The result contains no unresolved expressions.
func (c *Compiler) Compile(source string, schema docgen.BindingSchema, data docgen.DataContext) (docgen.Compiled, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return docgen.Compiled{}, wrapCompileError(err)
	}

	nodes, rest, err := parseNodes(tokens, "")
	if err != nil {
		return docgen.Compiled{}, wrapCompileError(err)
	}
	if len(rest) > 0 {
		return docgen.Compiled{}, wrapCompileError(&CompileError{
			Kind: MalformedExpression,
			Path: rest[0].expr,
			Msg:  "unexpected block terminator",
		})
	}

	ev := &evaluator{
		schema:   schema,
		data:     data,
		helpers:  builtinHelpers(),
		consumed: make(map[string]struct{}),
	}

	var out strings.Builder
	if err := ev.renderNodes(&out, nodes, scope{}); err != nil {
		return docgen.Compiled{}, wrapCompileError(err)
	}

	paths := make([]string, 0, len(ev.consumed))
	for path := range ev.consumed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return docgen.Compiled{HTML: out.String(), ConsumedPaths: paths}, nil
}

func wrapCompileError(err error) error {
	var ce *CompileError
	if ok := asCompileError(err, &ce); ok {
		return docgen.NewError(docgen.KindCompile, ce.Error(), ce)
	}
	return docgen.NewError(docgen.KindCompile, err.Error(), err)
}

func asCompileError(err error, target **CompileError) bool {
	ce, ok := err.(*CompileError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

// --- tokenizer ---

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenExpr
	tokenIf
	tokenElse
	tokenEndIf
	tokenEach
	tokenEndEach
)

type token struct {
	kind tokenKind
	text string // tokenText payload
	expr string // tag payload, trimmed
}

func tokenize(source string) ([]token, error) {
	var tokens []token
	for len(source) > 0 {
		open := strings.Index(source, "{{")
		if open < 0 {
			tokens = append(tokens, token{kind: tokenText, text: source})
			break
		}
		if open > 0 {
			tokens = append(tokens, token{kind: tokenText, text: source[:open]})
		}
		source = source[open+2:]

		end := strings.Index(source, "}}")
		if end < 0 {
			return nil, &CompileError{Kind: MalformedExpression, Msg: "unterminated expression"}
		}
		raw := strings.TrimSpace(source[:end])
		source = source[end+2:]

		tok, err := classifyTag(raw)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func classifyTag(raw string) (token, error) {
	switch {
	case raw == "":
		return token{}, &CompileError{Kind: MalformedExpression, Msg: "empty expression"}
	case raw == "else":
		return token{kind: tokenElse}, nil
	case raw == "/if":
		return token{kind: tokenEndIf}, nil
	case raw == "/each":
		return token{kind: tokenEndEach}, nil
	case raw == "#if":
		return token{}, &CompileError{Kind: MalformedExpression, Msg: "if block has no condition"}
	case strings.HasPrefix(raw, "#if "):
		return token{kind: tokenIf, expr: strings.TrimSpace(raw[len("#if "):])}, nil
	case raw == "#each":
		return token{}, &CompileError{Kind: MalformedExpression, Msg: "each block has no sequence"}
	case strings.HasPrefix(raw, "#each "):
		return token{kind: tokenEach, expr: strings.TrimSpace(raw[len("#each "):])}, nil
	case strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "/"):
		return token{}, &CompileError{Kind: MalformedExpression, Path: raw, Msg: "unknown block tag"}
	default:
		return token{kind: tokenExpr, expr: raw}, nil
	}
}

// --- parser ---

type node interface{ isNode() }

type textNode struct{ text string }

type exprNode struct{ expr string }

type ifNode struct {
	condition string
	then      []node
	els       []node
}

type eachNode struct {
	path string
	body []node
}

func (textNode) isNode() {}
func (exprNode) isNode() {}
func (ifNode) isNode()   {}
func (eachNode) isNode() {}

// parseNodes consumes tokens until a terminator belonging to the enclosing
// block. It returns the parsed nodes and the remaining tokens starting at
// the terminator.
func parseNodes(tokens []token, enclosing string) ([]node, []token, error) {
	var nodes []node
	for len(tokens) > 0 {
		tok := tokens[0]
		switch tok.kind {
		case tokenText:
			nodes = append(nodes, textNode{text: tok.text})
			tokens = tokens[1:]
		case tokenExpr:
			nodes = append(nodes, exprNode{expr: tok.expr})
			tokens = tokens[1:]
		case tokenIf:
			then, rest, err := parseNodes(tokens[1:], "if")
			if err != nil {
				return nil, nil, err
			}
			branch := ifNode{condition: tok.expr, then: then}
			if len(rest) > 0 && rest[0].kind == tokenElse {
				var els []node
				els, rest, err = parseNodes(rest[1:], "if")
				if err != nil {
					return nil, nil, err
				}
				branch.els = els
			}
			if len(rest) == 0 || rest[0].kind != tokenEndIf {
				return nil, nil, &CompileError{Kind: MalformedExpression, Path: tok.expr, Msg: "unclosed if block"}
			}
			nodes = append(nodes, branch)
			tokens = rest[1:]
		case tokenEach:
			body, rest, err := parseNodes(tokens[1:], "each")
			if err != nil {
				return nil, nil, err
			}
			if len(rest) == 0 || rest[0].kind != tokenEndEach {
				return nil, nil, &CompileError{Kind: MalformedExpression, Path: tok.expr, Msg: "unclosed each block"}
			}
			nodes = append(nodes, eachNode{path: tok.expr, body: body})
			tokens = rest[1:]
		case tokenElse:
			if enclosing != "if" {
				return nil, nil, &CompileError{Kind: MalformedExpression, Msg: "else outside of if block"}
			}
			return nodes, tokens, nil
		case tokenEndIf:
			if enclosing != "if" {
				return nil, nil, &CompileError{Kind: MalformedExpression, Msg: "stray /if"}
			}
			return nodes, tokens, nil
		case tokenEndEach:
			if enclosing != "each" {
				return nil, nil, &CompileError{Kind: MalformedExpression, Msg: "stray /each"}
			}
			return nodes, tokens, nil
		}
	}
	if enclosing != "" {
		return nil, nil, &CompileError{Kind: MalformedExpression, Msg: "unclosed " + enclosing + " block"}
	}
	return nodes, nil, nil
}

// --- evaluator ---

// scope is the lookup frame inside an each block.
type scope struct {
	item     docgen.Value
	itemPath string // sequence path prefix for consumed-path bookkeeping
	index    int    // zero-based
	active   bool
}

type evaluator struct {
	schema   docgen.BindingSchema
	data     docgen.DataContext
	helpers  map[string]helper
	consumed map[string]struct{}
}

func (ev *evaluator) renderNodes(out *strings.Builder, nodes []node, sc scope) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			out.WriteString(n.text)
		case exprNode:
			text, err := ev.renderExpr(n.expr, sc)
			if err != nil {
				return err
			}
			out.WriteString(html.EscapeString(text))
		case ifNode:
			truthy, err := ev.evalCondition(n.condition, sc)
			if err != nil {
				return err
			}
			body := n.then
			if !truthy {
				body = n.els
			}
			if err := ev.renderNodes(out, body, sc); err != nil {
				return err
			}
		case eachNode:
			if err := ev.renderEach(out, n, sc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ev *evaluator) renderEach(out *strings.Builder, n eachNode, sc scope) error {
	if !identPattern.MatchString(n.path) {
		return &CompileError{Kind: MalformedExpression, Path: n.path, Msg: "invalid sequence path"}
	}
	value, consumedAs, ok := ev.resolve(n.path, sc)
	if !ok {
		if field, declared := ev.schema.Field(n.path); declared && !field.Required {
			// Absent optional sequence iterates zero times.
			ev.consumed[n.path] = struct{}{}
			return nil
		}
		return &CompileError{Kind: UnknownBinding, Path: n.path, Msg: "unknown sequence binding"}
	}
	if value.Kind != docgen.ValueSequence {
		return &CompileError{Kind: MalformedExpression, Path: n.path, Msg: fmt.Sprintf("each needs a sequence, got %s", value.Kind)}
	}
	ev.consumed[consumedAs] = struct{}{}

	for i, item := range value.Seq() {
		inner := scope{item: item, itemPath: consumedAs, index: i, active: true}
		if err := ev.renderNodes(out, n.body, inner); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) evalCondition(expr string, sc scope) (bool, error) {
	if !identPattern.MatchString(expr) {
		return false, &CompileError{Kind: MalformedExpression, Path: expr, Msg: "invalid condition"}
	}
	value, consumedAs, ok := ev.resolve(expr, sc)
	if !ok {
		if field, declared := ev.schema.Field(expr); declared && !field.Required {
			// Absent optional condition is simply false.
			ev.consumed[expr] = struct{}{}
			return false, nil
		}
		return false, &CompileError{Kind: UnknownBinding, Path: expr, Msg: "unknown condition binding"}
	}
	ev.consumed[consumedAs] = struct{}{}
	return value.Truthy(), nil
}

// renderExpr resolves a substitution: either a bare path or a helper call.
func (ev *evaluator) renderExpr(expr string, sc scope) (string, error) {
	parts, err := splitArgs(expr)
	if err != nil {
		return "", err
	}

	if len(parts) > 1 {
		return ev.renderHelper(expr, parts, sc)
	}

	path := parts[0]
	if isQuoted(path) {
		return unquote(path), nil
	}
	if !identPattern.MatchString(path) {
		return "", &CompileError{Kind: MalformedExpression, Path: expr, Msg: "invalid binding path"}
	}

	value, consumedAs, ok := ev.resolve(path, sc)
	if !ok {
		if field, declared := ev.schema.Field(path); declared && !field.Required {
			// Declared optional and absent renders empty, by policy.
			ev.consumed[path] = struct{}{}
			return "", nil
		}
		return "", &CompileError{Kind: UnknownBinding, Path: path, Msg: "unknown binding"}
	}
	ev.consumed[consumedAs] = struct{}{}

	text, err := value.Text()
	if err != nil {
		return "", &CompileError{Kind: MalformedExpression, Path: path, Msg: err.Error()}
	}
	return text, nil
}

func (ev *evaluator) renderHelper(expr string, parts []string, sc scope) (string, error) {
	name := parts[0]
	h, ok := ev.helpers[name]
	if !ok {
		return "", &CompileError{Kind: MalformedExpression, Path: expr, Msg: fmt.Sprintf("unknown helper %q", name)}
	}
	args := parts[1:]
	if len(args) != h.arity {
		return "", &CompileError{
			Kind: HelperArityMismatch,
			Path: expr,
			Msg:  fmt.Sprintf("%s takes %d argument(s), got %d", name, h.arity, len(args)),
		}
	}

	values := make([]docgen.Value, 0, len(args))
	for _, arg := range args {
		if isQuoted(arg) {
			values = append(values, docgen.String(unquote(arg)))
			continue
		}
		if !identPattern.MatchString(arg) {
			return "", &CompileError{Kind: MalformedExpression, Path: expr, Msg: fmt.Sprintf("invalid helper argument %q", arg)}
		}
		value, consumedAs, ok := ev.resolve(arg, sc)
		if !ok {
			return "", &CompileError{Kind: UnknownBinding, Path: arg, Msg: "unknown helper binding"}
		}
		ev.consumed[consumedAs] = struct{}{}
		values = append(values, value)
	}

	text, err := h.apply(values)
	if err != nil {
		return "", &CompileError{Kind: MalformedExpression, Path: expr, Msg: err.Error()}
	}
	return text, nil
}

// resolve looks a path up in the active scope first, then the root
// context. The second return is the path recorded as consumed.
func (ev *evaluator) resolve(path string, sc scope) (docgen.Value, string, bool) {
	if sc.active {
		switch path {
		case "this":
			return sc.item, sc.itemPath, true
		case "@index":
			return docgen.Number(float64(sc.index)), sc.itemPath, true
		case "@ordinal":
			return docgen.Number(float64(sc.index + 1)), sc.itemPath, true
		}
		if sc.item.Kind == docgen.ValueMapping {
			if value, ok := sc.item.Map().Lookup(path); ok {
				return value, sc.itemPath + "." + path, true
			}
		}
	}
	if value, ok := ev.data.Lookup(path); ok {
		return value, path, true
	}
	return docgen.Value{}, "", false
}

// splitArgs splits a tag payload on spaces, keeping quoted strings whole.
func splitArgs(expr string) ([]string, error) {
	var parts []string
	rest := strings.TrimSpace(expr)
	for rest != "" {
		if rest[0] == '"' {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				return nil, &CompileError{Kind: MalformedExpression, Path: expr, Msg: "unterminated string literal"}
			}
			parts = append(parts, rest[:end+2])
			rest = strings.TrimSpace(rest[end+2:])
			continue
		}
		next := strings.IndexByte(rest, ' ')
		if next < 0 {
			parts = append(parts, rest)
			break
		}
		parts = append(parts, rest[:next])
		rest = strings.TrimSpace(rest[next:])
	}
	if len(parts) == 0 {
		return nil, &CompileError{Kind: MalformedExpression, Msg: "empty expression"}
	}
	return parts, nil
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func unquote(s string) string {
	return s[1 : len(s)-1]
}
