// Package form compiles zeev HTML forms: <include> expansion,
// <if>/<elseif>/<else> conditionals, {{{ }}} expressions and
// whitespace/comment minification.
package form

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// DefaultEnv is the env local when NODE_ENV is unset.
const DefaultEnv = "local"

// maxIncludeDepth bounds nested includes; deeper nesting is treated as a cycle.
const maxIncludeDepth = 16

// ErrUnknownLocal is returned when an expression names a local that is not defined.
var ErrUnknownLocal = errors.New("unknown expression local")

// Compiler turns a form source file into the HTML stored in Zeev.
type Compiler struct {
	// Root is the directory <include src> paths are resolved against.
	Root string
	// Locals are the values available to expressions.
	Locals map[string]string
	// Minify strips comments and collapses whitespace.
	Minify bool
}

// NewCompiler returns a compiler rooted at root with the env local set.
func NewCompiler(root, env string) *Compiler {
	if env == "" {
		env = DefaultEnv
	}
	return &Compiler{
		Root:   root,
		Locals: map[string]string{"env": env},
		Minify: true,
	}
}

// CompileFile reads and compiles the form at path.
func (c *Compiler) CompileFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read form: %w", err)
	}
	return c.Compile(data)
}

// Compile compiles a form document.
func (c *Compiler) Compile(src []byte) ([]byte, error) {
	expanded, err := c.expandIncludes(src, 0)
	if err != nil {
		return nil, err
	}
	chosen, err := c.conditionals(expanded)
	if err != nil {
		return nil, err
	}
	out, err := c.evaluate(chosen)
	if err != nil {
		return nil, err
	}
	if c.Minify {
		return Minify(out)
	}
	return out, nil
}

// expandIncludes replaces <include src="..."></include> with the compiled
// content of the named file.
func (c *Compiler) expandIncludes(src []byte, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d levels", maxIncludeDepth)
	}

	var out bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(src))
	skipping := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return out.Bytes(), nil
			}
			return nil, z.Err()
		}
		raw := bytes.Clone(z.Raw())

		name, hasAttr := z.TagName()
		isInclude := string(name) == "include"

		switch {
		case isInclude && (tt == html.StartTagToken || tt == html.SelfClosingTagToken):
			if skipping == 0 {
				content, err := c.include(includeSrc(z, hasAttr), depth)
				if err != nil {
					return nil, err
				}
				out.Write(content)
			}
			if tt == html.StartTagToken {
				skipping++
			}
		case isInclude && tt == html.EndTagToken:
			if skipping > 0 {
				skipping--
			}
		case skipping > 0:
			// include body is replaced by the included file
		default:
			out.Write(raw)
		}
	}
}

func (c *Compiler) include(src string, depth int) ([]byte, error) {
	if src == "" {
		return nil, errors.New("<include> without src attribute")
	}
	data, err := os.ReadFile(filepath.Join(c.Root, filepath.FromSlash(src)))
	if err != nil {
		return nil, fmt.Errorf("failed to include %s: %w", src, err)
	}
	content, err := c.expandIncludes(data, depth+1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return content, nil
}

func includeSrc(z *html.Tokenizer, hasAttr bool) string {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "src" {
			return string(val)
		}
	}
	return ""
}

var (
	rawExpr     = regexp.MustCompile(`\{\{\{\{\s*(.*?)\s*\}\}\}\}`)
	escapedExpr = regexp.MustCompile(`\{\{\{\s*(.*?)\s*\}\}\}`)
)

// evaluate substitutes {{{{ expr }}}} (raw) and {{{ expr }}} (HTML escaped).
func (c *Compiler) evaluate(src []byte) ([]byte, error) {
	var err error
	replace := func(re *regexp.Regexp, escape bool) func([]byte) []byte {
		return func(m []byte) []byte {
			result, evalErr := eval(string(re.FindSubmatch(m)[1]), c.Locals)
			if evalErr != nil {
				if err == nil {
					err = evalErr
				}
				return m
			}
			v := stringify(result)
			if escape {
				v = html.EscapeString(v)
			}
			return []byte(v)
		}
	}
	out := rawExpr.ReplaceAllFunc(src, replace(rawExpr, false))
	out = escapedExpr.ReplaceAllFunc(out, replace(escapedExpr, true))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// branch tracks one <if>/<elseif>/<else> chain while compiling.
type branch struct {
	tag    string
	open   bool // inside a branch element, not between siblings
	parent bool // whether the enclosing content is emitted
	active bool
	taken  bool
}

// conditionals keeps the first <if>/<elseif> branch whose condition holds,
// or the <else> branch, and drops the conditional tags themselves.
// Whitespace between the sibling tags of one chain is dropped.
func (c *Compiler) conditionals(src []byte) ([]byte, error) {
	var (
		out     bytes.Buffer
		stack   []*branch
		pending []byte
	)
	emitting := func() bool {
		if len(stack) == 0 {
			return true
		}
		top := stack[len(stack)-1]
		if top.open {
			return top.active
		}
		return top.parent
	}
	// closeChains ends chains that no further <elseif>/<else> can extend.
	closeChains := func() {
		for len(stack) > 0 && !stack[len(stack)-1].open {
			stack = stack[:len(stack)-1]
			if emitting() {
				out.Write(pending)
			}
			pending = nil
		}
	}
	condition := func(z *html.Tokenizer, hasAttr bool, tag string) (bool, error) {
		for hasAttr {
			var key, val []byte
			key, val, hasAttr = z.TagAttr()
			if string(key) == "condition" {
				v, err := eval(string(val), c.Locals)
				if err != nil {
					return false, fmt.Errorf("<%s condition=%q>: %w", tag, val, err)
				}
				return truthy(v), nil
			}
		}
		return false, fmt.Errorf("<%s> without condition attribute", tag)
	}

	z := html.NewTokenizer(bytes.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return nil, z.Err()
			}
			closeChains()
			if len(stack) > 0 {
				return nil, fmt.Errorf("unclosed <%s>", stack[len(stack)-1].tag)
			}
			return out.Bytes(), nil
		}
		raw := bytes.Clone(z.Raw())
		name, hasAttr := z.TagName()
		tag := string(name)

		between := len(stack) > 0 && !stack[len(stack)-1].open
		if between && tt == html.TextToken && len(bytes.TrimSpace(raw)) == 0 {
			pending = append(pending, raw...)
			continue
		}
		if between && tt == html.StartTagToken && (tag == "elseif" || tag == "else") {
			b := stack[len(stack)-1]
			b.tag, b.open, b.active = tag, true, false
			pending = nil
			if b.taken || !b.parent {
				continue
			}
			if tag == "else" {
				b.active, b.taken = true, true
				continue
			}
			ok, err := condition(z, hasAttr, tag)
			if err != nil {
				return nil, err
			}
			b.active, b.taken = ok, ok
			continue
		}
		closeChains()

		switch {
		case tt == html.StartTagToken && tag == "if":
			b := &branch{tag: tag, open: true, parent: emitting()}
			if b.parent {
				ok, err := condition(z, hasAttr, tag)
				if err != nil {
					return nil, err
				}
				b.active, b.taken = ok, ok
			}
			stack = append(stack, b)
		case tt == html.StartTagToken && (tag == "elseif" || tag == "else"):
			return nil, fmt.Errorf("<%s> without a preceding <if>", tag)
		case tt == html.EndTagToken && (tag == "if" || tag == "elseif" || tag == "else"):
			if len(stack) == 0 || stack[len(stack)-1].tag != tag {
				return nil, fmt.Errorf("unexpected </%s>", tag)
			}
			if tag == "else" {
				stack = stack[:len(stack)-1]
				continue
			}
			stack[len(stack)-1].open = false
		default:
			if emitting() {
				out.Write(raw)
			}
		}
	}
}

// rawTextElements keep their content untouched when minifying.
var rawTextElements = map[string]bool{
	"pre": true, "textarea": true, "script": true, "style": true,
}

// Minify removes comments (conditional comments are kept) and collapses
// whitespace runs in text to a single space.
func Minify(src []byte) ([]byte, error) {
	var out bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(src))
	raw := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return bytes.TrimSpace(out.Bytes()), nil
			}
			return nil, z.Err()
		}
		tok := bytes.Clone(z.Raw())

		switch tt {
		case html.CommentToken:
			if bytes.HasPrefix(tok, []byte("<!--[if")) {
				out.Write(tok)
			}
		case html.TextToken:
			if raw > 0 {
				out.Write(tok)
				continue
			}
			out.WriteString(collapseSpace(string(tok)))
		case html.StartTagToken:
			if name, _ := z.TagName(); rawTextElements[string(name)] {
				raw++
			}
			out.Write(tok)
		case html.EndTagToken:
			if name, _ := z.TagName(); rawTextElements[string(name)] && raw > 0 {
				raw--
			}
			out.Write(tok)
		default:
			out.Write(tok)
		}
	}
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				b.WriteByte(' ')
			}
			space = true
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}
