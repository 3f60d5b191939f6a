package ssr

import (
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/valyala/quicktemplate"

	"github.com/vango-dev/spindle/pkg/dom"
)

// Document structure errors.
var (
	ErrMissingHTML = errors.New("ssr: root element must be <html>")
	ErrMissingHead = errors.New("ssr: <html> has no <head>")
	ErrMissingBody = errors.New("ssr: <html> has no <body>")
)

// DocumentOptions controls what RenderDocument injects into the page.
type DocumentOptions struct {
	// Env is exposed to the browser runtime as data-env-<key> attributes on
	// the <html> element.
	Env map[string]string

	// ScriptSrc is the browser runtime. It is loaded as a module script at the
	// end of <body>. Nothing is injected when empty.
	ScriptSrc string
}

func (t *Tree) child(parent *node, tag string) *node {
	for _, id := range parent.children {
		if n, ok := t.nodes[id]; ok && n.kind == kindElement && n.tag == tag {
			return n
		}
	}
	return nil
}

// RenderDocument serializes a tree whose root is a full <html> document. The
// collected CSS is placed at the start of <body> and the runtime script at its
// end.
func RenderDocument(w io.Writer, t *Tree, opts DocumentOptions) error {
	html := t.child(t.nodes[dom.RootID], "html")
	if html == nil {
		return ErrMissingHTML
	}
	if t.child(html, "head") == nil {
		return ErrMissingHead
	}
	body := t.child(html, "body")
	if body == nil {
		return ErrMissingBody
	}

	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]attr, 0, len(keys))
	for _, k := range keys {
		env = append(env, attr{name: "data-env-" + k, value: opts.Env[k]})
	}

	qw := quicktemplate.AcquireWriter(w)
	defer quicktemplate.ReleaseWriter(qw)

	qw.N().S("<!DOCTYPE html>")
	t.writeWith(qw, html, env, func() {
		for _, id := range html.children {
			n := t.nodes[id]
			if n != body {
				t.write(qw, n)
				continue
			}
			t.writeWith(qw, body, nil, func() {
				writeCss(qw, t.css)
				for _, id := range body.children {
					t.write(qw, t.nodes[id])
				}
				if opts.ScriptSrc != "" {
					qw.N().S(`<script type="module" data-spindle-run src="`)
					qw.E().S(opts.ScriptSrc)
					qw.N().S(`"></script>`)
				}
			})
		}
	})
	return nil
}

func writeCss(qw *quicktemplate.Writer, rules []CssRule) {
	if len(rules) == 0 {
		return
	}
	qw.N().S("<style>")
	for _, r := range rules {
		qw.N().S(sanitizeCss(r.Selector))
		qw.N().S(" { ")
		qw.N().S(sanitizeCss(r.Body))
		qw.N().S(" }\n")
	}
	qw.N().S("</style>")
}

func sanitizeCss(s string) string {
	return strings.ReplaceAll(s, "</", `<\/`)
}
