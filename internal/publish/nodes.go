package publish

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is a Telegraph DOM element. Children are strings or Nodes.
type Node struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []any             `json:"children,omitempty"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// Tags Telegraph accepts. Headings are folded into h3/h4.
var allowed = map[string]string{
	"a": "a", "aside": "aside", "b": "b", "blockquote": "blockquote", "br": "br",
	"code": "code", "em": "em", "figcaption": "figcaption", "figure": "figure",
	"h1": "h3", "h2": "h3", "h3": "h3", "h4": "h4", "h5": "h4", "h6": "h4",
	"hr": "hr", "i": "i", "li": "li", "ol": "ol", "p": "p", "pre": "pre",
	"s": "s", "del": "s", "strong": "strong", "u": "u", "ul": "ul",
}

// Nodes renders Markdown text as Telegraph content.
func Nodes(text string) ([]any, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return nil, err
	}

	ctx := &xhtml.Node{Type: xhtml.ElementNode, Data: "div", DataAtom: atom.Div}
	frag, err := xhtml.ParseFragment(&buf, ctx)
	if err != nil {
		return nil, err
	}

	var out []any
	for _, n := range frag {
		out = append(out, convert(n, false)...)
	}
	return out, nil
}

func convert(n *xhtml.Node, pre bool) []any {
	switch n.Type {
	case xhtml.TextNode:
		if !pre && strings.TrimSpace(n.Data) == "" && strings.Contains(n.Data, "\n") {
			return nil
		}
		return []any{n.Data}
	case xhtml.ElementNode:
		var children []any
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, convert(c, pre || n.DataAtom == atom.Pre)...)
		}
		tag, ok := allowed[n.Data]
		if !ok {
			return children
		}
		node := Node{Tag: tag, Children: children}
		if tag == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" {
					node.Attrs = map[string]string{"href": a.Val}
				}
			}
		}
		return []any{node}
	default:
		return nil
	}
}
