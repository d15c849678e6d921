package parser

import (
	"strings"

	"golang.org/x/net/html"
)

type tokenKind int

const (
	tagToken tokenKind = iota
	textToken
)

// token is either a tag (start, end or self-closing) or a run of text.
type token struct {
	kind  tokenKind
	name  string
	end   bool
	attrs map[string]string
	text  string
}

// attr returns the attribute value for key, matched case-insensitively.
func (t token) attr(key string) (string, bool) {
	v, ok := t.attrs[strings.ToLower(key)]
	return v, ok
}

// tokenizer walks markup as a flat stream of tags and text runs. It never
// builds a tree, so unbalanced or truncated markup simply ends the stream.
type tokenizer struct {
	z *html.Tokenizer
}

func newTokenizer(markup string) *tokenizer {
	return &tokenizer{z: html.NewTokenizer(strings.NewReader(markup))}
}

// next returns the next tag or text run. Comments and doctypes are skipped.
// ok is false once the input is exhausted.
func (t *tokenizer) next() (token, bool) {
	for {
		switch tt := t.z.Next(); tt {
		case html.ErrorToken:
			return token{}, false
		case html.TextToken:
			return token{kind: textToken, text: string(t.z.Text())}, true
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, more := t.z.TagName()
			tok := token{
				kind: tagToken,
				name: string(name),
				end:  tt == html.EndTagToken,
			}
			for more {
				var key, val []byte
				key, val, more = t.z.TagAttr()
				if tok.attrs == nil {
					tok.attrs = make(map[string]string)
				}
				tok.attrs[string(key)] = string(val)
			}
			return tok, true
		}
	}
}
