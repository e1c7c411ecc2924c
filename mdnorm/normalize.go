// CLAUDE:SUMMARY HTML-to-Markdown normalization for captured chat turns; idempotent, never errors.
// Package mdnorm converts the rich markup of a captured turn into clean
// Markdown. It is a pure text transform: total over all inputs, worst case
// returning the cleaned-up input text, and idempotent — normalizing
// already-normalized text is a no-op.
package mdnorm

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Normalizer holds the converter and sanitation policy. Safe for reuse
// across turns; construction is the expensive part.
type Normalizer struct {
	conv    *converter.Converter
	policy  *bluemonday.Policy
	baseURL string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithBaseURL sets the page URL used to resolve relative links and images
// to absolute URLs.
func WithBaseURL(u string) Option {
	return func(n *Normalizer) { n.baseURL = u }
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: sanitationPolicy(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// sanitationPolicy keeps document structure and drops scripts, styles, and
// event handlers before conversion. Math containers are already rewritten
// to text by then, so no math elements need to survive.
func sanitationPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("alt", "title").OnElements("img")
	p.AllowAttrs("aria-label").Globally()
	return p
}

// Normalize converts raw rich markup or plain text into canonical
// Markdown. Never errors: conversion failures fall back to the cleaned
// plain text.
func (n *Normalizer) Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	if !looksLikeHTML(input) {
		return postNormalize(input)
	}

	prepared, mathSlots := rewriteMath(input)
	prepared = stripChromeNodes(prepared)
	sanitized := n.policy.Sanitize(prepared)

	var md string
	var err error
	if n.baseURL != "" {
		md, err = n.conv.ConvertString(sanitized, converter.WithDomain(n.baseURL))
	} else {
		md, err = n.conv.ConvertString(sanitized)
	}
	if err != nil || strings.TrimSpace(md) == "" {
		// Fall back to text content of the sanitized markup.
		return postNormalize(restoreMath(textContent(sanitized), mathSlots))
	}
	return postNormalize(restoreMath(md, mathSlots))
}

// tagPattern matches an opening tag for a known HTML element. Plain "<"
// in prose or Markdown must not trigger the HTML path, or idempotence
// breaks.
var tagPattern = regexp.MustCompile(`(?i)<(!doctype|html|head|body|div|p|span|br|hr|table|thead|tbody|tr|td|th|ul|ol|li|h[1-6]|a|img|b|i|em|strong|code|pre|blockquote|section|article|math|annotation|button|svg|use|figure|figcaption|sup|sub|details|summary)\b`)

func looksLikeHTML(s string) bool {
	return tagPattern.MatchString(s)
}
