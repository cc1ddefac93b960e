package view

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// banner converts operator markdown. Raw HTML in the source is dropped.
var banner = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderBanner turns the configured markdown banner into page markup.
// POST: Empty source yields empty markup
func RenderBanner(source string) (template.HTML, error) {
	if source == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := banner.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render banner: %w", err)
	}
	return template.HTML(buf.String()), nil
}
