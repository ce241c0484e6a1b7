package export

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

const htmlHead = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; }
table { border-collapse: collapse; margin-bottom: 1rem; }
th, td { border: 1px solid #ccc; padding: .25rem .5rem; }
</style>
</head>
<body>
`

// HTML writes the Markdown document converted to a standalone HTML page.
func HTML(w io.Writer, doc Document) error {
	var md bytes.Buffer
	if err := Markdown(&md, doc); err != nil {
		return err
	}

	title := doc.Title
	if title == "" {
		title = "Cash report"
	}
	if _, err := fmt.Fprintf(w, htmlHead, html.EscapeString(title)); err != nil {
		return err
	}
	if err := markdownRenderer.Convert(md.Bytes(), w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}
