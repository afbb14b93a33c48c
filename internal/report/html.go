package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// HTML renders the report as a standalone HTML page.
func HTML(d *Data) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(d)), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}

	data := struct {
		Title   string
		Content template.HTML
	}{
		Title:   "Triage Calibration Report",
		Content: template.HTML(body.String()),
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("rendering report page: %w", err)
	}
	return out.Bytes(), nil
}

// reportTemplate is the Go html/template for the report page.
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    :root {
      --bg: #ffffff;
      --text: #212529;
      --text-muted: #868e96;
      --border: #dee2e6;
      --accent: #228be6;
      --table-stripe: #f8f9fa;
    }
    body {
      margin: 0 auto;
      padding: 2rem 1.5rem;
      max-width: 860px;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      color: var(--text);
      background: var(--bg);
      line-height: 1.6;
    }
    h1 { border-bottom: 2px solid var(--accent); padding-bottom: 0.4rem; }
    h2 { margin-top: 2rem; border-bottom: 1px solid var(--border); padding-bottom: 0.3rem; }
    table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
    th, td { border: 1px solid var(--border); padding: 0.5rem 0.75rem; text-align: left; }
    th { background: var(--table-stripe); }
    tr:nth-child(even) { background: var(--table-stripe); }
    code { background: var(--table-stripe); padding: 0.1rem 0.3rem; border-radius: 3px; }
  </style>
</head>
<body>
  <article>
    {{.Content}}
  </article>
</body>
</html>`
