// Package templates renders the HTML landing page.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Endpoint is one row of the landing page's API table.
type Endpoint struct {
	Method      string
	Path        string
	Description string
}

// IndexData is what the landing page shows.
type IndexData struct {
	Loaded        bool
	Filename      string
	Rows          int
	Columns       int
	UploadKeyUsed bool
	Endpoints     []Endpoint
}

// Index renders the landing page with an upload form and the API reference.
func Index(d IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := &errWriter{w: w}
		e.printf(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ministats</title>
<style>
body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;color:#1f2937}
table{border-collapse:collapse;width:100%%}
td,th{border-bottom:1px solid #e5e7eb;padding:.35rem .5rem;text-align:left}
code{background:#f3f4f6;padding:0 .25rem}
.status{padding:.5rem .75rem;background:#eff6ff;border-left:3px solid #3b82f6}
</style>
</head>
<body>
<h1>ministats</h1>
`)
		if d.Loaded {
			e.printf(`<p class="status">Loaded <code>%s</code>: %d rows, %d columns.</p>`+"\n",
				templ.EscapeString(d.Filename), d.Rows, d.Columns)
		} else {
			e.printf(`<p class="status">No dataset loaded yet.</p>` + "\n")
		}

		e.printf(`<h2>Upload a CSV</h2>
<form action="/upload" method="post" enctype="multipart/form-data">
<input type="file" name="file" accept=".csv,text/csv" required>
<button type="submit">Upload</button>
</form>
`)
		if d.UploadKeyUsed {
			e.printf(`<p>Uploads require the <code>X-Upload-Key</code> header; use curl or another API client.</p>` + "\n")
		}

		e.printf("<h2>API</h2>\n<table>\n<tr><th>Method</th><th>Path</th><th>Description</th></tr>\n")
		for _, ep := range d.Endpoints {
			e.printf("<tr><td>%s</td><td><code>%s</code></td><td>%s</td></tr>\n",
				templ.EscapeString(ep.Method), templ.EscapeString(ep.Path), templ.EscapeString(ep.Description))
		}
		e.printf("</table>\n</body>\n</html>\n")
		return e.err
	})
}

// errWriter keeps the first write error so rendering reads straight through.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
