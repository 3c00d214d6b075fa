package ui

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/a-h/templ"

	"randpic/internal/gallery"
)

//go:embed static/style.css
var styleCSS string

// StyleSheet returns the contents of /style.css.
func StyleSheet() string {
	return styleCSS
}

// IndexData is everything the index page shows.
type IndexData struct {
	Tag        string
	Counts     map[gallery.Orientation]int
	Total      int
	APIBaseURL string
	Now        time.Time
}

// pageWriter remembers the first write error so markup can be emitted
// without checking every call.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) print(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *pageWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// Layout renders a full HTML page with a title and body component.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.print("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"UTF-8\">")
		p.print("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">")
		p.printf("<title>%s</title>", html.EscapeString(title))
		p.print("<link href=\"https://fonts.googleapis.com/css2?family=VT323&display=swap\" rel=\"stylesheet\">")
		p.print("<link rel=\"stylesheet\" href=\"/style.css\">")
		p.print("</head><body><div class=\"container\">")
		if p.err != nil {
			return p.err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		p.print("</div></body></html>")
		return p.err
	})
}

var orientationLabels = map[gallery.Orientation]string{
	gallery.Horizontal: "Landscape images",
	gallery.Vertical:   "Portrait images",
	gallery.Square:     "Square images",
}

// IndexPage renders the status and usage page for the API.
func IndexPage(data IndexData) templ.Component {
	return Layout("~//: Random Image API v1.0 ://~", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		api := html.EscapeString(data.APIBaseURL)
		p := &pageWriter{w: w}

		p.print("<header><h1>Random Image API<span id=\"cursor\">_</span></h1>")
		p.print("<p class=\"subtitle\">&gt;&gt;&gt; A random image API served straight from object storage.</p>")
		p.printf("<p>&gt;&gt;&gt; Current gallery: [ <strong>%s</strong> ]</p></header>", html.EscapeString(data.Tag))

		p.print("<main><fieldset><legend>API usage</legend>")
		p.print("<p>The API responds with the image itself, so it can be used directly in an <code>&lt;img&gt;</code> tag or a CSS <code>url()</code>.</p>")

		p.print("<h3>// Basic endpoint (fully random)</h3>")
		p.printf("<p>Returns a random image from the whole gallery (total: %d images).</p>", data.Total)
		p.printf("<code>%s</code><a href=\"%s\" class=\"try-button\" target=\"_blank\">[ RUN ]</a>", api, api)

		p.print("<h3>// Filtered endpoint (by orientation)</h3>")
		p.print("<p>Add the <code>orientation</code> parameter to pick from one orientation only.</p><ul>")
		for _, o := range gallery.Orientations {
			url := fmt.Sprintf("%s?orientation=%s", api, o)
			p.print("<li>")
			p.printf("<strong>%s (%s)</strong>", orientationLabels[o], o)
			p.printf("<span class=\"count\">[count: %d]</span>", data.Counts[o])
			p.printf("<code>%s</code><a href=\"%s\" class=\"try-button\" target=\"_blank\">[ RUN ]</a>", url, url)
			p.print("</li>")
		}
		p.print("</ul></fieldset>")

		p.print("<fieldset><legend>Example</legend>")
		p.print("<p>The image below was fetched from <code>/api</code>:</p>")
		p.print("<div class=\"image-preview-container\"><div class=\"image-preview\">")
		p.printf("<img src=\"/api?t=%d\" alt=\"random image\">", data.Now.UnixMilli())
		p.print("</div></div><small>(reload the page to see another image...)</small></fieldset></main>")

		p.print("<footer><p>STATUS: OK. SYSTEM READY.</p></footer>")
		return p.err
	}))
}
