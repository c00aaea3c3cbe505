package ui

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

type pageData struct {
	Pipelines   []pipelineView
	Selected    string
	Module      string
	RenderError string
	Status      *Event
}

// write collects the first error across a sequence of writes.
type write struct {
	w   io.Writer
	err error
}

func (p *write) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *write) component(ctx context.Context, c templ.Component) {
	if p.err != nil {
		return
	}
	p.err = c.Render(ctx, p.w)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func indexPage(data pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &write{w: w}
		p.printf("<!doctype html>\n<html lang=\"en\">\n<head>\n")
		p.printf("<meta charset=\"utf-8\">\n<title>Pipelines - dagforge</title>\n")
		p.printf("<script type=\"module\" src=\"%s\"></script>\n", datastarScript)
		p.printf("</head>\n<body>\n")
		p.printf("<header><h1>dagforge preview</h1>\n")
		p.printf("<div data-init=\"@get('/updates')\">")
		p.component(ctx, statusLine(data.Status))
		p.printf("</div></header>\n")
		p.component(ctx, pipelineList(data.Pipelines, data.Selected))
		p.component(ctx, modulePanel(data))
		p.printf("</body>\n</html>\n")
		return p.err
	})
}

func statusLine(ev *Event) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &write{w: w}
		switch {
		case ev == nil:
			p.printf("<p id=\"status\">Waiting for changes</p>")
		case ev.Err != "":
			p.printf("<p id=\"status\" class=\"failed\">%s: %s</p>",
				esc(ev.At.Format(time.TimeOnly)), esc(ev.Err))
		default:
			p.printf("<p id=\"status\" class=\"ok\">%s: %d generated, %d unchanged</p>",
				esc(ev.At.Format(time.TimeOnly)), ev.Counts.Generated, ev.Counts.Unchanged)
		}
		return p.err
	})
}

func pipelineList(views []pipelineView, selected string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &write{w: w}
		p.printf("<nav id=\"pipelines\"><ul>\n")
		for _, v := range views {
			if !v.Valid {
				p.printf("<li class=\"invalid\" title=\"%s\">%s</li>\n", esc(v.Error), esc(labelFor(v)))
				continue
			}
			class := ""
			if v.PipelineID == selected {
				class = " class=\"selected\""
			}
			p.printf("<li%s><a href=\"/?pipeline=%s\">%s</a> <small>%s</small></li>\n",
				class, esc(url.QueryEscape(v.PipelineID)), esc(v.PipelineID), esc(v.IngestionType))
		}
		p.printf("</ul></nav>\n")
		return p.err
	})
}

func modulePanel(data pageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &write{w: w}
		p.printf("<main id=\"module\">\n")
		switch {
		case data.Selected == "":
			p.printf("<p>Select a pipeline to preview its module.</p>\n")
		case data.RenderError != "":
			p.printf("<h2>%s</h2>\n<pre class=\"error\">%s</pre>\n", esc(data.Selected), esc(data.RenderError))
		default:
			p.printf("<h2>%s</h2>\n<pre><code class=\"language-python\">%s</code></pre>\n",
				esc(data.Selected), esc(data.Module))
		}
		p.printf("</main>\n")
		return p.err
	})
}

func labelFor(v pipelineView) string {
	if v.PipelineID != "" {
		return v.PipelineID
	}
	return v.Source
}
