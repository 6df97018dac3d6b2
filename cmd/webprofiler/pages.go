package main

import (
	"context"
	"html"
	"net/http"

	"github.com/karloscodes/webprofiler/host"
	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/legacy"
)

// registerPages mounts a small legacy forum and its native front
// controller.
func registerPages(srv *host.Server) {
	srv.Page("/index.php", indexPage)
	srv.Page("/viewtopic.php", viewTopicPage)
	srv.Page("/posting.php", postingPage)
	srv.FrontController("/app.php", frontController)
}

func indexPage(p *legacy.Page) error {
	p.Echo(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Board index</title></head><body>`)
	p.Echo(`<h1>Board index</h1><ul>`)
	for _, t := range []string{"1", "2"} {
		url := p.RedirectURL("viewtopic.php?t=" + t)
		p.Echof(`<li><a href="%s">Topic %s</a></li>`, html.EscapeString(url), t)
	}
	p.Echo(`</ul><p><a href="posting.php">New topic</a> | <a href="app.php">Modern page</a></p>`)
	p.Echo(`</body></html>`)
	return nil
}

func viewTopicPage(p *legacy.Page) error {
	p.Echo(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Topic</title></head><body>`)
	p.Echof(`<h1>Topic %s</h1><p><a href="index.php">Back</a></p>`, html.EscapeString(p.Server("QUERY_STRING")))
	p.Echo(`</body></html>`)
	return nil
}

func postingPage(p *legacy.Page) error {
	if p.Method() == http.MethodPost {
		return p.Redirect("index.php?posted=1&mode=post")
	}
	p.Echo(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Post</title></head><body>`)
	p.Echo(`<form method="post" action="posting.php"><textarea name="message"></textarea><button>Submit</button></form>`)
	p.Echo(`</body></html>`)
	return nil
}

func frontController(_ context.Context, req *kernel.Request) (*kernel.Response, error) {
	body := `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Modern</title></head><body>` +
		`<h1>Served by the front controller</h1><p>` + html.EscapeString(req.URI) + `</p></body></html>`
	return kernel.NewResponse(body, http.StatusOK), nil
}
