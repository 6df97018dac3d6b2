package bridge

import (
	"regexp"
	"strings"
)

// brokenServers do not honor a Location header reliably; they get a
// refresh header and an HTML page instead.
var brokenServers = regexp.MustCompile(`Microsoft|WebSTAR|Xitami`)

// NeedsRefreshRedirect reports whether software identifies a web server
// that must be redirected with Refresh.
func NeedsRefreshRedirect(software string) bool {
	return brokenServers.MatchString(software)
}

func (b *Bridge) emitRedirect(r *Redirect) {
	refresh := NeedsRefreshRedirect(b.serverSoftware())
	b.logger.Debug("redirect emitted", "url", r.URL, "external", r.External, "refresh", refresh)

	if refresh {
		b.output.Header("Refresh: 0; URL=" + r.URL)
		_, _ = b.output.Write([]byte(RefreshPage(r.URL)))
		return
	}
	b.output.Header("Location: " + r.URL)
}

// RefreshPage renders the HTML sent along with a Refresh header. The URL
// has its ampersands escaped; nothing else is touched.
func RefreshPage(url string) string {
	escaped := strings.ReplaceAll(url, "&", "&amp;")

	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html>`)
	sb.WriteString(`<html dir="ltr" lang="en">`)
	sb.WriteString(`<head>`)
	sb.WriteString(`<meta charset="utf-8">`)
	sb.WriteString(`<meta http-equiv="refresh" content="0; url=` + escaped + `" />`)
	sb.WriteString(`<title>Redirect</title>`)
	sb.WriteString(`</head>`)
	sb.WriteString(`<body>`)
	sb.WriteString(`<div style="text-align: center;"><a href="` + escaped + `">Redirect</a></div>`)
	sb.WriteString(`</body>`)
	sb.WriteString(`</html>`)
	return sb.String()
}
