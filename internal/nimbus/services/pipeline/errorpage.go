package pipeline

import (
	"bytes"
	"html/template"
)

// ErrorPage is the content of a generic error page.
type ErrorPage struct {
	Title       string
	Heading     string
	Message     string
	URL         string
	Suggestions []string
}

var errorPageTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
{{- if .URL}}
<p><code>{{.URL}}</code></p>
{{- end}}
{{- if .Suggestions}}
<ul>
{{- range .Suggestions}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
</body>
</html>
`))

// Render returns the page markup. Values are HTML-escaped.
func (p ErrorPage) Render() string {
	var buf bytes.Buffer
	if err := errorPageTemplate.Execute(&buf, p); err != nil {
		return "<h1>" + template.HTMLEscapeString(p.Heading) + "</h1>"
	}
	return buf.String()
}

func offlinePage(url string) ErrorPage {
	return ErrorPage{
		Title:   "No Internet connection",
		Heading: "No Internet connection",
		Message: "This page is not available offline.",
		URL:     url,
		Suggestions: []string{
			"Check your network cables, modem and router.",
			"Reconnect to your wireless network.",
		},
	}
}

func loadFailedPage(url string, cause error) ErrorPage {
	msg := "The page could not be loaded."
	if cause != nil {
		msg = cause.Error()
	}
	return ErrorPage{
		Title:   "Problem loading page",
		Heading: "Problem loading page",
		Message: msg,
		URL:     url,
		Suggestions: []string{
			"Check the address for typing errors.",
			"Try again later.",
		},
	}
}

func blockedPage(url, rule string) ErrorPage {
	return ErrorPage{
		Title:   "Blocked",
		Heading: "This request was blocked",
		Message: "A content filter rule matched: " + rule,
		URL:     url,
	}
}
