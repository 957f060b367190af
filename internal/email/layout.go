package email

import (
	"bytes"
	"embed"
	"html/template"
	"regexp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var layoutTemplate = template.Must(template.New("layout.html").Funcs(template.FuncMap{
	"linkify": linkify,
}).ParseFS(templateFS, "templates/layout.html"))

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

type layoutData struct {
	Subject    string
	FromName   string
	Paragraphs [][]string
}

// RenderHTML wraps plain message text in the shared HTML layout. Blank
// lines separate paragraphs and URLs become links.
func RenderHTML(subject, fromName, text string) (string, error) {
	var paragraphs [][]string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		paragraphs = append(paragraphs, strings.Split(block, "\n"))
	}

	var buf bytes.Buffer
	if err := layoutTemplate.Execute(&buf, layoutData{
		Subject:    subject,
		FromName:   fromName,
		Paragraphs: paragraphs,
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func linkify(line string) template.HTML {
	var out strings.Builder
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(line, -1) {
		out.WriteString(template.HTMLEscapeString(line[last:loc[0]]))
		url := template.HTMLEscapeString(line[loc[0]:loc[1]])
		out.WriteString(`<a href="` + url + `">` + url + `</a>`)
		last = loc[1]
	}
	out.WriteString(template.HTMLEscapeString(line[last:]))
	return template.HTML(out.String())
}
