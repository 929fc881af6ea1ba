package transcript

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/alex/models"
)

var codeBlock = regexp.MustCompile("```([\\s\\S]+?)```")

// FormatHTML renders turn content as HTML. Line breaks become <br> elements,
// then fenced code becomes a <pre><code> block. The content is not escaped.
func FormatHTML(content string) string {
	content = strings.ReplaceAll(content, "\n", "<br>")
	return codeBlock.ReplaceAllString(content, "<pre><code>$1</code></pre>")
}

// FormatTerminal renders fenced code with code, leaving the rest of the
// content as it is.
func FormatTerminal(content string, code func(string) string) string {
	return codeBlock.ReplaceAllStringFunc(content, func(block string) string {
		return code(codeBlock.FindStringSubmatch(block)[1])
	})
}

// WriteHTML writes the turns as an HTML document.
func WriteHTML(w io.Writer, title string, turns []models.ChatTurn) (err error) {
	if _, err = fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n", html.EscapeString(title)); err != nil {
		return err
	}
	for _, t := range turns {
		if t.Role == models.RoleSystem {
			continue
		}
		if _, err = fmt.Fprintf(w, "<div class=\"%s\"><strong>%s:</strong> <p>%s</p></div>\n", t.Role, t.Role, FormatHTML(html.EscapeString(t.Content))); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "</body>\n</html>\n")
	return err
}
