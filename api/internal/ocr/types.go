package ocr

import "strings"

// Line is one recognized text line.
type Line struct {
	Text string
}

// Page holds the lines of one page in reading order.
type Page struct {
	Lines []Line
}

// JoinPages concatenates page lines with "\n": page order first, then line order.
func JoinPages(pages []Page) string {
	var lines []string
	for _, p := range pages {
		for _, l := range p.Lines {
			lines = append(lines, l.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// PageFromText splits plain text into a single page, skipping blank lines.
func PageFromText(text string) Page {
	var p Page
	for _, s := range strings.Split(text, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			p.Lines = append(p.Lines, Line{Text: s})
		}
	}
	return p
}
