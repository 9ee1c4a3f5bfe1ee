package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const separator = "---\n"

// Document is a markdown file with an optional YAML frontmatter header.
type Document struct {
	Meta map[string]any
	Body string
}

func Parse(content string) (Document, error) {
	if !strings.HasPrefix(content, separator) {
		return Document{Meta: map[string]any{}, Body: content}, nil
	}
	rest := strings.TrimPrefix(content, separator)
	idx := strings.Index(rest, "\n"+separator)
	if idx < 0 {
		return Document{}, fmt.Errorf("parse frontmatter: missing closing separator")
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return Document{}, fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	return Document{Meta: meta, Body: rest[idx+len("\n"+separator):]}, nil
}

// Merge overwrites the given keys and leaves every other key as found.
func (d *Document) Merge(meta map[string]any) {
	if d.Meta == nil {
		d.Meta = map[string]any{}
	}
	for k, v := range meta {
		d.Meta[k] = v
	}
}

func (d Document) Render() (string, error) {
	var buf bytes.Buffer
	if len(d.Meta) > 0 {
		raw, err := yaml.Marshal(d.Meta)
		if err != nil {
			return "", fmt.Errorf("marshal frontmatter: %w", err)
		}
		buf.WriteString(separator)
		buf.Write(raw)
		buf.WriteString(separator)
		if !strings.HasPrefix(d.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	buf.WriteString(d.Body)
	return buf.String(), nil
}

func blockMarkers(name string) (string, string) {
	return "<!-- onsetscore:" + name + " -->", "<!-- /onsetscore:" + name + " -->"
}

// ReplaceBlock swaps the generated content of the named block, appending the
// block when the body has none yet. Text outside the markers is kept.
func (d *Document) ReplaceBlock(name, generated string) {
	start, end := blockMarkers(name)
	block := start + "\n" + strings.TrimRight(generated, "\n") + "\n" + end

	i := strings.Index(d.Body, start)
	j := strings.Index(d.Body, end)
	if i >= 0 && j > i {
		d.Body = d.Body[:i] + block + d.Body[j+len(end):]
		return
	}
	switch {
	case strings.TrimSpace(d.Body) == "":
		d.Body = block + "\n"
	case strings.HasSuffix(d.Body, "\n"):
		d.Body += "\n" + block + "\n"
	default:
		d.Body += "\n\n" + block + "\n"
	}
}

// Block returns the content between the markers of the named block.
func (d Document) Block(name string) (string, bool) {
	start, end := blockMarkers(name)
	i := strings.Index(d.Body, start)
	j := strings.Index(d.Body, end)
	if i < 0 || j <= i {
		return "", false
	}
	return strings.Trim(d.Body[i+len(start):j], "\n"), true
}

// Table renders a pipe table. Cells are escaped so a pipe or newline inside a
// note cannot break the row.
func Table(header []string, rows [][]string) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(escapeCell(c))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(header)
	b.WriteString("|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		writeRow(r)
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
