// Package parser extracts the front-matter header and body from tracked
// vault files. The front-matter carries the stable entity identifier that
// binds a file to its note.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Result holds the output of parsing a vault file.
type Result struct {
	Frontmatter map[string]interface{}
	// ID is the stable entity identifier from the front-matter, or empty
	// when absent or malformed.
	ID    string
	Title string
	Body  string
}

// Parse extracts front-matter, identifier, title, and body from raw bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frontmatter: fm,
		ID:          ParseIdentifier(fm),
		Title:       deriveTitle(fm, body),
		Body:        body,
	}, nil
}

// ParseIdentifier returns the entity id from a front-matter map, or empty
// string when the id field is missing or not a usable scalar.
func ParseIdentifier(fm map[string]interface{}) string {
	if fm == nil {
		return ""
	}
	raw, ok := fm["id"]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// Compose renders a canonical vault file: front-matter with id and title,
// then the body. Files written by the API always go through Compose so the
// identifier survives round-trips with external editors.
func Compose(id, title, body string) []byte {
	var b bytes.Buffer
	b.WriteString("---\n")
	fm, _ := yaml.Marshal(map[string]string{"id": id, "title": title})
	b.Write(fm)
	b.WriteString("---\n")
	if body != "" {
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	return b.Bytes()
}

// splitFrontmatter separates YAML front-matter (between leading ---
// delimiters) from the body. If no front-matter is found, or the YAML does
// not parse, the entire content is body and the file carries no identifier.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Malformed header: not an error for the caller, just a file
		// without a recognizable identifier.
		return nil, string(data), nil
	}
	return fm, body, nil
}

// deriveTitle returns the front-matter "title" if present, otherwise the
// first H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
