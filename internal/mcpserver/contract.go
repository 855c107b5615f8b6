package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Laguz Note Format Contract

Every Markdown note stored in Laguz MUST follow this structure.

## Structure

` + "```" + `markdown
---
id: 01HYXVQT7NJ5W4K8R2M9G3FZBD    # REQUIRED – stable entity identifier
title: Human-readable title        # REQUIRED – used in search results
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `id` + "`" + ` field is required.** It binds the file to its embedding and must
   never be copied into another file: one id, one path. Notes created
   through the create_note tool get an id assigned automatically.
3. **` + "`" + `title` + "`" + ` field is required.** It is embedded together with the body and
   returned on search hits.
4. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
5. **Encoding** is UTF-8 with a trailing newline.
6. A file without a usable id is left alone by the sync engine: it is
   never embedded and never appears in semantic search.

## Example

` + "```" + `markdown
---
id: 01HYXVQT7NJ5W4K8R2M9G3FZBD
title: Weekly standup 2025-01-20
---

# Weekly standup 2025-01-20

Attendees: Alice, Bob.
` + "```" + `
`
