package toolsurface

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KnowledgeFileResult is read_knowledge's success payload.
type KnowledgeFileResult struct {
	File    string `json:"file"`
	Content string `json:"content"`
}

// KnowledgeWriteResult is append_knowledge/update_knowledge's success
// payload.
type KnowledgeWriteResult struct {
	File    string `json:"file"`
	Bytes   int    `json:"bytes"`
	Section string `json:"section,omitempty"`
}

func (d *Dispatcher) knowledgePath(file string) (string, error) {
	if file == "" {
		return "", errors.New("file is required")
	}
	if filepath.IsAbs(file) || strings.Contains(file, "..") {
		return "", fmt.Errorf("invalid file path %q", file)
	}
	return filepath.Join(d.knowledgeDir, file), nil
}

// availableKnowledgeFiles lists the persistent knowledge base's contents,
// surfaced in the error returned when a read or write targets a missing
// file.
func (d *Dispatcher) availableKnowledgeFiles() []string {
	entries, err := os.ReadDir(d.knowledgeDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}

// readKnowledge returns the full content of one persistent-memory file.
func (d *Dispatcher) readKnowledge(p map[string]any) Response {
	file := paramString(p, "file", "")
	path, err := d.knowledgePath(file)
	if err != nil {
		return errorResponse(fmt.Errorf("read_knowledge: %w", err))
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return errorResponse(fmt.Errorf("read_knowledge: file %q not found, available: %v", file, d.availableKnowledgeFiles()))
	}
	if err != nil {
		return errorResponse(fmt.Errorf("read_knowledge: %w", err))
	}
	return successResponse(KnowledgeFileResult{File: file, Content: string(data)})
}

// appendKnowledge appends content to a knowledge file, creating it if
// absent. Header lines — a leading run of "#" markdown headings — are
// never touched, since the append happens strictly below them.
func (d *Dispatcher) appendKnowledge(p map[string]any) Response {
	file := paramString(p, "file", "")
	content := paramString(p, "content", "")
	path, err := d.knowledgePath(file)
	if err != nil {
		return errorResponse(fmt.Errorf("append_knowledge: %w", err))
	}
	if content == "" {
		return errorResponse(errors.New("append_knowledge: content is required"))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errorResponse(fmt.Errorf("append_knowledge: %w", err))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errorResponse(fmt.Errorf("append_knowledge: %w", err))
	}
	defer f.Close()

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	n, err := f.WriteString(content)
	if err != nil {
		return errorResponse(fmt.Errorf("append_knowledge: %w", err))
	}
	return successResponse(KnowledgeWriteResult{File: file, Bytes: n})
}

// updateKnowledge rewrites one "## section" heading's body in place,
// preserving every other line (including the file's header block) verbatim.
// If the section does not yet exist it is appended at the end.
func (d *Dispatcher) updateKnowledge(p map[string]any) Response {
	file := paramString(p, "file", "")
	section := paramString(p, "section", "")
	content := paramString(p, "content", "")
	path, err := d.knowledgePath(file)
	if err != nil {
		return errorResponse(fmt.Errorf("update_knowledge: %w", err))
	}
	if section == "" {
		return errorResponse(errors.New("update_knowledge: section is required"))
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return errorResponse(fmt.Errorf("update_knowledge: file %q not found, available: %v", file, d.availableKnowledgeFiles()))
	}
	if err != nil {
		return errorResponse(fmt.Errorf("update_knowledge: %w", err))
	}

	updated := replaceSection(string(data), section, content)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return errorResponse(fmt.Errorf("update_knowledge: %w", err))
	}
	return successResponse(KnowledgeWriteResult{File: file, Bytes: len(updated), Section: section})
}

// replaceSection finds a "## <section>" heading (case-insensitive) and
// replaces every line between it and the next "## " heading (or EOF) with
// content; every line outside that span, including the heading itself, is
// preserved byte for byte. A missing section is appended as a new one.
func replaceSection(doc, section, content string) string {
	lines := strings.Split(doc, "\n")
	heading := "## " + section
	start := -1
	end := len(lines)

	for i, line := range lines {
		if start == -1 {
			if strings.EqualFold(strings.TrimSpace(line), strings.TrimSpace(heading)) {
				start = i
			}
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "## ") {
			end = i
			break
		}
	}

	body := strings.TrimRight(content, "\n")
	var bodyLines []string
	if body != "" {
		bodyLines = strings.Split(body, "\n")
	}

	if start == -1 {
		var b strings.Builder
		b.WriteString(strings.TrimRight(doc, "\n"))
		b.WriteString("\n\n")
		b.WriteString(heading)
		b.WriteString("\n\n")
		b.WriteString(body)
		b.WriteString("\n")
		return b.String()
	}

	out := make([]string, 0, len(lines))
	out = append(out, lines[:start+1]...)
	out = append(out, "")
	out = append(out, bodyLines...)
	if end < len(lines) {
		out = append(out, "")
		out = append(out, lines[end:]...)
	}
	return strings.Join(out, "\n")
}
