package indexer

import (
	"regexp"
	"strings"
)

// cleanSegment prepares a turn's raw text for the extractor: code blocks
// get an explicit [CODE:lang:START]...[CODE:lang:END] envelope so the
// backend's JSON output can't be confused by raw triple-backtick fences,
// and runs of 2+ blank lines collapse to one.
func cleanSegment(texte string) string {
	if texte == "" {
		return texte
	}
	result := encapsulateBracketCodeBlocks(texte)
	result = encapsulateMarkdownCodeBlocks(result)
	result = blankRunCollapse.ReplaceAllString(result, "\n\n")
	return result
}

var (
	blankRunCollapse   = regexp.MustCompile(`\n{3,}`)
	bracketCodeBlock   = regexp.MustCompile(`(?s)\[Code\]\s*\n(.*?)(?:\n\n\S|\n\[|\z)`)
	markdownCodeFence  = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")
)

func encapsulateBracketCodeBlocks(s string) string {
	return bracketCodeBlock.ReplaceAllStringFunc(s, func(match string) string {
		sub := bracketCodeBlock.FindStringSubmatch(match)
		code := strings.TrimSpace(sub[1])
		if code == "" {
			return ""
		}
		lang := detectLanguage(code)
		return "[CODE:" + lang + ":START]\n" + code + "\n[CODE:" + lang + ":END]"
	})
}

func encapsulateMarkdownCodeBlocks(s string) string {
	return markdownCodeFence.ReplaceAllStringFunc(s, func(match string) string {
		sub := markdownCodeFence.FindStringSubmatch(match)
		hint := strings.ToLower(sub[1])
		code := strings.TrimSpace(sub[2])
		if code == "" {
			return ""
		}
		lang := hint
		if lang == "" || lang == "code" {
			lang = detectLanguage(code)
		}
		return "[CODE:" + lang + ":START]\n" + code + "\n[CODE:" + lang + ":END]"
	})
}

// detectLanguage makes a best-effort guess at a code block's language from
// characteristic tokens, falling back to "code".
func detectLanguage(code string) string {
	lower := strings.ToLower(code)
	upper := strings.ToUpper(code)

	switch {
	case containsAny(code, "import ", "from ", "def ", "class ", "print(", "if __name__"):
		return "python"
	case containsAny(code, `\frac`, `\begin{`, `\end{`, `$$`, `\alpha`, `\beta`, `\sum`):
		return "latex"
	case containsAny(lower, "<html", "<div", "<span", "</div>", "<!doctype"):
		return "html"
	case containsAny(upper, "SELECT ", "FROM ", "WHERE ", "INSERT ", "UPDATE ", "CREATE TABLE"):
		return "sql"
	case containsAny(code, "const ", "let ", "function ", "=>", "console.log"):
		return "javascript"
	case strings.HasPrefix(strings.TrimSpace(code), "#!") || containsAny(code, "echo ", "#!/bin/bash", "sudo ", "apt "):
		return "bash"
	default:
		return "code"
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
