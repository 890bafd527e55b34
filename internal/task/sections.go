package task

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// markerPattern matches a section start such as
//
//	>>> SECTION 2: Wire the login form to the session store
//
// The ">>>" prefix plus keyword cannot be confused with numbered lists,
// bullets or version strings.
var markerPattern = regexp.MustCompile(`(?i)^\s*>>>\s*section\b(.*)$`)

// minMarkerContent is the shortest trailing text a marker needs to count as
// a real section start. Shorter markers are treated as noise.
const minMarkerContent = 10

// Section is one contiguous slice of an instruction block.
type Section struct {
	Index int    // position among the returned sections, from 0
	Title string // marker trailing text; empty for a fallback section
	Text  string // includes the marker line as its first line
}

// Split is the outcome of SplitSections.
type Split struct {
	Sections []Section
	// Fallback is set when no usable marker was found and the whole block
	// became a single section.
	Fallback bool
	// Dropped counts marker lines rejected as noise.
	Dropped int
}

// SplitSections breaks an instruction block into marker-delimited sections
// in source order. Lines before the first marker are discarded. A block
// without usable markers becomes one section holding the trimmed block.
func SplitSections(block string) Split {
	var (
		result  Split
		current []string
		title   string
	)

	flush := func() {
		if current == nil {
			return
		}
		result.Sections = append(result.Sections, Section{
			Index: len(result.Sections),
			Title: title,
			Text:  strings.TrimRight(strings.Join(current, "\n"), " \t\n"),
		})
		current = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n") {
		if m := markerPattern.FindStringSubmatch(line); m != nil {
			flush()
			content := strings.TrimSpace(strings.TrimLeft(m[1], " \t:-."))
			if utf8.RuneCountInString(content) < minMarkerContent {
				result.Dropped++
				continue
			}
			title = content
			current = []string{strings.TrimSpace(line)}
			continue
		}
		if current != nil {
			current = append(current, line)
		}
	}
	flush()

	if len(result.Sections) == 0 {
		result.Fallback = true
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			result.Sections = []Section{{Index: 0, Text: trimmed}}
		}
	}
	return result
}
