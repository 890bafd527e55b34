package task

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pablasso/baton/internal/failure"
	"gopkg.in/yaml.v3"
)

var headingPattern = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.+?)\s*#*\s*$`)

// Definition is the parsed content of one task file.
type Definition struct {
	Ref

	// Title and Timeout come from optional YAML front matter.
	Title   string
	Timeout time.Duration

	// Text is the file body without front matter.
	Text string
	// Instruction is the prompt block with one layer of quoting removed.
	Instruction string

	Expected  string
	NextSteps string
	Notes     string
}

// DisplayName is the front matter title when present, else the task ID.
func (d *Definition) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	return d.ID
}

type frontMatter struct {
	Title   string `yaml:"title"`
	Timeout string `yaml:"timeout"`
}

// Load reads and parses the task file behind ref.
func Load(ref Ref) (*Definition, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s: %w", ref.ID, err)
	}
	return Parse(ref, data)
}

// Parse builds a Definition from raw file content.
func Parse(ref Ref, content []byte) (*Definition, error) {
	def := &Definition{Ref: ref}

	body, err := def.applyFrontMatter(content)
	if err != nil {
		return nil, err
	}
	def.Text = body

	instruction, err := ExtractInstruction(body)
	if err != nil {
		return nil, err
	}
	def.Instruction = instruction

	def.Expected, _ = headingBlock(body, func(h string) bool {
		return strings.Contains(h, "expected")
	})
	def.NextSteps, _ = headingBlock(body, func(h string) bool {
		return strings.Contains(h, "next step") || strings.Contains(h, "follow-up") || strings.Contains(h, "follow up")
	})
	def.Notes, _ = headingBlock(body, func(h string) bool {
		return strings.Contains(h, "note")
	})
	return def, nil
}

// applyFrontMatter strips a leading `---` YAML block and applies its fields.
func (d *Definition) applyFrontMatter(content []byte) (string, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return string(normalized), nil
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return "", failure.Errorf(failure.MalformedTask, "parse "+d.ID, "unterminated front matter")
	}

	var fm frontMatter
	if err := yaml.Unmarshal(parts[0], &fm); err != nil {
		return "", failure.New(failure.MalformedTask, "parse "+d.ID, fmt.Errorf("front matter: %w", err))
	}
	d.Title = strings.TrimSpace(fm.Title)
	if fm.Timeout != "" {
		timeout, err := time.ParseDuration(fm.Timeout)
		if err != nil || timeout <= 0 {
			return "", failure.Errorf(failure.MalformedTask, "parse "+d.ID, "invalid timeout %q in front matter", fm.Timeout)
		}
		d.Timeout = timeout
	}
	return string(parts[1]), nil
}

// ExtractInstruction returns the block under the first heading whose title
// mentions "prompt", up to the next heading. One layer of enclosing quotes
// or code fence is removed.
func ExtractInstruction(text string) (string, error) {
	block, ok := headingBlock(text, func(h string) bool {
		return strings.Contains(h, "prompt")
	})
	if !ok {
		return "", failure.Errorf(failure.MalformedTask, "extract instruction", "no prompt heading found")
	}
	instruction := stripEnclosingQuotes(block)
	if instruction == "" {
		return "", failure.Errorf(failure.MalformedTask, "extract instruction", "prompt block is empty")
	}
	return instruction, nil
}

// headingBlock returns the trimmed lines between the first heading accepted
// by match (given the lowercased title) and the next heading. Headings inside
// fenced code blocks are ignored.
func headingBlock(text string, match func(heading string) bool) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	inFence := false
	start := -1
	for i, line := range lines {
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if start >= 0 {
			return strings.TrimSpace(strings.Join(lines[start:i], "\n")), true
		}
		if match(strings.ToLower(m[2])) {
			start = i + 1
		}
	}
	if start < 0 {
		return "", false
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n")), true
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

var quotePairs = [][2]string{
	{`"""`, `"""`},
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
}

func stripEnclosingQuotes(s string) string {
	s = strings.TrimSpace(s)

	lines := strings.Split(s, "\n")
	if len(lines) >= 2 && isFence(lines[0]) && isFence(lines[len(lines)-1]) {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}

	for _, pair := range quotePairs {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
