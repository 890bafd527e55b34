package executor

import (
	"fmt"
	"strings"

	"github.com/pablasso/baton/internal/task"
)

// closingDirective ends every instruction.
const closingDirective = `IMPORTANT: Complete ONLY the current section described above. Earlier sections are already done and later sections will be sent separately. Make the changes directly in the working tree and exit when this section is finished.`

// BuildInstruction combines the full task text, the section under execution
// and any auxiliary blocks of the task into one contextual instruction.
// sec.Index is 0-based.
func BuildInstruction(def *task.Definition, sec task.Section, total int) string {
	var sb strings.Builder

	sb.WriteString("You are executing one section of an automated task.\n\n")
	fmt.Fprintf(&sb, "## Task: %s\n\n", def.DisplayName())
	sb.WriteString("### Full task (for context)\n")
	sb.WriteString(strings.TrimSpace(def.Text))
	sb.WriteString("\n\n")

	if sec.Title != "" {
		fmt.Fprintf(&sb, "## Current section %d of %d: %s\n", sec.Index+1, total, sec.Title)
	} else {
		fmt.Fprintf(&sb, "## Current section %d of %d\n", sec.Index+1, total)
	}
	sb.WriteString(sec.Text)
	sb.WriteString("\n\n")

	if def.Expected != "" {
		sb.WriteString("## Expected outcome\n")
		sb.WriteString(def.Expected)
		sb.WriteString("\n\n")
	}
	if def.NextSteps != "" {
		sb.WriteString("## Next steps\n")
		sb.WriteString(def.NextSteps)
		sb.WriteString("\n\n")
	}
	if def.Notes != "" {
		sb.WriteString("## Notes\n")
		sb.WriteString(def.Notes)
		sb.WriteString("\n\n")
	}

	sb.WriteString(closingDirective)
	sb.WriteString("\n")
	return sb.String()
}
