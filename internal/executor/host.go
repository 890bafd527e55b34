package executor

import (
	"runtime"
	"strings"

	"github.com/pablasso/baton/internal/config"
)

// Argument limits for passing the instruction on the command line. cmd.exe
// caps a command line near 8191 characters.
const (
	windowsArgLimit = 7000
	defaultArgLimit = 100000
)

// cmdUnsafe lists characters cmd.exe cannot carry in an argument: it stops
// at a line break and interprets the rest.
const cmdUnsafe = "\r\n\"&|<>^%!()"

// Invocation is the concrete process shape chosen for one instruction.
type Invocation struct {
	Name string
	Args []string
	// Stdin is set when the instruction artifact is streamed on standard
	// input instead of being passed as an argument.
	Stdin bool
}

// Host picks an invocation shape for the platform it runs on.
type Host struct {
	GOOS     string
	ArgLimit int
}

// DetectHost returns the strategy for the running platform. A positive
// override replaces the platform argument limit.
func DetectHost(override int) Host {
	return NewHost(runtime.GOOS, override)
}

// NewHost returns the strategy for goos.
func NewHost(goos string, override int) Host {
	limit := defaultArgLimit
	if goos == "windows" {
		limit = windowsArgLimit
	}
	if override > 0 {
		limit = override
	}
	return Host{GOOS: goos, ArgLimit: limit}
}

// Plan returns how to invoke tool for an instruction of the given text.
func (h Host) Plan(tool config.Tool, instruction string) Invocation {
	direct := len(instruction) <= h.ArgLimit
	if h.GOOS == "windows" && strings.ContainsAny(instruction, cmdUnsafe) {
		direct = false
	}

	args := make([]string, 0, len(tool.Args)+2)
	if tool.PromptFlag != "" {
		args = append(args, tool.PromptFlag)
	}
	if direct {
		args = append(args, instruction)
	}
	args = append(args, tool.Args...)

	inv := Invocation{Name: tool.Command, Args: args, Stdin: !direct}
	if h.GOOS == "windows" {
		// npm-installed tools are .cmd shims that only resolve through cmd.exe
		inv.Args = append([]string{"/C", tool.Command}, args...)
		inv.Name = "cmd"
	}
	return inv
}
