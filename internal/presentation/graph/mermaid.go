package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/vm"
)

// GenerateMermaid produces a Mermaid flowchart of an image: its programs with
// their spawn edges, and its processes with the program each one runs and the
// channel each waiting one is blocked on.
// It applies semantic styling:
// - Program: [[Subroutine]]
// - Waiting process: [/Parallelogram/]
// - Terminal process: ((Circle))
// - Default: [Rectangle]
// Processes are also classed by state.
func GenerateMermaid(lib *vm.Library, procs []*domain.Process) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	if lib != nil {
		for _, p := range lib.Programs {
			fmt.Fprintf(&sb, "    %s[[\"%s\"]]\n", programID(p.Name), escape(p.Name))
		}
		for _, p := range lib.Programs {
			for _, sub := range p.Spawns() {
				if sub < len(lib.Programs) {
					fmt.Fprintf(&sb, "    %s -- \"spawn\" --> %s\n", programID(p.Name), programID(lib.Programs[sub].Name))
				}
			}
		}
	}

	channels := make(map[string]bool)
	for _, proc := range procs {
		safeID := processID(proc.ID())

		opener, closer := "[", "]"
		switch {
		case proc.State().Terminal():
			opener, closer = "((", "))"
		case proc.State() == domain.StateWaiting:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(proc.ID().String()), closer)

		if m, ok := proc.Machine().(*vm.VM); ok && m.Program() != nil && m.Program().Name != proc.ID().String() {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, programID(m.Program().Name))
		}

		if wait, ok := proc.Blocked(); ok {
			ch := channelID(wait)
			if !channels[ch] {
				channels[ch] = true
				fmt.Fprintf(&sb, "    %s{\"%s\"}\n", ch, escape(wait.String()))
			}
			fmt.Fprintf(&sb, "    %s -. \"waits\" .-> %s\n", safeID, ch)
		}
	}

	if len(procs) > 0 {
		sb.WriteString("\n    %% State Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef waiting fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef completed fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")
		for _, proc := range procs {
			if proc.State() != domain.StateRunnable {
				fmt.Fprintf(&sb, "    class %s %s;\n", processID(proc.ID()), proc.State())
			}
		}
	}

	return sb.String()
}

func programID(name string) string {
	return "prog_" + sanitizeMermaidID(name)
}

func processID(n domain.Name) string {
	return fmt.Sprintf("proc_%d_%s", n.NS, sanitizeMermaidID(n.Label))
}

func channelID(n domain.Name) string {
	return fmt.Sprintf("chan_%d_%s", n.NS, sanitizeMermaidID(n.Label))
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "@", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
