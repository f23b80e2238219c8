package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/presentation/graph"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/pkg/image"
	"github.com/aretw0/weft/pkg/vm"
)

// InspectOptions configures the inspect command.
type InspectOptions struct {
	Config  config.Config
	Image   string
	Mermaid bool // Print the mermaid graph only
	Plain   bool // ASCII rendering, for pipes
	Out     io.Writer
}

// Inspect loads an image without running it and prints what it would deposit.
func Inspect(opts InspectOptions) error {
	w := opts.Out
	if w == nil {
		w = os.Stdout
	}

	img, err := loadImage(opts.Image, opts.Config)
	if err != nil {
		return err
	}

	if opts.Mermaid {
		_, err := fmt.Fprint(w, graph.GenerateMermaid(img.Library, img.Processes))
		return err
	}

	render, err := tui.NewRenderer(opts.Plain)
	if err != nil {
		return err
	}
	out, err := render(report(opts.Image, img))
	if err != nil {
		return fmt.Errorf("error rendering report: %w", err)
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// report builds the markdown description of img.
func report(path string, img *image.Image) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", path)
	fmt.Fprintf(&b, "Process channel `%s`, %d processes, %d seeded values.\n\n",
		img.Channel, len(img.Processes), len(img.Values))

	if len(img.Processes) > 0 {
		b.WriteString("## Processes\n\n")
		b.WriteString("| ID | State | Program | Waits on |\n")
		b.WriteString("|----|-------|---------|----------|\n")
		for _, p := range img.Processes {
			program := "-"
			if m, ok := p.Machine().(*vm.VM); ok && m.Program() != nil {
				program = m.Program().Name
			}
			waits := "-"
			if ch, ok := p.Blocked(); ok {
				waits = "`" + ch.String() + "`"
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", p.ID(), p.State(), program, waits)
		}
		b.WriteString("\n")
	}

	if len(img.Values) > 0 {
		b.WriteString("## Values\n\n")
		for _, s := range img.Values {
			fmt.Fprintf(&b, "- `%s` ← `%s`\n", s.Channel, s.Value)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Programs\n\n")
	for _, p := range programs(img) {
		fmt.Fprintf(&b, "```\n%s```\n\n", p)
	}
	return b.String()
}

// programs lists the library programs followed by the inline programs of
// processes, each once.
func programs(img *image.Image) []*vm.Program {
	seen := map[*vm.Program]bool{}
	var out []*vm.Program
	add := func(p *vm.Program) {
		if p != nil && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if img.Library != nil {
		for _, p := range img.Library.Programs {
			add(p)
		}
	}
	for _, proc := range img.Processes {
		if m, ok := proc.Machine().(*vm.VM); ok {
			add(m.Program())
		}
	}
	return out
}
