// Package consoleui renders demo-program output: colored status lines via
// fatih/color and tabular fleet/flow summaries via olekukonko/tablewriter.
// Nothing here is load-bearing for the HSM runtime itself — it exists
// purely so the cmd/ demos have something better than fmt.Println to
// narrate what the machines are doing.
package consoleui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// StateLine prints a "<machine> <kind> <state>" narration line to w, with
// the machine name in cyan. Kind controls the state's color: "entry"
// green, "exit" red, "timeout" yellow, anything else plain.
func StateLine(w io.Writer, machine, kind, state string) {
	var painted string
	switch kind {
	case "entry":
		painted = color.GreenString(state)
	case "exit":
		painted = color.RedString(state)
	case "timeout":
		painted = color.YellowString(state)
	default:
		painted = state
	}
	fmt.Fprintf(w, "%s %s %s\n", color.CyanString(machine), kind, painted)
}

// FleetRow is one line of a device/machine status table.
type FleetRow struct {
	Name    string
	State   string
	Healthy bool
	Detail  string
}

// RenderFleet writes a status table for a set of machines to w, in the
// style of a device fleet dashboard: one row per machine, a colored
// health column, and its current state and detail.
func RenderFleet(w io.Writer, rows []FleetRow) {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"Machine", "State", "Health", "Detail"})
	for _, r := range rows {
		health := color.GreenString("OK")
		if !r.Healthy {
			health = color.RedString("DOWN")
		}
		table.Append([]string{r.Name, r.State, health, r.Detail})
	}
	table.Render()
}
