package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nconklindev/geoshift/internal/crs"
	"github.com/nconklindev/geoshift/internal/ui"
)

func crsCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "crs",
		Short: "List the supported coordinate reference systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := g.registry()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reg.All())
			}

			fmt.Fprintln(cmd.OutOrStdout(), crsTable(reg.All()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print definitions as JSON")

	return cmd
}

func crsTable(defs []*crs.Definition) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(ui.SubtitleStyle.UnsetMarginBottom()).
		Headers("CODE", "SHORT", "NAME", "X / Y", "AREA OF USE").
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Inherit(ui.SelectedStyle)
			}
			return style
		})

	for _, d := range defs {
		x, y := d.Axes.Labels()
		area := "-"
		if b := d.AreaOfUse; b != (crs.Bounds{}) {
			area = fmt.Sprintf("%.2f, %.2f to %.2f, %.2f", b.West, b.South, b.East, b.North)
		}
		t.Row(d.Code, d.Short, d.Name, x+" / "+y, area)
	}

	return t.String()
}
