package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/patchformer/internal/config"
)

func (a *app) summaryCmd() *cobra.Command {
	var weights string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the encoder architecture and its parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if weights != "" {
				cfg.Weights = weights
			}
			enc, err := cfg.NewEncoder()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printArchitecture(out, cfg, enc.NumParameters())
			fmt.Fprint(out, "\n")
			printParameters(out, enc)
			return nil
		},
	}

	cmd.Flags().StringVarP(&weights, "weights", "w", "", "checkpoint to load (overrides the config)")
	return cmd
}

func printArchitecture(out io.Writer, cfg *config.Config, params int) {
	table := tablewriter.NewWriter(out)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding(" ")

	m := cfg.Model
	weights := cfg.Weights
	if weights == "" {
		weights = "(random)"
	}

	data := [][]string{
		{"Patches:", fmt.Sprintf("%d x %d", m.NumPatches, m.PatchDim)},
		{"Objects:", fmt.Sprintf("up to %d x %d", m.ObjMaxNum, m.ObjDim)},
		{"Descriptors:", fmt.Sprintf("%d x %d", cfg.Descriptors.Vocab, cfg.Descriptors.Dim)},
		{"Embedding:", strconv.Itoa(m.EmbeddingDim)},
		{"Layers:", fmt.Sprintf("%d (heads %d, hidden %d)", m.NumLayers, m.NumHeads, m.HiddenDim)},
		{"Positional:", m.PositionalEncoding},
		{"Sequence:", fmt.Sprintf("%d max", m.MaxSequenceLength())},
		{"Output:", strconv.Itoa(m.OutDim)},
		{"Weights:", weights},
		{"Parameters:", formatCount(params)},
	}
	table.AppendBulk(data)
	table.Render()
}

func printParameters(out io.Writer, enc *config.Encoder) {
	var data [][]string
	for _, p := range enc.NamedParameters() {
		data = append(data, []string{
			p.Name,
			fmt.Sprint(p.Tensor.Shape()),
			p.Tensor.DType().String(),
			strconv.Itoa(p.Tensor.NumElements()),
		})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"NAME", "SHAPE", "DTYPE", "COUNT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// formatCount renders a parameter count with a K/M suffix.
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return strconv.Itoa(n)
	}
}
