package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/okian/regpredict/internal/domain/pipeline"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe a saved model file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifact, err := pipeline.Load(path)
			if err != nil {
				return err
			}
			renderArtifact(cmd.OutOrStdout(), path, artifact)
			if err := artifact.CheckWidths(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "model.json", "model file to inspect")
	return cmd
}

// renderArtifact prints a summary table followed by per-feature scaler
// statistics when the scaler is a StandardScaler.
func renderArtifact(w io.Writer, path string, a *pipeline.Artifact) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Model " + path)
	t.AppendRows([]table.Row{
		{"Features", len(a.FeatureColumns)},
		{"Feature names", strings.Join(a.FeatureColumns, ", ")},
		{"Model type", pipeline.KindOf(a.Model)},
		{"Model features", a.Model.NFeatures()},
		{"Scaler type", pipeline.KindOf(a.Scaler)},
		{"Scaler features", a.Scaler.NFeatures()},
	})
	if tree, ok := a.Model.(*pipeline.DecisionTreeRegressor); ok {
		t.AppendRow(table.Row{"Tree depth", tree.Depth()})
	}
	m := a.Metadata
	if m.CreatedAt != nil {
		t.AppendRow(table.Row{"Created", m.CreatedAt.Format(time.RFC3339)})
	}
	if m.NSamples > 0 {
		t.AppendRow(table.Row{"Samples", m.NSamples})
	}
	if m.TrainR2 != nil {
		t.AppendRow(table.Row{"Train R2", fmt.Sprintf("%.4f", *m.TrainR2)})
	}
	if m.TestR2 != nil {
		t.AppendRow(table.Row{"Test R2", fmt.Sprintf("%.4f", *m.TestR2)})
	}
	t.Render()

	scaler, ok := a.Scaler.(*pipeline.StandardScaler)
	if !ok {
		return
	}
	st := table.NewWriter()
	st.SetOutputMirror(w)
	st.SetStyle(table.StyleLight)
	st.AppendHeader(table.Row{"Feature", "Mean", "Std"})
	for i, name := range a.FeatureColumns {
		if i >= len(scaler.Mean) || i >= len(scaler.Scale) {
			st.AppendRow(table.Row{name, "-", "-"})
			continue
		}
		st.AppendRow(table.Row{name, fmt.Sprintf("%.4f", scaler.Mean[i]), fmt.Sprintf("%.4f", scaler.Scale[i])})
	}
	st.Render()
}
