package commands

import (
	"path/filepath"

	"weekly-metrics/internal/source"

	"github.com/spf13/cobra"
)

var snapshotOut string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <kind>",
	Short: "Materialize one source kind into a snapshot database the loader reads instead of the files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := source.ParseKind(args[0])
		if err != nil {
			return err
		}
		loader := newLoader()
		t, err := loader.LoadRaw(cmd.Context(), kind)
		if err != nil {
			return err
		}

		path := snapshotOut
		if path == "" {
			dir, err := loader.ResolveDir(kind)
			if err != nil {
				return err
			}
			path = filepath.Join(dir, string(kind)+source.SnapshotSuffix)
		}
		return source.WriteSnapshot(cmd.Context(), path, t)
	},
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "snapshot path (defaults to the kind's directory)")
	rootCmd.AddCommand(snapshotCmd)
}
