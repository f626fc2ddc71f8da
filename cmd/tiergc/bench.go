package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tiergc/bench"
)

var benchObjects int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare registry tracking with plain pointers",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := bench.Run(benchObjects)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), res)
		if res.Remaining != 0 {
			return fmt.Errorf("%d objects left alive after the run", res.Remaining)
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVarP(&benchObjects, "objects", "n", bench.DefaultObjects, "number of objects per strategy")
}
