package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vrptw/internal/opt"
	"vrptw/internal/ortec"
)

var errInvalidSolution = errors.New("solution is invalid")

func newValidateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate <instance> <solution.json>",
		Short: "Check a solution against an instance",
		Long: "Check every route for capacity, time windows and the depot deadline, " +
			"and that each customer is served exactly once by at most the fleet size.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := ortec.Load(args[0])
			if err != nil {
				return err
			}
			sol, err := readSolution(args[1])
			if err != nil {
				return err
			}
			rep := opt.Validate(inst, sol.Routes)
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else {
				fmt.Fprint(w, rep.Summary())
			}
			if !rep.Valid {
				return errInvalidSolution
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	return cmd
}
