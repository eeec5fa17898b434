package simcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solarforge/replicator/internal/infrastructure/simconfig"
)

func newValidateCommand() *cobra.Command {
	var specPath string
	var profile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a spec document without running a simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			limits := simconfig.DefaultLimits()
			allowed, err := allowedDirsFor(specPath)
			if err != nil {
				return err
			}
			loader := simconfig.NewLoader(limits, allowed)
			doc, err := loader.Load(specPath, profile)
			if err != nil {
				return err
			}
			fmt.Printf("spec document valid: %d resources, %d recipes, %d module types, %d goals\n",
				len(doc.Resources), len(doc.Recipes), len(doc.ModuleTypes), len(doc.Goals))
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "path to the spec document")
	cmd.Flags().StringVar(&profile, "profile", "", "named profile to apply")
	_ = cmd.MarkFlagRequired("spec")

	return cmd
}
