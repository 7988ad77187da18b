package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	protocol "github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/request"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>...",
	Short: "Validate scenario files without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := false

		for _, path := range args {
			if err := validateScenario(path); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n  %v\n", path, err)
				failed = true
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK   %s\n", path)
		}

		if failed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", ".strafe.yaml", "protocol config file")
}

// validateScenario checks the document against the schema, parses it, and
// builds every request plan so declaration errors surface here instead of
// mid-run.
func validateScenario(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := scenario.ValidateDocument(data); err != nil {
		return err
	}

	file, err := scenario.Load(path)
	if err != nil {
		return err
	}

	cfg, err := protocol.LoadOrDefault(validateConfigPath)
	if err != nil {
		return err
	}

	for _, req := range file.Requests {
		if _, err := request.NewPlan(req, cfg, request.WithBaseDir(file.BaseDir)); err != nil {
			return err
		}
	}

	return nil
}
