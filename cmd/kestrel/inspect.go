package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/exec"
	"github.com/venneberg/kestrel/graph"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <module-file>",
	Short: "Show the execution plan compiled for a module",
	Long: `Loads a module definition, compiles the execution plan for the
selected mode, and prints the schedule. Training plans include the
gradient steps appended after the forward pass.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeName, _ := cmd.Flags().GetString("mode")
		asJSON, _ := cmd.Flags().GetBool("json")
		dump, _ := cmd.Flags().GetBool("dump")

		mode, err := exec.ParseMode(modeName)
		if err != nil {
			return err
		}
		module, err := api.LoadModule(args[0])
		if err != nil {
			return err
		}
		g, err := module.Graph()
		if err != nil {
			return err
		}
		plan, err := graph.Build(g, mode.PlanKind())
		if err != nil {
			return err
		}

		if asJSON {
			out, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		if dump {
			pp.Println(plan)
			return nil
		}

		color.Cyan("%s (%s): %d step(s)", plan.Graph, plan.Kind, len(plan.Steps))
		for i, step := range plan.Steps {
			fmt.Printf("  %2d [%s] %s %s -> %v\n", i+1, step.Phase, step.Node.Op, step.Node.Name, step.Node.Outputs)
		}
		fmt.Printf("outputs: %v\n", plan.Outputs)
		if len(plan.GradOutputs) > 0 {
			fmt.Printf("gradients: %v\n", plan.GradOutputs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("mode", "m", "inference", "Execution mode (training or inference)")
	inspectCmd.Flags().Bool("json", false, "Print the plan as indented JSON")
	inspectCmd.Flags().Bool("dump", false, "Pretty-print the plan structure")
}
