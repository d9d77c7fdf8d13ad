package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/weave-labs/toolweave/composition"
	"github.com/weave-labs/toolweave/loader"
)

// NewWorkflowCmd creates the "workflow" command group.
func NewWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Validate, run, and analyze workflow files",
	}
	cmd.PersistentFlags().String("store-path", "", "Path to the registry store; .json selects the flat-file store (default: ~/.toolweave/toolweave.db)")

	cmd.AddCommand(newWorkflowValidateCmd())
	cmd.AddCommand(newWorkflowRunCmd())
	cmd.AddCommand(newWorkflowAnalyzeCmd())
	cmd.AddCommand(newWorkflowDiagramCmd())

	return cmd
}

func newWorkflowValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow file without executing",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflowValidate,
	}
}

func runWorkflowValidate(cmd *cobra.Command, args []string) error {
	comp, engine, closeStore, err := loadWorkflowEngine(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeStore()

	if err := engine.Validate(comp); err != nil {
		return exitError(exitValidation, "validation failed: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Workflow is valid: %s (%s, %d steps)\n", comp.Name, comp.Type, len(comp.Specs))
	return nil
}

func newWorkflowRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflowRun,
	}
	cmd.Flags().StringP("input", "i", "", "Input data as inline JSON string")
	cmd.Flags().StringP("input-file", "f", "", "Input data from a JSON or YAML file")
	cmd.Flags().StringP("output", "o", "", "Write the result to a file (default: stdout)")
	cmd.Flags().Duration("timeout", 0, "Parallel fan-out timeout (default 30s)")
	return cmd
}

func runWorkflowRun(cmd *cobra.Command, args []string) error {
	input, err := resolveRunInput(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	comp, engine, closeStore, err := loadWorkflowEngine(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeStore()

	result, execErr := engine.Execute(cmd.Context(), comp, input, composition.ExecOptions{
		Timeout: timeout,
	})
	if result == nil {
		return exitError(exitValidation, "validation failed: %v", execErr)
	}

	if err := emitRunResult(cmd, result); err != nil {
		return err
	}

	if result.Status == composition.StatusFailure {
		return exitError(exitRuntime, "run finished with status %s", result.Status)
	}
	return nil
}

func emitRunResult(cmd *cobra.Command, result *composition.ExecutionResult) error {
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := os.WriteFile(outputPath, append(data, '\n'), 0o644); err != nil {
		return exitError(exitRuntime, "writing result: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Result written to %s\n", outputPath)
	return nil
}

// resolveRunInput merges --input-file and --input, with the inline JSON
// taking precedence key by key.
func resolveRunInput(cmd *cobra.Command) (map[string]any, error) {
	inline, _ := cmd.Flags().GetString("input")
	filePath, _ := cmd.Flags().GetString("input-file")

	input := map[string]any{}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, exitError(exitFileNotFound, "input file not found: %s", filePath)
			}
			return nil, fmt.Errorf("reading input file: %w", err)
		}
		var fromFile map[string]any
		if strings.HasSuffix(filePath, ".yaml") || strings.HasSuffix(filePath, ".yml") {
			err = yaml.Unmarshal(data, &fromFile)
		} else {
			err = json.Unmarshal(data, &fromFile)
		}
		if err != nil {
			return nil, exitError(exitInputParse, "parsing input file: %v", err)
		}
		for k, v := range fromFile {
			input[k] = v
		}
	}

	if inline != "" {
		var fromInline map[string]any
		if err := json.Unmarshal([]byte(inline), &fromInline); err != nil {
			return nil, exitError(exitInputParse, "parsing --input: %v", err)
		}
		for k, v := range fromInline {
			input[k] = v
		}
	}

	return input, nil
}

func newWorkflowAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Report optimization opportunities for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflowAnalyze,
	}
}

func runWorkflowAnalyze(cmd *cobra.Command, args []string) error {
	comp, engine, closeStore, err := loadWorkflowEngine(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeStore()

	return writeJSON(cmd.OutOrStdout(), engine.Analyze(comp))
}

func newWorkflowDiagramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagram <file>",
		Short: "Render a workflow as a Graphviz DOT diagram",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflowDiagram,
	}
	cmd.Flags().StringP("output", "o", "", "Write the diagram to a file (default: stdout)")
	return cmd
}

func runWorkflowDiagram(cmd *cobra.Command, args []string) error {
	comp, err := loadWorkflowFile(args[0])
	if err != nil {
		return err
	}

	dot := composition.ToDiagram(comp)

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), dot)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(dot), 0o644); err != nil {
		return exitError(exitRuntime, "writing diagram: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Diagram written to %s\n", outputPath)
	return nil
}

// loadWorkflowEngine loads the workflow file and opens a registry-backed
// engine in one step, since every workflow command needs both.
func loadWorkflowEngine(cmd *cobra.Command, path string) (composition.Composition, *composition.Engine, func() error, error) {
	comp, err := loadWorkflowFile(path)
	if err != nil {
		return composition.Composition{}, nil, nil, err
	}

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return composition.Composition{}, nil, nil, exitError(exitRuntime, "%v", err)
	}

	return comp, composition.NewEngine(reg), closeStore, nil
}

func loadWorkflowFile(path string) (composition.Composition, error) {
	comp, err := loader.LoadWorkflow(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return composition.Composition{}, exitError(exitFileNotFound, "file not found: %s", path)
		}
		return composition.Composition{}, exitError(exitValidation, "loading workflow: %v", err)
	}
	return comp, nil
}
