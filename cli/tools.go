package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/weave-labs/toolweave/loader"
	"github.com/weave-labs/toolweave/metrics"
	"github.com/weave-labs/toolweave/registry"
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage the tool registry",
	}
	cmd.PersistentFlags().String("store-path", "", "Path to the registry store; .json selects the flat-file store (default: ~/.toolweave/toolweave.db)")

	cmd.AddCommand(newToolsRegisterCmd())
	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsInspectCmd())
	cmd.AddCommand(newToolsUnregisterCmd())
	cmd.AddCommand(newToolsSearchCmd())
	cmd.AddCommand(newToolsDiscoverCmd())
	cmd.AddCommand(newToolsRecommendCmd())
	cmd.AddCommand(newToolsMetricsCmd())

	return cmd
}

func newToolsRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register tools from a manifest file",
		Args:  cobra.NoArgs,
		RunE:  runToolsRegister,
	}
	cmd.Flags().String("manifest", "", "Path to a tool manifest (JSON or YAML)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func runToolsRegister(cmd *cobra.Command, args []string) error {
	manifestPath, _ := cmd.Flags().GetString("manifest")

	manifest, err := loader.LoadManifest(manifestPath)
	if err != nil {
		return exitError(exitValidation, "loading manifest: %v", err)
	}

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	for _, desc := range manifest.Tools {
		if err := reg.Register(cmd.Context(), stubTool(desc.Ref), desc); err != nil {
			return exitError(exitRuntime, "registering %q: %v", desc.Ref, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered tool: %s (%s)\n", desc.Ref, strings.Join(desc.Capabilities, ", "))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d tool(s) registered from %s\n", len(manifest.Tools), manifestPath)
	return nil
}

func newToolsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE:  runToolsList,
	}
	cmd.Flags().String("category", "", "Filter by exact category")
	cmd.Flags().StringArray("tag", nil, "Filter by tag, any match (repeatable)")
	cmd.Flags().StringArray("capability", nil, "Filter by capability, all required (repeatable)")
	cmd.Flags().Bool("json", false, "Emit JSON instead of a table")
	return cmd
}

func runToolsList(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	tags, _ := cmd.Flags().GetStringArray("tag")
	capabilities, _ := cmd.Flags().GetStringArray("capability")
	asJSON, _ := cmd.Flags().GetBool("json")

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	descs := reg.List(registry.Filter{
		Category:     category,
		Tags:         tags,
		Capabilities: capabilities,
	})

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, descs)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REF\tNAME\tCATEGORY\tCAPABILITIES\tQUALITY")
	for _, d := range descs {
		quality := 0.0
		if m, ok := reg.GetMetrics(d.Ref); ok {
			quality = m.QualityScore()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\n",
			d.Ref, d.Name, d.Category, strings.Join(d.Capabilities, ","), quality)
	}
	return w.Flush()
}

func newToolsInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <ref>",
		Short: "Show a tool's full descriptor",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsInspect,
	}
}

func runToolsInspect(cmd *cobra.Command, args []string) error {
	ref := args[0]

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	desc, ok := reg.Get(ref)
	if !ok {
		return exitError(exitValidation, "tool not found: %s", ref)
	}
	return writeJSON(cmd.OutOrStdout(), desc)
}

func newToolsUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <ref>",
		Short: "Remove a tool from the registry",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsUnregister,
	}
}

func runToolsUnregister(cmd *cobra.Command, args []string) error {
	ref := args[0]

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	if err := reg.Unregister(cmd.Context(), ref); err != nil {
		return exitError(exitValidation, "%v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unregistered tool: %s\n", ref)
	return nil
}

func newToolsSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tools by name, description, and tags",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsSearch,
	}
	cmd.Flags().Int("limit", 10, "Maximum number of results")
	return cmd
}

func runToolsSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	return writeRanked(cmd, reg.Search(args[0], limit))
}

func newToolsDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover <capability>",
		Short: "List tools advertising a capability, best quality first",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsDiscover,
	}
	cmd.Flags().Float64("min-quality", 0, "Drop tools scoring below this quality")
	cmd.Flags().Int("limit", 0, "Maximum number of results")
	return cmd
}

func runToolsDiscover(cmd *cobra.Command, args []string) error {
	minQuality, _ := cmd.Flags().GetFloat64("min-quality")
	limit, _ := cmd.Flags().GetInt("limit")

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	return writeRanked(cmd, reg.DiscoverByCapability(args[0], registry.DiscoverOptions{
		MinQuality: minQuality,
		Limit:      limit,
	}))
}

func newToolsRecommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend tools for a task context",
		Args:  cobra.NoArgs,
		RunE:  runToolsRecommend,
	}
	cmd.Flags().String("category", "", "Preferred category")
	cmd.Flags().StringArray("tag", nil, "Context tag (repeatable)")
	cmd.Flags().StringArray("capability", nil, "Required capability (repeatable)")
	cmd.Flags().Int("limit", 5, "Maximum number of results")
	return cmd
}

func runToolsRecommend(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	tags, _ := cmd.Flags().GetStringArray("tag")
	capabilities, _ := cmd.Flags().GetStringArray("capability")
	limit, _ := cmd.Flags().GetInt("limit")

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	return writeRanked(cmd, reg.Recommend(registry.RecommendationContext{
		Category:             category,
		Tags:                 tags,
		RequiredCapabilities: capabilities,
	}, limit))
}

func newToolsMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <ref>",
		Short: "Show a tool's execution metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsMetrics,
	}
}

// metricsReport augments the raw counters with the derived scores the
// registry ranks by.
type metricsReport struct {
	Ref          string  `json:"ref"`
	SuccessRate  float64 `json:"success_rate"`
	QualityScore float64 `json:"quality_score"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`

	*metrics.ToolMetrics
}

func runToolsMetrics(cmd *cobra.Command, args []string) error {
	ref := args[0]

	reg, closeStore, err := openRegistry(cmd)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer closeStore()

	m, ok := reg.GetMetrics(ref)
	if !ok {
		return exitError(exitValidation, "tool not found: %s", ref)
	}

	avg, _ := m.AverageLatency()
	return writeJSON(cmd.OutOrStdout(), metricsReport{
		Ref:          ref,
		SuccessRate:  m.SuccessRate(),
		QualityScore: m.QualityScore(),
		AvgLatencyMS: avg,
		ToolMetrics:  m,
	})
}

func writeRanked(cmd *cobra.Command, ranked []registry.Ranked) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REF\tNAME\tSCORE\tDESCRIPTION")
	for _, r := range ranked {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\n",
			r.Descriptor.Ref, r.Descriptor.Name, r.Score, truncate(r.Descriptor.Description, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
