package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/involucelate/chef/internal/table"
	"github.com/involucelate/chef/pkg/node"
	"github.com/involucelate/chef/pkg/nodemap"
)

var resolveCmd = newResolveCmd()

// newResolveCmd builds the resolve command. A constructor rather than a
// package variable with init flags, so tests get a command with fresh
// flag state.
func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <key>",
		Short: "Resolve a key against a table document",
		Long: `Resolve a key against a dispatch table document without running a
server.

The lookup context defaults to the local machine (os only) and can be
extended with --attr and --attributes-file. The winning value is
printed as JSON on stdout; --all lists every matching candidate in
priority order instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}

	cmd.Flags().String("table", "", "Path to the table document (required)")
	cmd.Flags().String("format", "", "Table document format (json or yaml, default from extension)")
	cmd.Flags().StringArray("attr", nil, "Context attribute as name=value (repeatable)")
	cmd.Flags().String("attributes-file", "", "JSON file with context attributes")
	cmd.Flags().Bool("canonical", false, "Only match registrations whose canonical flag equals this")
	cmd.Flags().Bool("all", false, "List every matching candidate instead of the best one")

	if err := cmd.MarkFlagRequired("table"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to mark table flag as required: %v\n", err)
	}
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	key := args[0]

	doc, err := loadTableDocument(cmd)
	if err != nil {
		return err
	}

	n, err := buildContext(cmd)
	if err != nil {
		return err
	}

	m := nodemap.New()
	doc.Apply(m)

	var opts []nodemap.LookupOption
	if cmd.Flags().Changed("canonical") {
		canonical, _ := cmd.Flags().GetBool("canonical")
		opts = append(opts, nodemap.WithCanonical(canonical))
	}

	all, _ := cmd.Flags().GetBool("all")
	if all {
		return printCandidates(cmd, m, n, key, opts)
	}

	value, found, err := m.Get(n, key, opts...)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no registration under %q matches the context", key)
	}

	out, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	cmd.Println(string(out))
	return nil
}

// loadTableDocument reads and decodes the --table document.
func loadTableDocument(cmd *cobra.Command) (*table.Document, error) {
	path, err := cmd.Flags().GetString("table")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read table document: %w", err)
	}

	format := table.DetectFormat(path)
	if name, _ := cmd.Flags().GetString("format"); name != "" {
		format, err = table.ParseFormat(name)
		if err != nil {
			return nil, err
		}
	}
	return table.Decode(data, format)
}

// buildContext assembles the lookup context: local detection, then the
// attributes file, then --attr overrides, later sources winning.
func buildContext(cmd *cobra.Command) (*node.Node, error) {
	n := node.Detect()

	if path, _ := cmd.Flags().GetString("attributes-file"); path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read attributes file: %w", err)
		}
		fromFile, err := node.FromJSON(data)
		if err != nil {
			return nil, err
		}
		// Keep the detected os unless the file overrides it.
		if _, ok := fromFile.Attribute(nodemap.AttrOS); !ok {
			fromFile.Set(nodemap.AttrOS, n.OS())
		}
		n = fromFile
	}

	attrs, _ := cmd.Flags().GetStringArray("attr")
	for _, attr := range attrs {
		name, value, ok := strings.Cut(attr, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --attr %q: expected name=value", attr)
		}
		n.Set(name, value)
	}
	return n, nil
}

// printCandidates renders every matching candidate in priority order.
func printCandidates(cmd *cobra.Command, m *nodemap.Map, n *node.Node, key string, opts []nodemap.LookupOption) error {
	matched, err := m.Select(n, key, opts...)
	if err != nil {
		return err
	}
	if len(matched) == 0 {
		return fmt.Errorf("no registration under %q matches the context", key)
	}

	t := tablewriter.NewTable(cmd.OutOrStdout())
	t.Header("VALUE", "SPECIFICITY", "CANONICAL", "FILTERS")
	for _, matcher := range matched {
		value, err := json.Marshal(matcher.Value())
		if err != nil {
			return fmt.Errorf("failed to encode value: %w", err)
		}
		canonical := ""
		if v, ok := matcher.Canonical(); ok {
			canonical = fmt.Sprintf("%t", v)
		}
		if err := t.Append(string(value),
			fmt.Sprintf("%d", matcher.Specificity()),
			canonical,
			formatFilters(matcher.Filters()),
		); err != nil {
			return err
		}
	}
	return t.Render()
}

// formatFilters renders the non-empty filter dimensions of a matcher.
func formatFilters(f nodemap.Filters) string {
	var parts []string
	for _, dim := range []struct {
		name   string
		tokens []string
	}{
		{nodemap.AttrPlatform, f.Platform},
		{nodemap.AttrPlatformVersion, f.PlatformVersion},
		{nodemap.AttrPlatformFamily, f.PlatformFamily},
		{nodemap.AttrOS, f.OS},
	} {
		if len(dim.tokens) > 0 {
			parts = append(parts, dim.name+"="+strings.Join(dim.tokens, ","))
		}
	}
	return strings.Join(parts, " ")
}
