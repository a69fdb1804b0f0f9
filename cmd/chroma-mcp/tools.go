package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	chromamcp "github.com/fyrsmithlabs/chroma-mcp/internal/mcp"
)

func newToolsCmd() *cobra.Command {
	var (
		search     string
		category   string
		showSchema bool
		namesOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		Long: `List the MCP tools this server exposes.

Examples:
  # List every tool
  chroma-mcp tools

  # Find tools by name, description or keyword
  chroma-mcp tools --search query

  # List the document tools by name only
  chroma-mcp tools --category document --names

  # Print a tool's input schema
  chroma-mcp tools --search chroma_add_documents --schema`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if namesOnly && search == "" && category == "" {
				for _, name := range a.registry.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			tools := a.registry.List()
			if category != "" {
				tools = a.registry.ListByCategory(chromamcp.ToolCategory(category))
			}
			if search != "" {
				keep := make(map[string]bool, len(tools))
				for _, t := range tools {
					keep[t.Name] = true
				}
				tools = tools[:0]
				for _, res := range a.registry.Search(search) {
					if keep[res.Tool.Name] {
						tools = append(tools, res.Tool)
					}
				}
			}
			if namesOnly {
				for _, t := range tools {
					fmt.Fprintln(cmd.OutOrStdout(), t.Name)
				}
				return nil
			}
			return printTools(cmd, tools, showSchema)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter tools by substring or regex")
	cmd.Flags().StringVar(&category, "category", "", "only list tools in this category (collection, document)")
	cmd.Flags().BoolVar(&showSchema, "schema", false, "print input schemas as JSON")
	cmd.Flags().BoolVar(&namesOnly, "names", false, "print tool names only")
	return cmd
}

func printTools(cmd *cobra.Command, tools []*chromamcp.Tool, showSchema bool) error {
	out := cmd.OutOrStdout()
	if showSchema {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Category, t.Description)
	}
	return w.Flush()
}

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Call one tool and print its result",
		Long: `Call a tool directly against the configured store and print the result text.

Examples:
  chroma-mcp call chroma_create_collection '{"collection_name": "notes"}'
  chroma-mcp --client-type persistent --data-dir ./data call chroma_get_collection_count '{"collection_name": "notes"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
					return fmt.Errorf("invalid JSON arguments: %w", err)
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			content, err := a.registry.CallTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			for _, c := range content {
				fmt.Fprintln(cmd.OutOrStdout(), c.Text)
			}
			return nil
		},
	}
}
