package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topical/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server exposing the pipeline",
	Long: `Run a Model Context Protocol (MCP) server that exposes the pipeline as tools.

The server provides three tools:
- analyze_video: run the resumable pipeline for a video
- get_segments: return the topic segments of an analyzed video as JSON
- pipeline_status: inspect the pipeline state store

Transport options:
- stdio (default): standard MCP transport via stdin/stdout
- http: HTTP transport on the specified port`,
	Example: `  # Run MCP server with stdio transport
  topical mcp

  # Run MCP server with HTTP transport on port 8080
  topical mcp --transport=http --port=8080`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdio transport shares stdout with the protocol
		config.Quiet = true
		config.Verbose = false
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		app, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		server := internal.NewMCPServer(app)
		if transport == "http" && !config.Quiet {
			fmt.Printf("Starting topical MCP server on HTTP port %d...\n", port)
		}
		return server.Start(cmd.Context(), transport, port)
	},
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	rootCmd.AddCommand(mcpCmd)
}
