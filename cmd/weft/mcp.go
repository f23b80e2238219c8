package main

import (
	"github.com/aretw0/weft/internal/cli"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp [image]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the weft engine as an MCP Server, so agents can peek and tell
channels, run rounds and list processes as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := cli.MCPOptions{Config: cfg}
		if len(args) > 0 {
			opts.Image = args[0]
		}
		opts.Transport, _ = cmd.Flags().GetString("transport")
		opts.Port, _ = cmd.Flags().GetInt("port")
		opts.Follow, _ = cmd.Flags().GetBool("follow")
		return cli.ServeMCP(cmd.Context(), opts)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	mcpCmd.Flags().BoolP("follow", "f", false, "Drive rounds in the background")
}
