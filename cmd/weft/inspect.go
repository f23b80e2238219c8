package main

import (
	"github.com/aretw0/weft/internal/cli"
	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Describe a process image without running it",
	Long:  `Loads and assembles the image, then prints its processes, seeded values and disassembled programs, or a Mermaid diagram (graph TD) of them.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		plain, _ := cmd.Flags().GetBool("plain")
		return cli.Inspect(cli.InspectOptions{
			Config:  cfg,
			Image:   args[0],
			Mermaid: mermaid,
			Plain:   plain,
			Out:     cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("mermaid", false, "Print a Mermaid diagram instead of the report")
	inspectCmd.Flags().Bool("plain", false, "Render the report without colors")
}
