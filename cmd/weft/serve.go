package main

import (
	"github.com/aretw0/weft/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [image]",
	Short: "Drive rounds continuously and expose the engine over HTTP",
	Long: `Runs scheduling rounds in follow mode while serving health, metrics,
channel and process views, and a server-sent event stream of terminal process
transitions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := cli.ServeOptions{Config: cfg, Out: cmd.OutOrStdout()}
		if len(args) > 0 {
			opts.Image = args[0]
		}
		return cli.Serve(cmd.Context(), opts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().Int("max-rounds", 0, "Stop scheduling after this many rounds (0 means no limit)")
}
