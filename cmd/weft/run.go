package main

import (
	"github.com/aretw0/weft/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [image]",
	Short: "Run a process image until it goes quiescent",
	Long: `Deposits the image into the configured tuple space and runs scheduling
rounds until no process is runnable. Without an image it resumes whatever the
store already holds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := cli.RunOptions{Config: cfg, Out: cmd.OutOrStdout()}
		if len(args) > 0 {
			opts.Image = args[0]
		}
		opts.Follow, _ = cmd.Flags().GetBool("follow")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")
		return cli.Run(cmd.Context(), opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("follow", "f", false, "Keep polling the store after quiescence")
	runCmd.Flags().BoolP("quiet", "q", false, "Print only the final process states")
	runCmd.Flags().Int("max-rounds", 0, "Stop after this many rounds (0 means no limit)")
	runCmd.Flags().Duration("timeout", 0, "Bound the whole run (0 means no limit)")
}
