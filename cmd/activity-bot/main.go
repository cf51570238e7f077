package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "activity-bot",
		Short: "Activity Bot - simulated repository activity",
		Long: `Activity Bot periodically produces a branch, commit, pull request and
merge against a repository, throttled to a randomized daily quota, so
that activity graphs show continuous engineering-like activity.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
