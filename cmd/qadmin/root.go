package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/planwise/planwise-api/internal/queue"
)

var rootCmd = &cobra.Command{
	Use:   "qadmin",
	Short: "Administer the task pipeline work queue",
}

// Execute wires the subcommands and runs the CLI.
func Execute(q *queue.Queue) {
	rootCmd.AddCommand(DlqCmd(q))

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
