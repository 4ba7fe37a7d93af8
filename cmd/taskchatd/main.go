package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskorbit/taskchat/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskchatd",
		Short: "Taskchat daemon and CLI",
		Long:  "Taskchat daemon for running the chat API server and managing the vector collection",
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.IndexCmd())
	rootCmd.AddCommand(cli.CollectionCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
