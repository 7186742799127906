package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "nexus",
		Short: "EBICS/ISO 20022 banking middleware",
	}

	root.AddCommand(
		newServeCmd(),
		newResetTablesCmd(),
		newSuperuserCmd(),
		newGenPainCmd(),
		newParseCamtCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
