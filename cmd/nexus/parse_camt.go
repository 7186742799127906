package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/isoxml"

	"github.com/spf13/cobra"
)

func newParseCamtCmd() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "parse-camt FILE",
		Short: "Parse a camt.052/053/054 document and print its canonical entries as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			fetchLevel, err := parseFetchLevel(level)
			if err != nil {
				return err
			}

			svc := isoxml.NewService()
			doc, err := svc.ParseCamt(fetchLevel, raw)
			if err != nil {
				return fmt.Errorf("parsing camt document: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	cmd.Flags().StringVar(&level, "level", "statement", "camt family: report, statement or notification")
	return cmd
}

func parseFetchLevel(level string) (domain.FetchLevel, error) {
	switch level {
	case "report":
		return domain.FetchLevelReport, nil
	case "statement":
		return domain.FetchLevelStatement, nil
	case "notification":
		return domain.FetchLevelNotification, nil
	default:
		return "", fmt.Errorf("unknown camt level %q", level)
	}
}
