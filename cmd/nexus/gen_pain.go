package main

import (
	"fmt"
	"os"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/isoxml"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newGenPainCmd() *cobra.Command {
	var (
		dialect string
		iban    string
		name    string
		amount  string
		subject string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "gen-pain",
		Short: "Render a standalone pain.001 credit transfer document to stdout or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ebicsDialect := domain.EbicsDialectH005
			if dialect == "H004" {
				ebicsDialect = domain.EbicsDialectH004
			}

			now := time.Now().UTC()
			initiation := &domain.PaymentInitiation{
				ID:                   uuid.New(),
				PreparedAt:           now,
				Amount:               amount,
				Currency:             "EUR",
				Subject:              subject,
				Creditor:             domain.Creditor{IBAN: iban, Name: name},
				EndToEndID:           "NOTPROVIDED",
				MessageID:            fmt.Sprintf("NEXUS-%d", now.Unix()),
				PaymentInformationID: fmt.Sprintf("NEXUS-PMT-%d", now.Unix()),
				InstructionID:        fmt.Sprintf("NEXUS-INSTR-%d", now.Unix()),
			}

			debtor := domain.BankAccount{Label: "debtor"}

			doc, err := isoxml.BuildPain001(ebicsDialect, initiation, debtor)
			if err != nil {
				return fmt.Errorf("building pain.001: %w", err)
			}

			if out == "" {
				_, err = os.Stdout.Write(doc)
				return err
			}
			return os.WriteFile(out, doc, 0644)
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", "H005", "EBICS dialect (H004 or H005)")
	cmd.Flags().StringVar(&iban, "iban", "", "creditor IBAN")
	cmd.Flags().StringVar(&name, "name", "", "creditor name")
	cmd.Flags().StringVar(&amount, "amount", "0.00", "amount as a decimal string")
	cmd.Flags().StringVar(&subject, "subject", "", "remittance information")
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	_ = cmd.MarkFlagRequired("iban")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
