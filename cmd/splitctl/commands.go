package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/saldanamusic/splitsheets/internal/auth"
	"github.com/saldanamusic/splitsheets/internal/database"
	"github.com/saldanamusic/splitsheets/internal/document"
	"github.com/saldanamusic/splitsheets/internal/mailer"
	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/services"
	"github.com/saldanamusic/splitsheets/internal/workers"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.open()
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables on %s\n", len(database.Models()), ctx.cfg.DBType)
			return nil
		},
	}
}

func newSchemaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the columns of every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.open()
			if err != nil {
				return err
			}
			tables, err := db.Migrator().GetTables()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range tables {
				columns, err := db.Migrator().ColumnTypes(name)
				if err != nil {
					return fmt.Errorf("failed to inspect %s: %w", name, err)
				}
				rows := make([][]string, 0, len(columns))
				for _, col := range columns {
					nullable, _ := col.Nullable()
					primary, _ := col.PrimaryKey()
					rows = append(rows, []string{col.Name(), col.DatabaseTypeName(), yesNo(nullable), yesNo(primary)})
				}
				fmt.Fprintf(out, "\n%s\n", name)
				fmt.Fprintln(out, renderTable([]string{"Column", "Type", "Null", "PK"}, rows, nil))
			}
			return nil
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return ""
}

func newSheetsCommand(ctx *commandContext) *cobra.Command {
	sheets := &cobra.Command{
		Use:   "sheets",
		Short: "Inspect split sheets",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List split sheets with their signing progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.open()
			if err != nil {
				return err
			}
			query := db.Preload("Collaborators").Order("created_at DESC")
			if status != "" {
				query = query.Where("status = ?", strings.ToUpper(status))
			}
			var rows []models.SplitSheet
			if err := query.Find(&rows).Error; err != nil {
				return err
			}

			out := make([][]string, 0, len(rows))
			for _, s := range rows {
				signed := 0
				for _, c := range s.Collaborators {
					if c.HasSigned {
						signed++
					}
				}
				out = append(out, []string{
					s.ID,
					s.Title,
					string(s.Status),
					fmt.Sprintf("%d/%d", signed, len(s.Collaborators)),
					s.CreatedAt.Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Signed", "Created"},
				out,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "Only show sheets in this status (DRAFT, PENDING_SIGNATURES, COMPLETED)")

	sheets.AddCommand(list)
	return sheets
}

func newOutboxCommand(ctx *commandContext) *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Manage queued notifications",
	}

	outbox.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Count notifications by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.open()
			if err != nil {
				return err
			}
			var counts []struct {
				Status string
				Total  int64
			}
			err = db.Model(&models.Notification{}).
				Select("status, COUNT(*) AS total").
				Group("status").
				Order("status").
				Scan(&counts).Error
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(counts))
			for _, c := range counts {
				rows = append(rows, []string{c.Status, strconv.FormatInt(c.Total, 10)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	})

	outbox.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Deliver every notification that is due now",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.open()
			if err != nil {
				return err
			}
			dispatcher := workers.NewOutboxDispatcher(db, mailer.NewSender(ctx.cfg, ctx.log), ctx.log,
				ctx.cfg.OutboxInterval, ctx.cfg.OutboxMaxAttempts)
			stats, err := dispatcher.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d, retrying %d, failed %d\n", stats.Sent, stats.Retried, stats.Failed)
			return nil
		},
	})

	return outbox
}

func newOTPCommand(ctx *commandContext) *cobra.Command {
	otp := &cobra.Command{
		Use:   "otp",
		Short: "Manage password reset codes",
	}
	otp.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired reset codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.open()
			if err != nil {
				return err
			}
			log := ctx.log
			svc := services.NewAuthService(db, log, auth.NewJWTManager(ctx.cfg.JWTSecret, ctx.cfg.JWTTTL),
				services.NewNotifier(db, log), services.NewAuditService(db, log), ctx.cfg.OTPTTL)
			removed, err := svc.SweepOTP(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired codes\n", removed)
			return nil
		},
	})
	return otp
}

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file.pdf>",
		Short: "Print the SHA-256 document hash of a PDF",
		Long:  "Print the SHA-256 hash of a downloaded PDF so it can be compared with a completed sheet's documentHash.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), document.Hash(data))
			return nil
		},
	}
}
