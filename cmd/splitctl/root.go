package main

import (
	"sync"

	"github.com/saldanamusic/splitsheets/internal/config"
	"github.com/saldanamusic/splitsheets/internal/database"
	"github.com/saldanamusic/splitsheets/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type commandContext struct {
	verbose bool

	once   sync.Once
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	dbErr  error
	closed bool
}

func (c *commandContext) open() (*gorm.DB, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.dbErr = err
			return
		}
		level := "warn"
		if c.verbose {
			level = "debug"
		}
		log, err := logging.New(cfg.IsDevelopment(), level)
		if err != nil {
			c.dbErr = err
			return
		}
		db, err := database.Connect(cfg, log)
		if err != nil {
			c.dbErr = err
			return
		}
		c.cfg, c.log, c.db = cfg, log, db
	})
	return c.db, c.dbErr
}

func (c *commandContext) close() {
	if c.db != nil && !c.closed {
		_ = database.Close(c.db)
		c.closed = true
	}
	if c.log != nil {
		_ = c.log.Sync()
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "splitctl",
		Short:         "Operate the Saldaña Music split sheet service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log database activity")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newSchemaCommand(ctx))
	rootCmd.AddCommand(newSheetsCommand(ctx))
	rootCmd.AddCommand(newOutboxCommand(ctx))
	rootCmd.AddCommand(newOTPCommand(ctx))
	rootCmd.AddCommand(newHashCommand())

	return rootCmd
}
