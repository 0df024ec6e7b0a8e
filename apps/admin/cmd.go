package main

import (
	"context"
	"database/sql"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sql.DB // nil with the in-memory store
	svc      ingest.ServiceInterface
	validate *validator.Validate
	out      io.Writer
	color    bool
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	return root.Execute()
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Campusgrid administration",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.AddCommand(
		cli.migrateCmd(),
		cli.ingestCmd(),
		cli.uploadsCmd(),
		cli.domainsCmd(),
	)
	return root
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) ingestCmd() *cobra.Command {
	var filename, mode string
	cmd := &cobra.Command{
		Use:   "ingest DOMAIN FILE",
		Short: "Ingest a local .xlsx or .csv file into the table of DOMAIN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ingest(context.Background(), args[0], args[1], filename, mode)
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "", "term label of partitioned domains (defaults to the file name)")
	cmd.Flags().StringVar(&mode, "mode", "", "overrides the domain mode (ensure|replace)")
	return cmd
}

func (cli *commandLine) uploadsCmd() *cobra.Command {
	var (
		filter   ingest.UploadLogFilter
		ordering string
	)
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List the upload history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.uploads(context.Background(), filter, core.ParseOrdering(ordering))
		},
	}
	cmd.Flags().StringVar(&filter.Domain, "domain", "", "only list uploads of this domain")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only list uploads with this status (pending|success|failure)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum number of uploads listed")
	cmd.Flags().StringVar(&ordering, "ordering", "-started_at", "comma-separated fields, prefixed with - for descending order")
	return cmd
}

func (cli *commandLine) domainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the upload domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli.domains()
			return nil
		},
	}
}
