package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

func (cli *commandLine) ingest(ctx context.Context, domain, path, filename, mode string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer func() { _ = f.Close() }()

	if filename = core.CleanString(filename); filename == "" {
		filename = filepath.Base(path)
	}
	res, err := cli.svc.Ingest(ctx, ingest.Request{
		Domain:     domain,
		Source:     f,
		SourceName: filepath.Base(path),
		Filename:   filename,
		Mode:       ingest.Mode(core.CleanString(mode, true /* lower */)),
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cli.out, "%s %d rows into %q (%s, run %s)\n",
		cli.colored(color.FgGreen, "ingested"), res.RowCount, res.Table, res.Mode, res.RunID)

	table := cli.newTable("Column", "Header")
	for _, col := range res.Columns {
		table.Append([]string{col.Name, col.Label})
	}
	table.Render()
	return nil
}

func (cli *commandLine) uploads(ctx context.Context, filter ingest.UploadLogFilter, ordering []core.DBOrdering) error {
	if err := filter.Validate(cli.validate); err != nil {
		return errors.Wrap(err, "invalid filter")
	}
	logs, err := cli.svc.QueryUploadLogs(ctx, filter, ordering)
	if err != nil {
		return err
	}

	table := cli.newTable("Started", "Domain", "Table", "File", "Mode", "Status", "Rows", "Error")
	for _, log := range logs {
		table.Append([]string{
			log.StartedAt.Local().Format(time.RFC822),
			log.Domain,
			log.TableName,
			log.FileName,
			log.Mode,
			cli.status(log.Status),
			strconv.Itoa(log.RowsIngested),
			log.Error.String,
		})
	}
	table.Render()
	return nil
}

func (cli *commandLine) domains() {
	table := cli.newTable("Domain", "Table", "Mode", "Kind", "Partitioned")
	for _, d := range cli.svc.Domains() {
		table.Append([]string{d.Name, d.Table, string(d.Mode), string(d.Kind), strconv.FormatBool(d.Partitioned)})
	}
	table.Render()
}

func (cli *commandLine) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func (cli *commandLine) status(status string) string {
	switch status {
	case ingest.StatusSuccess:
		return cli.colored(color.FgGreen, status)
	case ingest.StatusFailure:
		return cli.colored(color.FgRed, status)
	default:
		return cli.colored(color.FgYellow, status)
	}
}

func (cli *commandLine) colored(attr color.Attribute, s string) string {
	c := color.New(attr)
	if cli.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(strings.TrimSpace(s))
}
