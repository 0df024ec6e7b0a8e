package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

type UploadResponse struct {
	Success bool                `json:"success"`
	RunID   string              `json:"run_id"`
	Table   string              `json:"table"`
	Mode    ingest.Mode         `json:"mode"`
	Columns []ingest.ColumnSpec `json:"columns"`
	Rows    int                 `json:"rows"`
}

type ingestApi struct {
	svc      ingest.ServiceInterface
	validate *validator.Validate
}

func registerIngestAPI(g *echo.Group, svc ingest.ServiceInterface, validate *validator.Validate) {
	api := ingestApi{
		svc:      svc,
		validate: validate,
	}

	g.GET("/domains", api.queryDomains)
	g.GET("/uploads", api.queryUploads)
	g.POST("/uploads/:domain", api.upload)
	g.GET("/tables/:domain", api.readTable)
}

// Handlers

func (api *ingestApi) queryDomains(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Domains())
}

func (api *ingestApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return ingest.NoFileError()
		}
		return errors.Wrap(err, "reading uploaded file")
	}
	if fh.Size == 0 {
		return ingest.NoDataError()
	}

	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = file.Close() }()

	filename := core.CleanString(ctx.FormValue("filename"))
	if filename == "" {
		filename = fh.Filename
	}
	res, err := api.svc.Ingest(ctx.Request().Context(), ingest.Request{
		Domain:     ctx.Param("domain"),
		Source:     file,
		SourceName: fh.Filename,
		Filename:   filename,
		Mode:       ingest.Mode(core.CleanString(ctx.FormValue("mode"), true /* lower */)),
	})
	if err != nil {
		return errors.Wrap(err, "ingesting file")
	}

	return ctx.JSON(http.StatusOK, UploadResponse{
		Success: true,
		RunID:   res.RunID,
		Table:   res.Table,
		Mode:    res.Mode,
		Columns: res.Columns,
		Rows:    res.RowCount,
	})
}

func (api *ingestApi) queryUploads(ctx echo.Context) error {
	filter := new(ingest.UploadLogFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to UploadLogFilter")
	}
	if err := filter.Validate(api.validate); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	logs, err := api.svc.QueryUploadLogs(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying upload logs")
	}
	if logs == nil {
		logs = []ingest.UploadLog{}
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *ingestApi) readTable(ctx echo.Context) error {
	data, err := api.svc.ReadTable(ctx.Request().Context(), ctx.Param("domain"), ctx.QueryParam("filename"))
	if err != nil {
		return errors.Wrap(err, "reading table")
	}
	return ctx.JSON(http.StatusOK, data)
}
