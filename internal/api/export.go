package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deeptracer/deeptracer-go/internal/export"
)

func (c *Controller) initExportRoutes() {
	c.Group.GET("/export/csv", c.ExportCSV)
	c.Group.GET("/export/report", c.ExportReport)
}

// ExportCSV streams the currently filtered record set as a CSV download.
// The same filter parameters as /analytics apply; pagination does not.
func (c *Controller) ExportCSV(ctx echo.Context) error {
	criteria, _, _, err := c.parseCriteria(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid filter criteria", http.StatusBadRequest)
	}

	log, err := c.buildRecordLog(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load detection records", http.StatusBadGateway)
	}

	result := c.Engine.Process(log, criteria, 1, len(log)+1)
	body, err := export.ToCSV(result.Filtered)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build CSV export", http.StatusInternalServerError)
	}

	c.recordExport("csv")
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="detections.csv"`)
	return ctx.Blob(http.StatusOK, "text/csv", []byte(body))
}

// ExportReport returns the filtered record set as a printable text table.
func (c *Controller) ExportReport(ctx echo.Context) error {
	criteria, _, _, err := c.parseCriteria(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid filter criteria", http.StatusBadRequest)
	}

	log, err := c.buildRecordLog(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load detection records", http.StatusBadGateway)
	}

	result := c.Engine.Process(log, criteria, 1, len(log)+1)
	body, err := export.ToTable(result.Filtered)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build report", http.StatusInternalServerError)
	}

	c.recordExport("report")
	return ctx.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

func (c *Controller) recordExport(format string) {
	if c.metrics != nil && c.metrics.Pipeline != nil {
		c.metrics.Pipeline.RecordExport(format)
	}
}
