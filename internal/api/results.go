package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
)

func (c *Controller) initResultRoutes() {
	c.Group.GET("/results", c.GetResults)
	c.Group.POST("/results/:id/report", c.ReportResult)
	c.Group.POST("/results/report-all", c.ReportAllResults)
}

// resultsResponse lists the visible reverse-search hits of the current
// result set. Reported hits are hidden, not deleted.
type resultsResponse struct {
	Results  []matchDTO `json:"results"`
	Total    int        `json:"total"`
	Reported int        `json:"reported"`
}

// reportResponse describes the effect of a report operation.
type reportResponse struct {
	NewlyReported int `json:"newly_reported"`
	Remaining     int `json:"remaining"`
}

// GetResults returns the matches of the current result set that have not
// been reported, in their original order.
func (c *Controller) GetResults(ctx echo.Context) error {
	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()

	matches := c.currentMatches()
	visible := c.Ledger.Visible(matches)

	return ctx.JSON(http.StatusOK, resultsResponse{
		Results:  c.matchDTOs(visible),
		Total:    len(matches),
		Reported: c.Ledger.Len(),
	})
}

// ReportResult marks one match as reported. Reporting an already-reported
// or unknown id is a no-op.
func (c *Controller) ReportResult(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid result id", http.StatusBadRequest)
	}

	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()

	matches := c.currentMatches()
	if !containsMatch(matches, id) {
		return c.HandleError(ctx,
			errors.NewStd("result not in current set"),
			"Unknown result id", http.StatusNotFound)
	}

	newly := 0
	if !c.Ledger.Reported(id) {
		newly = 1
	}
	c.Ledger.Report(id)
	c.recordReports("report", newly)

	return ctx.JSON(http.StatusOK, reportResponse{
		NewlyReported: newly,
		Remaining:     len(c.Ledger.Visible(matches)),
	})
}

// ReportAllResults reports every currently visible match and returns how
// many were newly reported. Running it twice reports zero the second time.
func (c *Controller) ReportAllResults(ctx echo.Context) error {
	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()

	matches := c.currentMatches()
	visible := c.Ledger.Visible(matches)
	newly := c.Ledger.ReportAll(visible)
	c.recordReports("report_all", newly)

	return ctx.JSON(http.StatusOK, reportResponse{
		NewlyReported: newly,
		Remaining:     0,
	})
}

// currentMatches returns the matches of the installed result set. Callers
// must hold resultMutex.
func (c *Controller) currentMatches() []detection.MatchResult {
	if c.currentResult == nil {
		return nil
	}
	return c.currentResult.Matches
}

func containsMatch(matches []detection.MatchResult, id int) bool {
	for i := range matches {
		if matches[i].ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) recordReports(operation string, count int) {
	if c.metrics != nil && c.metrics.Pipeline != nil {
		c.metrics.Pipeline.RecordReports(operation, count)
	}
}
