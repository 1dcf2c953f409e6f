package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/feed"
)

func (c *Controller) initAnalyticsRoutes() {
	c.Group.GET("/analytics", c.GetAnalytics)
}

// analyticsResponse carries one page of filtered records plus the
// distributions computed over the whole filtered set.
type analyticsResponse struct {
	Records                 []detection.DetectionRecord   `json:"records"`
	Page                    int                           `json:"page"`
	TotalPages              int                           `json:"total_pages"`
	TotalRecords            int                           `json:"total_records"`
	PlatformDistribution    []detection.AggregationBucket `json:"platform_distribution"`
	StatusDistribution      []detection.AggregationBucket `json:"status_distribution"`
	MediaFormatDistribution []detection.AggregationBucket `json:"media_format_distribution"`
	PlatformRanking         []detection.AggregationBucket `json:"platform_ranking"`
}

// GetAnalytics filters the record log by the query criteria and returns one
// page of records together with the aggregate distributions.
func (c *Controller) GetAnalytics(ctx echo.Context) error {
	criteria, page, pageSize, err := c.parseCriteria(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid filter criteria", http.StatusBadRequest)
	}

	log, err := c.buildRecordLog(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load detection records", http.StatusBadGateway)
	}

	result := c.Engine.Process(log, criteria, page, pageSize)

	return ctx.JSON(http.StatusOK, analyticsResponse{
		Records:                 result.PageItems,
		Page:                    result.Page,
		TotalPages:              result.TotalPages,
		TotalRecords:            len(result.Filtered),
		PlatformDistribution:    result.PlatformBuckets,
		StatusDistribution:      result.StatusBuckets,
		MediaFormatDistribution: result.MediaFormatBuckets,
		PlatformRanking:         result.RankingBuckets,
	})
}

// parseCriteria reads the filter and pagination query parameters. Unset
// values fall back to the defaults used by the dashboard.
func (c *Controller) parseCriteria(ctx echo.Context) (criteria detection.FilterCriteria, page, pageSize int, err error) {
	criteria = detection.FilterCriteria{
		TimeFrame:   detection.TimeFrame(ctx.QueryParam("time_frame")),
		Platform:    ctx.QueryParam("platform"),
		MediaFormat: ctx.QueryParam("media_format"),
	}
	if err = criteria.Validate(); err != nil {
		return criteria, 0, 0, err
	}

	page = 1
	if raw := ctx.QueryParam("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			return criteria, 0, 0, err
		}
	}

	pageSize = c.Settings.Dashboard.PageSize
	if raw := ctx.QueryParam("page_size"); raw != "" {
		if pageSize, err = strconv.Atoi(raw); err != nil {
			return criteria, 0, 0, err
		}
	}
	return criteria, page, pageSize, nil
}

// buildRecordLog assembles the full detection log: live feed records and
// locally stored submissions merged with the bundled seed set. A feed
// outage degrades to local data rather than failing the request.
func (c *Controller) buildRecordLog(ctx echo.Context) ([]detection.DetectionRecord, error) {
	var live []detection.DetectionRecord

	fetched, err := c.Feed.Fetch(ctx.Request().Context())
	if err != nil {
		c.apiLogger.Warn("feed unavailable, serving local records only", "error", err)
	} else {
		live = fetched
	}

	if c.DS != nil {
		stored, err := c.DS.GetAll()
		if err != nil {
			return nil, err
		}
		live = append(live, stored...)
	}

	return c.Feed.Merge(live, feed.SeedRecords()), nil
}
