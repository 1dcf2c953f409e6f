package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deeptracer/deeptracer-go/internal/classifier"
	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/errors"
)

// maxUploadBytes bounds in-memory buffering of uploaded images.
const maxUploadBytes = 32 << 20

func (c *Controller) initDetectRoutes() {
	c.Group.POST("/detect", c.Detect)
}

// detectURLRequest is the JSON body accepted when no file is uploaded.
type detectURLRequest struct {
	URL string `json:"url" form:"url"`
}

// matchDTO is one reverse-search hit as rendered to clients.
type matchDTO struct {
	ID          int    `json:"id"`
	SourceLabel string `json:"source_label"`
	SourceURL   string `json:"source_url"`
	ImageURL    string `json:"image_url"`
	Reported    bool   `json:"reported"`
}

// detectResponse is the result of one submission.
type detectResponse struct {
	IsDeepfake bool       `json:"is_deepfake"`
	Confidence float64    `json:"confidence"`
	Results    []matchDTO `json:"results"`
	Seq        uint64     `json:"seq"`
	Stale      bool       `json:"stale"`
}

// Detect accepts an image (multipart field "image") or a JSON body with a
// URL, classifies it and installs the outcome as the current result set.
// An outcome superseded by a newer submission is returned to its caller but
// never installed.
func (c *Controller) Detect(ctx echo.Context) error {
	src, err := c.imageSource(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid submission", http.StatusBadRequest)
	}

	outcome, err := c.Classifier.Submit(ctx.Request().Context(), src)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrInvalidInput):
			return c.HandleError(ctx, err, "No image or URL provided", http.StatusBadRequest)
		case errors.Is(err, errors.ErrService):
			return c.HandleError(ctx, err, "Classification service reported an error", http.StatusBadGateway)
		case errors.Is(err, errors.ErrNetwork):
			return c.HandleError(ctx, err, "Classification service unreachable", http.StatusBadGateway)
		default:
			return c.HandleError(ctx, err, "Classification failed", http.StatusInternalServerError)
		}
	}

	stale := !c.installOutcome(outcome)
	if stale {
		c.apiLogger.Info("discarding stale submission outcome", "seq", outcome.Seq)
	}

	return ctx.JSON(http.StatusOK, detectResponse{
		IsDeepfake: outcome.IsDeepfake,
		Confidence: outcome.Confidence,
		Results:    c.matchDTOs(outcome.Matches),
		Seq:        outcome.Seq,
		Stale:      stale,
	})
}

// imageSource extracts the submission input from the request: an uploaded
// file takes precedence over a URL body.
func (c *Controller) imageSource(ctx echo.Context) (classifier.ImageSource, error) {
	if file, err := ctx.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return classifier.ImageSource{}, err
		}
		defer func() { _ = f.Close() }()

		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return classifier.ImageSource{}, err
		}
		return classifier.ImageSource{Data: data, Filename: file.Filename}, nil
	}

	var req detectURLRequest
	if err := ctx.Bind(&req); err == nil && req.URL != "" {
		return classifier.ImageSource{URL: req.URL}, nil
	}

	// Neither input present: let the coordinator produce the canonical
	// invalid-input error so all entry points report it identically.
	return classifier.ImageSource{}, nil
}

// installOutcome makes the outcome the current result set unless a newer
// submission has been issued since. Reports whether it was installed; a new
// result set clears the triage ledger.
func (c *Controller) installOutcome(outcome *detection.Outcome) bool {
	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()

	if !c.Classifier.IsLatest(outcome) {
		return false
	}
	c.currentResult = outcome
	c.Ledger.Reset()
	return true
}

func (c *Controller) matchDTOs(matches []detection.MatchResult) []matchDTO {
	dtos := make([]matchDTO, 0, len(matches))
	for _, m := range matches {
		dtos = append(dtos, matchDTO{
			ID:          m.ID,
			SourceLabel: m.SourceLabel,
			SourceURL:   m.SourceURL,
			ImageURL:    m.ImageURL,
			Reported:    c.Ledger.Reported(m.ID),
		})
	}
	return dtos
}
