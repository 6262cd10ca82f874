package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var renderSteps = []step{
	{10, "Loading project...", 1},
	{25, "Preparing timeline...", 1.5},
	{45, "Rendering frames...", 3},
	{65, "Rendering frames...", 3},
	{80, "Encoding video...", 2},
	{90, "Muxing audio...", 1},
	{95, "Finalizing...", 0.5},
}

// bytes per second of output at each quality preset
var renderBitrates = map[model.Quality]int64{
	model.QualityLow:    250_000,
	model.QualityMedium: 625_000,
	model.QualityHigh:   1_250_000,
}

// RenderWorker executes render jobs
type RenderWorker struct {
	stepDelay time.Duration
	cdnURL    string
	logger    zerolog.Logger
}

// NewRenderWorker creates a new render worker
func NewRenderWorker(stepDelay time.Duration, cdnURL string) *RenderWorker {
	return &RenderWorker{
		stepDelay: stepDelay,
		cdnURL:    cdnURL,
		logger:    log.With().Str("worker", "render").Logger(),
	}
}

// Accepts reports whether params is a render request
func (w *RenderWorker) Accepts(params any) bool {
	_, ok := params.(model.RenderParams)
	return ok
}

// Execute renders the project and returns a *model.RenderResult
func (w *RenderWorker) Execute(ctx context.Context, params any, progress jobs.ProgressFunc) (any, error) {
	payload, ok := params.(model.RenderParams)
	if !ok {
		return nil, fmt.Errorf("invalid render payload %T", params)
	}

	logger := w.logger.With().Str("project_id", payload.ProjectID).Logger()
	logger.Info().Msg("render started")

	if err := runSteps(ctx, logger, w.stepDelay, renderSteps, progress); err != nil {
		logger.Info().Err(err).Msg("render stopped")
		return nil, err
	}

	return w.generateResult(&payload), nil
}

func (w *RenderWorker) generateResult(payload *model.RenderParams) *model.RenderResult {
	width, height := payload.Resolution.Dimensions()
	fps := payload.FPS
	if fps == 0 {
		fps = 30
	}
	id := uuid.New().String()

	return &model.RenderResult{
		ID:         id,
		FileURL:    fmt.Sprintf("%s/renders/%s/%s.%s", w.cdnURL, payload.ProjectID, id, payload.Format),
		Format:     payload.Format,
		Resolution: payload.Resolution,
		Width:      width,
		Height:     height,
		FPS:        fps,
		Duration:   float64(payload.Duration),
		Size:       renderBitrates[payload.Quality] * int64(payload.Duration),
		CreatedAt:  time.Now(),
	}
}
