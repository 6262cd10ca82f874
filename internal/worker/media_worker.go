package worker

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	imageSteps = []step{
		{20, "Fetching source...", 0.5},
		{60, "Resizing...", 1},
		{90, "Encoding image...", 1},
	}
	videoSteps = []step{
		{10, "Fetching source...", 1},
		{20, "Probing streams...", 0.5},
		{50, "Transcoding video...", 3},
		{75, "Transcoding video...", 3},
		{90, "Remuxing...", 1},
		{95, "Finalizing...", 0.5},
	}
	audioSteps = []step{
		{15, "Fetching source...", 0.5},
		{40, "Decoding audio...", 1},
		{70, "Resampling...", 1},
		{90, "Encoding audio...", 1},
	}
)

// MediaWorker executes image, video and audio processing jobs
type MediaWorker struct {
	stepDelay time.Duration
	cdnURL    string
	logger    zerolog.Logger
}

// NewMediaWorker creates a new media worker
func NewMediaWorker(stepDelay time.Duration, cdnURL string) *MediaWorker {
	return &MediaWorker{
		stepDelay: stepDelay,
		cdnURL:    cdnURL,
		logger:    log.With().Str("worker", "media").Logger(),
	}
}

// Executors returns one executor per processing kind
func (w *MediaWorker) Executors() map[jobs.Kind]jobs.Executor {
	return map[jobs.Kind]jobs.Executor{
		jobs.KindImage: jobs.Typed[model.ImageParams, *model.MediaResult](w.ProcessImage),
		jobs.KindVideo: jobs.Typed[model.VideoParams, *model.MediaResult](w.ProcessVideo),
		jobs.KindAudio: jobs.Typed[model.AudioParams, *model.MediaResult](w.ProcessAudio),
	}
}

// ProcessImage converts an image to the requested format and size
func (w *MediaWorker) ProcessImage(ctx context.Context, p model.ImageParams, progress jobs.ProgressFunc) (*model.MediaResult, error) {
	logger := w.logger.With().Str("kind", "image").Str("source", p.SourceURL).Logger()
	if err := runSteps(ctx, logger, w.stepDelay, imageSteps, progress); err != nil {
		return nil, err
	}

	quality := p.Quality
	if quality == 0 {
		quality = 85
	}
	width, height := p.Width, p.Height
	if width == 0 && height == 0 {
		width, height = 1920, 1080
	}
	// Keep a 16:9 aspect when only one side is given
	if width == 0 {
		width = height * 16 / 9
	}
	if height == 0 {
		height = width * 9 / 16
	}

	return w.result("images", p.SourceURL, string(p.Format), &model.MediaResult{
		Width:  width,
		Height: height,
		Size:   int64(width*height) * int64(quality) / 100,
	}), nil
}

// ProcessVideo transcodes a video to the requested codec and container
func (w *MediaWorker) ProcessVideo(ctx context.Context, p model.VideoParams, progress jobs.ProgressFunc) (*model.MediaResult, error) {
	logger := w.logger.With().Str("kind", "video").Str("source", p.SourceURL).Logger()
	if err := runSteps(ctx, logger, w.stepDelay, videoSteps, progress); err != nil {
		return nil, err
	}

	resolution := p.Resolution
	if resolution == "" {
		resolution = model.Resolution1080p
	}
	bitrate := p.Bitrate
	if bitrate == 0 {
		bitrate = 5000
	}
	width, height := resolution.Dimensions()
	duration := 60.0

	return w.result("videos", p.SourceURL, string(p.Container), &model.MediaResult{
		Width:    width,
		Height:   height,
		Duration: duration,
		Bitrate:  bitrate,
		Size:     int64(float64(bitrate) * 1000 / 8 * duration),
	}), nil
}

// ProcessAudio transcodes audio to the requested format
func (w *MediaWorker) ProcessAudio(ctx context.Context, p model.AudioParams, progress jobs.ProgressFunc) (*model.MediaResult, error) {
	logger := w.logger.With().Str("kind", "audio").Str("source", p.SourceURL).Logger()
	if err := runSteps(ctx, logger, w.stepDelay, audioSteps, progress); err != nil {
		return nil, err
	}

	bitrate := p.Bitrate
	if bitrate == 0 {
		bitrate = 192
	}
	if p.Format == model.AudioFormatWAV || p.Format == model.AudioFormatFLAC {
		// Lossless output ignores the requested bitrate
		bitrate = 1411
	}
	duration := 180.0

	return w.result("audio", p.SourceURL, string(p.Format), &model.MediaResult{
		Duration: duration,
		Bitrate:  bitrate,
		Size:     int64(float64(bitrate) * 1000 / 8 * duration),
	}), nil
}

func (w *MediaWorker) result(folder, source, format string, r *model.MediaResult) *model.MediaResult {
	r.ID = uuid.New().String()
	r.Format = format
	r.FileURL = fmt.Sprintf("%s/%s/%s/%s.%s", w.cdnURL, folder, r.ID, baseName(source), format)
	r.CreatedAt = time.Now()
	return r
}

// baseName returns the source file name without its extension
func baseName(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}
	name := path.Base(source)
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" || name == "." || name == "/" {
		return "output"
	}
	return name
}
