package model

import "time"

// ImageParams describes an image transcoding job
type ImageParams struct {
	SourceURL string      `json:"sourceUrl" validate:"required,url"`
	Format    ImageFormat `json:"format" validate:"required,oneof=jpeg png webp avif"`
	Quality   int         `json:"quality" validate:"omitempty,min=1,max=100"`
	Width     int         `json:"width" validate:"omitempty,min=1,max=8192"`
	Height    int         `json:"height" validate:"omitempty,min=1,max=8192"`
}

// VideoParams describes a video transcoding job
type VideoParams struct {
	SourceURL  string     `json:"sourceUrl" validate:"required,url"`
	Codec      VideoCodec `json:"codec" validate:"required,oneof=h264 h265 vp9 av1"`
	Container  Container  `json:"container" validate:"required,oneof=mp4 webm mkv"`
	Resolution Resolution `json:"resolution" validate:"omitempty,oneof=480p 720p 1080p 4k"`
	Bitrate    int        `json:"bitrate" validate:"omitempty,min=100,max=50000"` // kbps
}

// AudioParams describes an audio transcoding job
type AudioParams struct {
	SourceURL  string      `json:"sourceUrl" validate:"required,url"`
	Format     AudioFormat `json:"format" validate:"required,oneof=mp3 wav aac ogg flac"`
	Bitrate    int         `json:"bitrate" validate:"omitempty,oneof=128 192 256 320"`
	SampleRate int         `json:"sampleRate" validate:"omitempty,oneof=44100 48000 96000"`
	Channels   int         `json:"channels" validate:"omitempty,oneof=1 2"`
}

// MediaResult is produced by a completed image, video or audio job
type MediaResult struct {
	ID        string    `json:"id"`
	FileURL   string    `json:"fileUrl"`
	Format    string    `json:"format"`
	Size      int64     `json:"size"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	Bitrate   int       `json:"bitrate,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
