package model

// Render output formats
type RenderFormat string

const (
	RenderFormatMP4  RenderFormat = "mp4"
	RenderFormatWebM RenderFormat = "webm"
	RenderFormatMOV  RenderFormat = "mov"
	RenderFormatGIF  RenderFormat = "gif"
)

// Render quality presets
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Output resolutions
type Resolution string

const (
	Resolution480p  Resolution = "480p"
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
	Resolution4K    Resolution = "4k"
)

// Dimensions returns the pixel size of a resolution preset.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Resolution480p:
		return 854, 480
	case Resolution720p:
		return 1280, 720
	case Resolution4K:
		return 3840, 2160
	default:
		return 1920, 1080
	}
}

// Image formats
type ImageFormat string

const (
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatWebP ImageFormat = "webp"
	ImageFormatAVIF ImageFormat = "avif"
)

// Video codecs
type VideoCodec string

const (
	VideoCodecH264 VideoCodec = "h264"
	VideoCodecH265 VideoCodec = "h265"
	VideoCodecVP9  VideoCodec = "vp9"
	VideoCodecAV1  VideoCodec = "av1"
)

// Video containers
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerWebM Container = "webm"
	ContainerMKV  Container = "mkv"
)

// Audio formats
type AudioFormat string

const (
	AudioFormatMP3  AudioFormat = "mp3"
	AudioFormatWAV  AudioFormat = "wav"
	AudioFormatAAC  AudioFormat = "aac"
	AudioFormatOGG  AudioFormat = "ogg"
	AudioFormatFLAC AudioFormat = "flac"
)
