package engine

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DecoderRegistry manages audio format decoders and provides format detection
type DecoderRegistry struct {
	decoders []Decoder
	logger   *slog.Logger
}

// NewDecoderRegistry creates a new empty decoder registry
func NewDecoderRegistry(logger *slog.Logger) *DecoderRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecoderRegistry{
		decoders: make([]Decoder, 0),
		logger:   logger,
	}
}

// NewDefaultRegistry creates a registry with every built-in decoder
func NewDefaultRegistry(logger *slog.Logger) *DecoderRegistry {
	registry := NewDecoderRegistry(logger)

	registry.Register(NewWavDecoder())
	registry.Register(NewMp3Decoder())
	registry.Register(NewAiffDecoder())
	registry.Register(NewFlacDecoder())
	registry.Register(NewVorbisDecoder())

	return registry
}

// Register adds a decoder to the registry
func (r *DecoderRegistry) Register(decoder Decoder) {
	if decoder == nil {
		r.logger.Warn("attempted to register nil decoder")
		return
	}

	r.decoders = append(r.decoders, decoder)

	r.logger.Debug("decoder registered",
		"format", decoder.FormatName(),
		"total_decoders", len(r.decoders))
}

// GetSupportedFormats returns a list of all supported format names
func (r *DecoderRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(r.decoders))
	for _, decoder := range r.decoders {
		formats = append(formats, decoder.FormatName())
	}
	return formats
}

// DetectFormat detects the appropriate decoder based on filename extension only
func (r *DecoderRegistry) DetectFormat(filename string) Decoder {
	if filename == "" {
		return nil
	}

	// First registered decoder wins
	for _, decoder := range r.decoders {
		if decoder.CanDecode(filename) {
			r.logger.Debug("format detected by extension",
				"filename", filename,
				"format", decoder.FormatName())
			return decoder
		}
	}

	r.logger.Debug("no decoder found for filename", "filename", filename)
	return nil
}

// DetectFormatWithContent detects format using magic bytes first, fallback to extension
func (r *DecoderRegistry) DetectFormatWithContent(filename string, content []byte) Decoder {
	header := content
	if len(header) > sniffBytes {
		header = header[:sniffBytes]
	}
	if len(header) == 0 {
		return r.DetectFormat(filename)
	}

	mtype := mimetype.Detect(header)
	if decoder := r.decoderForMIME(mtype); decoder != nil {
		r.logger.Debug("format detected by magic bytes",
			"filename", filename,
			"format", decoder.FormatName(),
			"mime_type", mtype.String())
		return decoder
	}

	r.logger.Debug("magic detection failed, falling back to extension",
		"filename", filename,
		"mime_type", mtype.String())
	return r.DetectFormat(filename)
}

func (r *DecoderRegistry) decoderForMIME(mtype *mimetype.MIME) Decoder {
	switch {
	case mtype.Is("audio/wav"):
		return r.findDecoderByFormat("WAV")
	case mtype.Is("audio/mpeg"):
		return r.findDecoderByFormat("MP3")
	case mtype.Is("audio/aiff"):
		return r.findDecoderByFormat("AIFF")
	case mtype.Is("audio/flac"):
		return r.findDecoderByFormat("FLAC")
	case mtype.Is("audio/ogg"), mtype.Is("application/ogg"):
		return r.findDecoderByFormat("OGG")
	}
	return nil
}

// findDecoderByFormat finds a decoder by its format name
func (r *DecoderRegistry) findDecoderByFormat(formatName string) Decoder {
	for _, decoder := range r.decoders {
		if strings.EqualFold(decoder.FormatName(), formatName) {
			return decoder
		}
	}
	return nil
}

// sniffBytes is how much of a file magic detection looks at.
const sniffBytes = 3072

// Probe selects a decoder for r and reads its stream parameters.
func (r *DecoderRegistry) Probe(filename string, rs io.ReadSeeker) (Decoder, *StreamInfo, error) {
	header := make([]byte, sniffBytes)
	n, err := io.ReadFull(rs, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, fmt.Errorf("read %s: %w", filename, err)
	}

	decoder := r.DetectFormatWithContent(filename, header[:n])
	if decoder == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("rewind %s: %w", filename, err)
	}
	info, err := decoder.Probe(rs)
	if err != nil {
		return nil, nil, fmt.Errorf("probe %s as %s: %w", filename, decoder.FormatName(), err)
	}
	if info.SampleRate <= 0 || info.Channels <= 0 {
		return nil, nil, fmt.Errorf("probe %s: %w: rate=%d channels=%d",
			filename, ErrInvalidData, info.SampleRate, info.Channels)
	}

	return decoder, info, nil
}
