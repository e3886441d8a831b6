package docpipe

import "log/slog"

// Config controls pipeline behavior. Zero value is usable: defaults are
// applied by New.
type Config struct {
	// MaxFileSize caps the payload size in bytes. Oversized payloads are
	// not parsed; the result carries a warning instead.
	MaxFileSize int64

	// TesseractPath is the OCR binary invoked for raster images.
	TesseractPath string

	// Logger receives debug/warn events from the backends.
	Logger *slog.Logger

	// Runner executes the OCR command. Tests substitute a stub.
	Runner Runner
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 << 20 // 100 MB
	}
	if c.TesseractPath == "" {
		c.TesseractPath = "tesseract"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Runner == nil {
		c.Runner = execRunner{}
	}
}
