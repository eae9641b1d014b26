// Package selector chooses a decompression codec from a capture file name.
package selector

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/discochess/capdump/internal/codec"
	"github.com/discochess/capdump/internal/codec/gzipcodec"
	"github.com/discochess/capdump/internal/codec/noopcodec"
	"github.com/discochess/capdump/internal/codec/xzcodec"
	"github.com/discochess/capdump/internal/codec/zstdcodec"
)

// byExtension is the complete extension policy. Matching is case-sensitive.
var byExtension = map[string]codec.Algorithm{
	"pcapng": codec.None,
	"gz":     codec.Gzip,
	"xz":     codec.Xz,
}

// Selector picks an algorithm for a file name.
type Selector struct {
	logger *zap.Logger
}

// New creates a Selector that reports assumptions to logger.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{logger: logger}
}

// Select returns the algorithm for name. Unrecognised or missing extensions
// select codec.None and log a warning; Select never fails.
func (s *Selector) Select(name string) codec.Algorithm {
	ext, ok := Extension(name)
	if !ok {
		s.logger.Warn("no file extension; assuming plain capture",
			zap.String("name", name),
		)
		return codec.None
	}
	if a, ok := byExtension[ext]; ok {
		return a
	}
	s.logger.Warn("unrecognised file extension; assuming plain capture",
		zap.String("extension", ext),
		zap.String("name", name),
	)
	return codec.None
}

// Extension returns the final extension token of name, without the dot.
// A leading dot alone (".pcapng") does not start an extension. Directories
// are split off with the host path separator.
func Extension(name string) (string, bool) {
	base := filepath.Base(name)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return "", false
	}
	return base[i+1:], true
}

// Codec returns the codec implementing a.
func Codec(a codec.Algorithm) codec.Codec {
	switch a {
	case codec.Gzip:
		return gzipcodec.New()
	case codec.Xz:
		return xzcodec.New()
	case codec.Zstd:
		return zstdcodec.New()
	default:
		return noopcodec.New()
	}
}
