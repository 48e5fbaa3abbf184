package imaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Generated documents are laid out at check size: 6 by 2.75 inches.
const (
	SlipWidth  = 6 * DPI
	SlipHeight = 550

	// EndorsementHeight is the height of the page an endorsement adds.
	EndorsementHeight = 100
)

// TIFFPipeline is the built-in Pipeline. Rendered documents are blank
// Group 4 pages carrying their merged text in the ImageDescription tag.
// Scanned images must already be Group 4 TIFF and pass through unchanged.
type TIFFPipeline struct {
	templatesDir string
	rendered     *cache.Cache
	logger       *slog.Logger
}

// NewTIFFPipeline returns a pipeline that resolves "@name" templates from
// templatesDir. A nil logger discards output.
func NewTIFFPipeline(templatesDir string, logger *slog.Logger) *TIFFPipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TIFFPipeline{
		templatesDir: templatesDir,
		rendered:     cache.New(15*time.Minute, 30*time.Minute),
		logger:       logger,
	}
}

// Render merges fields into template and returns the page.
//
// PARAMETERS:
//   - template: inline text, or "@file.txt" to load it from the templates dir
//   - fields: merge values for {{NAME}} placeholders
//
// RETURNS:
//   - TIFF Group 4 bytes, or an error if the template cannot be merged
func (p *TIFFPipeline) Render(ctx context.Context, template string, fields map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := p.resolveTemplate(template)
	if err != nil {
		return nil, err
	}

	text, err := RenderString(source, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	key := cacheKey(text)
	if cached, ok := p.rendered.Get(key); ok {
		return cached.([]byte), nil
	}

	page := BlankPage(SlipWidth, SlipHeight, text)
	p.rendered.Set(key, page, cache.DefaultExpiration)
	p.logger.Debug("image.rendered", "bytes", len(page), "fields", sortedKeys(fields))

	return page, nil
}

// Endorse appends the endorsement text to the image as an extra page.
func (p *TIFFPipeline) Endorse(ctx context.Context, image []byte, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := AppendPage(image, SlipWidth, EndorsementHeight, text)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("image.endorsed", "bytes", len(out))
	return out, nil
}

// CompressTiffG4 accepts Group 4 TIFF images and rejects anything else.
func (p *TIFFPipeline) CompressTiffG4(ctx context.Context, raster []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compression, err := Compression(raster)
	if err != nil {
		return nil, err
	}
	if compression != CompressionGroup4 {
		return nil, fmt.Errorf("%w: compression code %d", ErrNotGroup4, compression)
	}

	return raster, nil
}

func (p *TIFFPipeline) resolveTemplate(template string) (string, error) {
	name, ok := strings.CutPrefix(strings.TrimSpace(template), "@")
	if !ok {
		return template, nil
	}
	if p.templatesDir == "" {
		return "", fmt.Errorf("template %q requested but no templates directory is configured", name)
	}

	path := filepath.Join(p.templatesDir, filepath.Base(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return string(data), nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
