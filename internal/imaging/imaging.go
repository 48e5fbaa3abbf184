// =============================================================================
// X9 Cash Letter Encoder - Image Pipeline
// =============================================================================
//
// Check images travel through the file as TIFF, CCITT Group 4, 200 DPI. The
// encoder only needs the final bytes; producing them is the pipeline's job.
//
// INTERFACES:
//   Pipeline : renders generated documents and normalises scanned images
//   Endorser : optional, stamps endorsement text on the back of a check
//
// =============================================================================

package imaging

import (
	"context"
	"fmt"
	"strings"
)

// Pipeline produces the image bytes embedded in image view data records.
type Pipeline interface {
	// Render produces a TIFF image of a generated document, such as a
	// deposit slip, from a text template and its merge fields. An empty
	// template renders a blank page.
	Render(ctx context.Context, template string, fields map[string]string) ([]byte, error)

	// CompressTiffG4 returns the image as a 200 DPI TIFF, CCITT Group 4.
	CompressTiffG4(ctx context.Context, raster []byte) ([]byte, error)
}

// Endorser is implemented by pipelines that can stamp endorsements.
type Endorser interface {
	Endorse(ctx context.Context, image []byte, text string) ([]byte, error)
}

// RenderString replaces {{NAME}} placeholders with fields values. It fails
// on unknown names and malformed placeholders.
func RenderString(input string, fields map[string]string) (string, error) {
	if input == "" {
		return "", nil
	}

	var out strings.Builder
	rest := input
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			out.WriteString(rest)
			return out.String(), nil
		}

		out.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.Index(rest, "}}")
		if end == -1 {
			return "", fmt.Errorf("unclosed template expression")
		}

		key := strings.TrimSpace(rest[:end])
		if key == "" {
			return "", fmt.Errorf("empty template expression")
		}

		value, ok := fields[key]
		if !ok {
			return "", fmt.Errorf("missing template field %q", key)
		}

		out.WriteString(value)
		rest = rest[end+2:]
	}
}
