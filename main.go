// =============================================================================
// X9 Cash Letter Encoder - Main Entry Point
// =============================================================================
//
// USAGE:
//   x9export export     - Export every manifest in the input directory
//   x9export validate   - Check manifests and profiles without exporting
//   x9export sequence   - Show or set sequence counters
//   x9export seal       - Generate a sealing key or seal a value
//   x9export version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : record model, assembler, dialects and supporting packages
//   - pkg/           : shared file utilities
//   - configs/       : one YAML profile per receiving bank
//   - templates/     : deposit slip and endorsement templates
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/x9-cash-letter/cmd"
)

func main() {
	cmd.Execute()
}
