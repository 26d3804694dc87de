// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// Encode writes v, typically a []RunSummary or []ExperimentHit, as JSON or
// YAML.
func Encode(w io.Writer, format types.OutputFormat, v any) error {
	switch format {
	case types.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case types.OutputYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported export format %q: use json or yaml", format)
	}
}
