package calculation

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies an input by the xxhash64 of its JSON encoding.
// Maps encode with sorted keys, so equal inputs hash equally. The as-of
// date is reduced to its calendar day since nothing finer affects a run.
func Fingerprint(in *ProjectionInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: nil input", ErrInvalidInput)
	}
	canonical := struct {
		ProjectionInput
		AsOf string `json:"as_of"`
	}{
		ProjectionInput: *in,
		AsOf:            in.AsOf.Format("2006-01-02"),
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
}
