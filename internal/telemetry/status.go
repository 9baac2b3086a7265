package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ContentTypeCBOR is served to clients that ask for it in Accept.
const ContentTypeCBOR = "application/cbor"

// EncodeSnapshot encodes a snapshot as CBOR for constrained consumers.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	return cbor.Marshal(snap)
}

// DecodeSnapshot decodes a CBOR snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// StatusHandler serves the current snapshot as JSON, or CBOR when requested.
func StatusHandler(s *Shared) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := s.Snapshot()

		if strings.Contains(r.Header.Get("Accept"), ContentTypeCBOR) {
			data, err := EncodeSnapshot(snap)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", ContentTypeCBOR)
			w.Write(data)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	})
}
