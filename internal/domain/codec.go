package domain

import (
	"encoding/json"
	"fmt"
)

// JSONCodec decodes the JSON framing used by firehose mirrors: each frame
// is a commit object whose blocks field is a base64-encoded JSON array of
// typed records. Binary CAR framing from the upstream relay is handled by
// an external decoder satisfying the same collector port.
type JSONCodec struct{}

// DecodeCommit parses one raw frame into a Commit.
func (JSONCodec) DecodeCommit(raw RawMessage) (*Commit, error) {
	var commit Commit
	if err := json.Unmarshal(raw, &commit); err != nil {
		return nil, fmt.Errorf("decode commit: %w", err)
	}
	return &commit, nil
}

// DecodeBlocks parses a commit's block payload into typed records.
func (JSONCodec) DecodeBlocks(blocks []byte) ([]PostRecord, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	var records []PostRecord
	if err := json.Unmarshal(blocks, &records); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	return records, nil
}
