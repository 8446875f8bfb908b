package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// DomainDataset separates dataset fingerprints from any other hash.
const DomainDataset = "retrace/dataset/v1"

// Fingerprint hashes the deterministic content of the dataset:
// SHA256(domain + 0x00 + canonical rows of every stream).
//
// analyzed_at is wall-clock time and the run id is random, so both are
// excluded. Two runs with the same seed and profile produce the same
// fingerprint.
func Fingerprint(d *Dataset) (string, error) {
	h := sha256.New()
	h.Write([]byte(DomainDataset))
	h.Write([]byte{0x00})

	for _, s := range Streams {
		if err := writeStream(h, d, s); err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", s, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeStream(h hash.Hash, d *Dataset, s Stream) error {
	header, err := MarshalCanonical(map[string]any{
		"stream": s.Table(),
		"count":  d.Len(s),
	})
	if err != nil {
		return err
	}
	h.Write(header)

	drop := -1
	if s == StreamStockouts {
		drop = len(s.Columns()) - 1 // analyzed_at
	}
	for i, row := range d.Rows(s) {
		if drop >= 0 {
			row = row[:drop]
		}
		b, err := MarshalCanonical(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		h.Write(b)
	}
	return nil
}
