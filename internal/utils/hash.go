package utils

import (
	"fmt"
	"hash/fnv"
)

// HashBytes fingerprints raw upload content. Equal files always map to the
// same hex string, which is what dataset dedupe keys on.
func HashBytes(b []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return fmt.Sprintf("%016x", h.Sum64())
}
