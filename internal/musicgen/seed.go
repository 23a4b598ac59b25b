package musicgen

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/book-expert/musicgen-service/internal/core"
)

// Seeds are kept inside 32 bits so they round-trip cleanly through every
// consumer, matching the underlying model's seed range.
const seedMask = 1<<32 - 1

// resolveSeed returns the seed to use for one invocation. A non-positive or
// sentinel seed draws a fresh one from entropy. The resolved value is passed
// to every model call and reported in the result, so the wrapper itself
// performs no further randomized work.
func resolveSeed(requested int64) (int64, error) {
	if requested > 0 && requested != core.NoSeed {
		return requested & seedMask, nil
	}

	var buf [8]byte

	_, err := rand.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("failed to draw seed from entropy: %w", err)
	}

	seed := int64(binary.LittleEndian.Uint64(buf[:])) & seedMask
	if seed == 0 {
		seed = 1
	}

	return seed, nil
}
