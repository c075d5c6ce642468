package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// newNumber builds an order number: prefix, UTC timestamp to the second,
// and a 6-digit random suffix. Collisions are improbable but possible;
// true uniqueness is enforced by the storage constraint and the
// assembler's bounded retry.
func newNumber(prefix string, now time.Time, intn func(int) int) string {
	return fmt.Sprintf("%s-%s%06d", prefix, now.UTC().Format("060102150405"), intn(1_000_000))
}

// defaultIntN is the production random source.
func defaultIntN(n int) int {
	return rand.IntN(n)
}
