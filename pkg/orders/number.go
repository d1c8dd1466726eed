package orders

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateOrderNumber builds a PREFIX-YYYYMMDD-NNNN order number with a
// random 4-digit suffix. The suffix can collide within a day; creation
// retries on the unique-key conflict instead of pre-checking.
func GenerateOrderNumber(prefix string) string {
	d := time.Now().Format("20060102")
	r := 1000 + rand.Intn(9000)
	return fmt.Sprintf("%s-%s-%d", prefix, d, r)
}
