package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateIntentID builds a synthetic payment intent id for flows that
// never touch a real gateway (free orders, simulated provider).
func GenerateIntentID(prefix string) string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("%s_%d_%06d", prefix, timestamp, randomNum.Int64())
}
