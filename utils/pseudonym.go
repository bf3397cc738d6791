package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var (
	pseudonymAdjectives = []string{"Quiet", "Gentle", "Bright", "Solemn", "Brave", "Kind", "Soft", "Warm", "Calm", "Hopeful"}
	pseudonymAnimals    = []string{"Willow", "Robin", "River", "Sparrow", "Ash", "Moss", "Nova", "Orion", "Luna", "Echo"}
)

// GeneratePseudonym produces a display name like "Gentle Robin412" shown in
// place of real identity, especially under anonymous posting.
func GeneratePseudonym() string {
	return fmt.Sprintf("%s %s%d",
		pseudonymAdjectives[randIndex(len(pseudonymAdjectives))],
		pseudonymAnimals[randIndex(len(pseudonymAnimals))],
		100+randIndex(900),
	)
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
