package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratePseudonymShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+\d{3}$`)
	for i := 0; i < 50; i++ {
		name := GeneratePseudonym()
		assert.Regexp(t, pattern, name)
	}
}
