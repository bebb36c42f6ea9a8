package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// MaxCodeDigits keeps 10^digits within an int64.
const MaxCodeDigits = 18

// CodeGenerator produces numeric verification codes.
type CodeGenerator struct {
	random io.Reader
}

// NewCodeGenerator creates a CodeGenerator backed by crypto/rand.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{random: rand.Reader}
}

// NewCodeGeneratorWithReader creates a CodeGenerator reading from r.
func NewCodeGeneratorWithReader(r io.Reader) *CodeGenerator {
	return &CodeGenerator{random: r}
}

// Generate returns a uniformly distributed code of exactly digits characters.
// Leading zeros are kept.
func (g *CodeGenerator) Generate(digits int) (string, error) {
	if digits < 1 || digits > MaxCodeDigits {
		return "", ErrInvalidCodeLength
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(g.random, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
