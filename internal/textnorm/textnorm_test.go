package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "POS AMAZON RETAIL", Normalize("  pos/amazon*retail  "))
	assert.Equal(t, "INV 100", Normalize("INV-100"))
	assert.Equal(t, "", Normalize("--- "))
	assert.Equal(t, "ACH SALARY CREDIT", Normalize("ACH   salary\tCREDIT"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("INV-100", "inv 100"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("something", ""))
	assert.Greater(t, Similarity("POS AMAZON RETAIL", "POS AMAZON RETAIL SEATTLE"), 0.6)
	assert.Less(t, Similarity("SALARY CREDIT", "CARD PURCHASE"), 0.5)
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, TokenOverlap("rent march 2024", "RENT (march) 2024"))
	assert.Equal(t, 0.0, TokenOverlap("alpha beta", "gamma delta"))
	assert.Equal(t, 0.5, TokenOverlap("alpha beta", "beta gamma"))
	assert.Equal(t, 0.0, TokenOverlap("", "anything"))
}
