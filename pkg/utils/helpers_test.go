package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"INV/2024/0042":    "INV_2024_0042",
		`A\B:C"D*E?F<G>H|`: "A_B_C_D_E_F_G_H_",
		"PLAIN-001":        "PLAIN-001",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ParseDuration("5m", time.Second))
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("bogus", time.Second))
}

func TestCompactDate(t *testing.T) {
	assert.Equal(t, "20260828", CompactDate(time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)))
}

func TestNormalizeCountry(t *testing.T) {
	assert.Equal(t, "MY", NormalizeCountry("MY"))
	assert.Equal(t, "UNKNOWN", NormalizeCountry(""))
	assert.Equal(t, "UNKNOWN", NormalizeCountry("   "))
}
