package utils_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registration-gateway/internal/utils"
)

func TestGenerateEntryCode(t *testing.T) {
	code := utils.GenerateEntryCode()

	require.True(t, strings.HasPrefix(code, "EVT-"))
	require.Len(t, code, 14)

	for _, r := range code[4:] {
		assert.NotContains(t, "0O1I", string(r), "ambiguous characters are excluded")
	}
}

func TestGenerateEntryCode_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := utils.GenerateEntryCode()
		require.False(t, seen[code], "entry codes must not repeat")
		seen[code] = true
	}
}

func TestGenerateReceiptID(t *testing.T) {
	assert.Equal(t, "rcpt_reg-1", utils.GenerateReceiptID("reg-1"))

	long := strings.Repeat("a", 40)
	receipt := utils.GenerateReceiptID(long)
	assert.Equal(t, "rcpt_"+strings.Repeat("a", 32), receipt)
	assert.LessOrEqual(t, len(receipt), 40, "gateway receipt field caps at 40 characters")
}
