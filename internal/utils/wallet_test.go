package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumAddress(t *testing.T) {
	// reference vectors from EIP-55
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}

	for _, want := range vectors {
		t.Run(want, func(t *testing.T) {
			assert.Equal(t, want, ChecksumAddress(want))
			assert.True(t, IsWalletAddress(want))
		})
	}
}

func TestIsWalletAddress(t *testing.T) {
	assert.True(t, IsWalletAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.True(t, IsWalletAddress("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"))

	// checksum broken by one flipped letter
	assert.False(t, IsWalletAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"))
	assert.False(t, IsWalletAddress("5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsWalletAddress("0x1234"))
	assert.False(t, IsWalletAddress(""))
}

func TestNormalizeWallet(t *testing.T) {
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		NormalizeWallet(" 0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed "))
	assert.Equal(t, "not-a-wallet", NormalizeWallet("not-a-wallet"))
}
