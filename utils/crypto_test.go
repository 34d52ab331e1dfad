package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// personalSign 模拟钱包personal_sign（V为27/28）
func personalSign(t *testing.T, data string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(data)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(sig)
}

func TestVerifySignature(t *testing.T) {
	msg := "POST /api/v1/auctions/1/bids 1767225600"
	addr, sig := personalSign(t, msg)
	other, _ := personalSign(t, msg)

	assert.True(t, VerifySignature(addr, msg, sig))
	assert.False(t, VerifySignature(other, msg, sig))
	assert.False(t, VerifySignature(addr, msg+"0", sig))
	assert.False(t, VerifySignature(addr, msg, "0x1234"))
	assert.False(t, VerifySignature(addr, msg, "not-hex"))
	assert.False(t, VerifySignature("0x123", msg, sig))
}
