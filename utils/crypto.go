package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifySignature 校验EIP-191个人签名（钱包personal_sign）
// params: userAddr-用户地址, data-待签数据, signature-0x前缀的65字节签名
func VerifySignature(userAddr, data, signature string) bool {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	// 钱包返回的V为27/28，恢复公钥需要0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(data)), sig)
	if err != nil {
		return false
	}
	if !common.IsHexAddress(userAddr) {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(userAddr)
}
