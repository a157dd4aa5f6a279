package crypto_util

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength r || s || v
const SignatureLength = 65

var ErrInvalidSignature = errors.New("invalid signature")

// SignPersonal 对任意消息做 EIP-191 personal_sign, 返回 V 为 27/28 的签名
func SignPersonal(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverPersonal 从 EIP-191 签名中恢复签名人地址, V 同时接受 0/1 与 27/28
func RecoverPersonal(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// PersonalVerifier 以 secp256k1 + EIP-191 校验开池授权
type PersonalVerifier struct{}

func NewPersonalVerifier() *PersonalVerifier {
	return &PersonalVerifier{}
}

// Verify 签名内容为 32 字节摘要本身
func (v *PersonalVerifier) Verify(digest common.Hash, signature []byte, expected common.Address) (bool, error) {
	signer, err := RecoverPersonal(digest.Bytes(), signature)
	if err != nil {
		return false, err
	}
	return signer == expected, nil
}
