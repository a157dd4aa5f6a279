package vesting

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"token-vesting/pkg/errno"
)

// Verifier 校验签名是否出自 expected
type Verifier interface {
	Verify(digest common.Hash, signature []byte, expected common.Address) (bool, error)
}

// PoolDigest keccak256(keccak256(name) || asset || keccak256(tag))。
// 变长字段先各自哈希, 不同的 (name, tag) 不会拼出同一串字节。
func PoolDigest(name string, asset common.Address, tag []byte) common.Hash {
	return crypto.Keccak256Hash(crypto.Keccak256([]byte(name)), asset.Bytes(), crypto.Keccak256(tag))
}

// ReplayGuard 一个授权摘要只能成功开一次池
type ReplayGuard struct {
	verifier Verifier
	used     map[common.Hash]struct{}
}

func NewReplayGuard(v Verifier) *ReplayGuard {
	return &ReplayGuard{
		verifier: v,
		used:     make(map[common.Hash]struct{}),
	}
}

// Authorize 只做检查不修改状态, 摘要在开池提交时才被消耗
func (g *ReplayGuard) Authorize(name string, asset common.Address, tag, signature []byte, expected common.Address) (common.Hash, error) {
	digest := PoolDigest(name, asset, tag)

	ok, err := g.verifier.Verify(digest, signature, expected)
	if err != nil {
		return common.Hash{}, errno.ErrSignerInvalid.WithMessage(err.Error())
	}
	if !ok {
		return common.Hash{}, errno.ErrSignerInvalid.WithMessage("signature not from " + expected.Hex())
	}
	if g.Used(digest) {
		return common.Hash{}, errno.ErrAlreadyUsed.WithMessage(digest.Hex())
	}
	return digest, nil
}

func (g *ReplayGuard) Used(digest common.Hash) bool {
	_, ok := g.used[digest]
	return ok
}

func (g *ReplayGuard) consume(digest common.Hash) {
	g.used[digest] = struct{}{}
}
