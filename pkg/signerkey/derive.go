package signerkey

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultPath 以太坊账户 0 的第一个地址
const DefaultPath = "m/44'/60'/0'/0/0"

var (
	ErrInvalidSeed = errors.New("无效的种子")
	ErrInvalidPath = errors.New("无效的派生路径")
)

// DeriveKey 按 BIP-32 路径从种子派生 secp256k1 私钥
// 支持格式: m/44'/60'/0'/0/0 或 m/44h/60h/0h/0/0
func DeriveKey(seed []byte, path string) (*ecdsa.PrivateKey, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, ErrInvalidSeed
	}
	indexes, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}
	for _, index := range indexes {
		if key, err = key.Derive(index); err != nil {
			return nil, fmt.Errorf("派生子密钥失败: %w", err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	// 转成 go-ethereum 的曲线实现, 签名时会校验曲线
	return crypto.ToECDSA(priv.Serialize())
}

// FromMnemonic 助记词 -> 种子 -> 路径私钥
func FromMnemonic(mnemonic, passphrase, path string) (*ecdsa.PrivateKey, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, errors.New("无效的助记词")
	}
	return DeriveKey(Seed(mnemonic, passphrase), path)
}

// Address 私钥对应的以太坊地址
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Unlock 解密 keystore 并派生签名私钥
func Unlock(keyJSON *EncryptedKeyJSON, password, path string) (*ecdsa.PrivateKey, error) {
	mnemonic, err := DecryptMnemonic(keyJSON, password)
	if err != nil {
		return nil, err
	}
	return FromMnemonic(mnemonic, "", path)
}

func parsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	segments := strings.Split(path[2:], "/")
	out := make([]uint32, 0, len(segments))
	for _, segment := range segments {
		hardened := strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h")
		if hardened {
			segment = segment[:len(segment)-1]
		}
		val, err := strconv.ParseUint(segment, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: 无效的路径段 '%s'", ErrInvalidPath, segment)
		}
		index := uint32(val)
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}
		out = append(out, index)
	}
	return out, nil
}
