package signerkey

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// NewMnemonic 生成 BIP-39 助记词, bitSize 为 128 (12 词) 或 256 (24 词)
func NewMnemonic(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("生成熵失败: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("生成助记词失败: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic 校验助记词 (单词表与校验位)
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// Seed 助记词转种子, passphrase 可为空
func Seed(mnemonic, passphrase string) []byte {
	return bip39.NewSeed(mnemonic, passphrase)
}
