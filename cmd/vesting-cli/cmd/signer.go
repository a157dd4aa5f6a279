package cmd

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"token-vesting/pkg/signerkey"
)

var signerCmd = &cobra.Command{
	Use:   "signer",
	Short: "管理签名人 Keystore",
}

var signerInitCmd = &cobra.Command{
	Use:   "init",
	Short: "生成新的签名人助记词并加密保存",
	Run: func(cmd *cobra.Command, args []string) {
		light, _ := cmd.Flags().GetBool("light")
		if _, err := os.Stat(keystoreFile); err == nil {
			fmt.Printf("错误: 文件 %s 已存在。请先删除或指定其他文件名。\n", keystoreFile)
			os.Exit(1)
		}

		fmt.Println("请设置一个强密码来保护签名人助记词。")
		password, err := readPassword("输入密码: ")
		exitOnErr("读取密码失败", err)
		confirm, err := readPassword("确认密码: ")
		exitOnErr("读取密码失败", err)
		if password != confirm {
			fmt.Println("两次输入的密码不一致！")
			os.Exit(1)
		}
		if len(password) < 8 {
			fmt.Println("密码长度至少需要 8 位。")
			os.Exit(1)
		}

		mnemonic, err := signerkey.NewMnemonic(128)
		exitOnErr("生成助记词失败", err)

		keyJSON, err := newKeystore(mnemonic, password, derivationPath, light)
		exitOnErr("加密失败", err)
		exitOnErr("保存文件失败", keyJSON.SaveToFile(keystoreFile))

		fmt.Printf("\n签名人 Keystore 已生成\n")
		fmt.Printf("文件位置: %s\n", keystoreFile)
		fmt.Printf("签名人地址: %s\n", keyJSON.Address)
		fmt.Println("请把该地址配置为 vesting.signer。")

		fmt.Print("\n是否需要现在显示助记词以便备份? (y/N): ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))
		if input == "y" || input == "yes" {
			fmt.Println("\n---------------------------------------------------")
			fmt.Println(mnemonic)
			fmt.Println("---------------------------------------------------")
		}
	},
}

var signerAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "解锁 Keystore 并显示签名人地址",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := unlockKeystore()
		exitOnErr("解锁失败", err)
		fmt.Println(signerkey.Address(key).Hex())
	},
}

// newKeystore 加密助记词, 并记录派生出的地址
func newKeystore(mnemonic, password, path string, light bool) (*signerkey.EncryptedKeyJSON, error) {
	key, err := signerkey.FromMnemonic(mnemonic, "", path)
	if err != nil {
		return nil, err
	}
	n := signerkey.StandardScryptN
	if light {
		n = signerkey.LightScryptN
	}
	keyJSON, err := signerkey.EncryptMnemonic(mnemonic, password, n)
	if err != nil {
		return nil, err
	}
	keyJSON.Address = signerkey.Address(key).Hex()
	return keyJSON, nil
}

func unlockKeystore() (*ecdsa.PrivateKey, error) {
	keyJSON, err := signerkey.LoadFromFile(keystoreFile)
	if err != nil {
		return nil, err
	}
	password, err := readPassword(fmt.Sprintf("输入 %s 的密码: ", keystoreFile))
	if err != nil {
		return nil, err
	}
	key, err := signerkey.Unlock(keyJSON, password, derivationPath)
	if err != nil {
		return nil, err
	}
	if keyJSON.Address != "" && !strings.EqualFold(keyJSON.Address, signerkey.Address(key).Hex()) {
		return nil, errors.New("派生地址与 Keystore 记录不一致, 请检查 --path")
	}
	return key, nil
}

func init() {
	signerInitCmd.Flags().Bool("light", false, "使用较低的 scrypt 参数 (仅开发环境)")
	signerCmd.AddCommand(signerInitCmd, signerAddressCmd)
	rootCmd.AddCommand(signerCmd)
}
