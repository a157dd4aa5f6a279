package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"token-vesting/pkg/signerkey"
)

var (
	keystoreFile   string
	derivationPath string
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "vesting-cli",
	Short: "代币归属服务的运维命令行工具",
	Long: `管理开池授权签名人的加密 Keystore, 离线生成开池授权签名,
以及为 API 请求生成 EIP-191 认证头。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&keystoreFile, "keystore", "k", "signer.json", "Keystore 文件")
	rootCmd.PersistentFlags().StringVar(&derivationPath, "path", signerkey.DefaultPath, "BIP-44 派生路径")
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	return string(b), nil
}

// exitOnErr 打印错误并退出
func exitOnErr(msg string, err error) {
	if err != nil {
		fmt.Printf("%s: %v\n", msg, err)
		os.Exit(1)
	}
}
