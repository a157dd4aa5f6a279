package cmd

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"token-vesting/internal/handler/middleware"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/crypto_util"
	"token-vesting/pkg/safe_random"
	"token-vesting/pkg/signerkey"
)

// PoolAuthorization 开池请求里需要的授权字段
type PoolAuthorization struct {
	Signer    string `json:"signer"`
	Digest    string `json:"digest"`
	Signature string `json:"signature"`
	Tag       string `json:"tag"`
}

var signPoolCmd = &cobra.Command{
	Use:   "sign-pool",
	Short: "为开池请求生成授权签名",
	Long:  `签名内容为 keccak256(name || asset || tag) 的 EIP-191 personal_sign。tag 为空时随机生成。`,
	Run: func(cmd *cobra.Command, args []string) {
		name, asset, tag := poolFlags(cmd)
		if len(tag) == 0 {
			var err error
			tag, err = safe_random.GenerateRandomBytes(16)
			exitOnErr("生成标签失败", err)
		}

		key, err := unlockKeystore()
		exitOnErr("解锁失败", err)
		auth, err := signPool(key, name, asset, tag)
		exitOnErr("签名失败", err)
		printJSON(auth)
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "计算开池授权摘要, 不需要私钥",
	Run: func(cmd *cobra.Command, args []string) {
		name, asset, tag := poolFlags(cmd)
		fmt.Println(vesting.PoolDigest(name, asset, tag).Hex())
	},
}

var authHeadersCmd = &cobra.Command{
	Use:   "auth-headers",
	Short: "为 API 请求生成 EIP-191 认证头",
	Run: func(cmd *cobra.Command, args []string) {
		method, _ := cmd.Flags().GetString("method")
		path, _ := cmd.Flags().GetString("url-path")
		ts, _ := cmd.Flags().GetInt64("timestamp")
		if ts == 0 {
			ts = time.Now().Unix()
		}

		key, err := unlockKeystore()
		exitOnErr("解锁失败", err)
		headers, err := authHeaders(key, method, path, ts)
		exitOnErr("签名失败", err)
		for _, h := range []string{middleware.HeaderAddress, middleware.HeaderTimestamp, middleware.HeaderSignature} {
			fmt.Printf("%s: %s\n", h, headers[h])
		}
	},
}

func signPool(key *ecdsa.PrivateKey, name string, asset common.Address, tag []byte) (PoolAuthorization, error) {
	digest := vesting.PoolDigest(name, asset, tag)
	sig, err := crypto_util.SignPersonal(key, digest.Bytes())
	if err != nil {
		return PoolAuthorization{}, err
	}
	return PoolAuthorization{
		Signer:    signerkey.Address(key).Hex(),
		Digest:    digest.Hex(),
		Signature: hexutil.Encode(sig),
		Tag:       hexutil.Encode(tag),
	}, nil
}

func authHeaders(key *ecdsa.PrivateKey, method, path string, ts int64) (map[string]string, error) {
	sig, err := crypto_util.SignPersonal(key, middleware.AuthMessage(method, path, ts))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		middleware.HeaderAddress:   signerkey.Address(key).Hex(),
		middleware.HeaderTimestamp: strconv.FormatInt(ts, 10),
		middleware.HeaderSignature: hexutil.Encode(sig),
	}, nil
}

func poolFlags(cmd *cobra.Command) (string, common.Address, []byte) {
	name, _ := cmd.Flags().GetString("name")
	assetHex, _ := cmd.Flags().GetString("asset")
	tagHex, _ := cmd.Flags().GetString("tag")
	if !common.IsHexAddress(assetHex) {
		fmt.Printf("asset 不是有效地址: %s\n", assetHex)
		os.Exit(1)
	}
	var tag []byte
	if tagHex != "" {
		var err error
		tag, err = hexutil.Decode(tagHex)
		exitOnErr("tag 必须是 0x 开头的十六进制", err)
	}
	return name, common.HexToAddress(assetHex), tag
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	exitOnErr("序列化失败", err)
	fmt.Println(string(out))
}

func init() {
	for _, c := range []*cobra.Command{signPoolCmd, digestCmd} {
		c.Flags().String("name", "", "池名称")
		c.Flags().String("asset", "", "代币地址")
		c.Flags().String("tag", "", "唯一标签 (0x hex)")
		_ = c.MarkFlagRequired("name")
		_ = c.MarkFlagRequired("asset")
	}
	_ = digestCmd.MarkFlagRequired("tag")

	authHeadersCmd.Flags().String("method", "POST", "HTTP 方法")
	authHeadersCmd.Flags().String("url-path", "", "请求路径, 例如 /api/v1/pools/1/claim")
	authHeadersCmd.Flags().Int64("timestamp", 0, "unix 秒, 默认当前时间")
	_ = authHeadersCmd.MarkFlagRequired("url-path")

	rootCmd.AddCommand(signPoolCmd, digestCmd, authHeadersCmd)
}
