package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"token-vesting/internal/handler/response"
	"token-vesting/pkg/crypto_util"
	"token-vesting/pkg/errno"
)

const (
	HeaderAddress   = "X-Vesting-Address"
	HeaderTimestamp = "X-Vesting-Timestamp"
	HeaderSignature = "X-Vesting-Signature"

	ctxCaller = "caller"
)

// AuthMessage 请求签名的原文: "METHOD PATH TIMESTAMP"
func AuthMessage(method, path string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("%s %s %d", method, path, timestamp))
}

// EIP191Auth 校验 personal_sign 签名的请求头, 通过后把签名地址作为调用方
func EIP191Auth(maxSkew time.Duration, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		addr := c.GetHeader(HeaderAddress)
		if !common.IsHexAddress(addr) {
			response.Abort(c, errno.ErrTokenInvalid.WithMessage("missing or malformed "+HeaderAddress))
			return
		}

		ts, err := strconv.ParseInt(c.GetHeader(HeaderTimestamp), 10, 64)
		if err != nil {
			response.Abort(c, errno.ErrTokenInvalid.WithMessage("malformed "+HeaderTimestamp))
			return
		}
		skew := now().Sub(time.Unix(ts, 0))
		if skew > maxSkew || skew < -maxSkew {
			response.Abort(c, errno.ErrTokenInvalid.WithMessage("timestamp outside allowed window"))
			return
		}

		sig, err := hexutil.Decode(c.GetHeader(HeaderSignature))
		if err != nil {
			response.Abort(c, errno.ErrTokenInvalid.WithMessage("malformed "+HeaderSignature))
			return
		}
		signer, err := crypto_util.RecoverPersonal(AuthMessage(c.Request.Method, c.Request.URL.Path, ts), sig)
		if err != nil || signer != common.HexToAddress(addr) {
			response.Abort(c, errno.ErrTokenInvalid.WithMessage("signature does not match address"))
			return
		}

		c.Set(ctxCaller, signer)
		c.Next()
	}
}

// Caller 已认证的调用方地址
func Caller(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(ctxCaller)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}
