package handler

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"token-vesting/internal/handler/middleware"
	"token-vesting/pkg/errno"
	"token-vesting/pkg/validator"
)

func poolIDParam(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errno.ErrBind.WithMessage("invalid pool id")
	}
	return id, nil
}

func addressOf(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errno.ErrBind.WithMessage("invalid " + field)
	}
	return common.HexToAddress(s), nil
}

func callerOf(c *gin.Context) (common.Address, error) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return common.Address{}, errno.ErrTokenInvalid
	}
	return caller, nil
}

func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errno.ErrBind.WithMessage(validator.GetErrorMsg(err))
	}
	return nil
}
