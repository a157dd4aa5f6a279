package handler

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"token-vesting/internal/handler/request"
	"token-vesting/internal/handler/response"
	"token-vesting/internal/service"
)

// AdminHandler 管理员操作, 权限由账本按 owner 判断
type AdminHandler struct {
	svc *service.VestingService
}

func NewAdminHandler(svc *service.VestingService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Migrate 把受益人迁移到新地址
// @Router /api/v1/admin/pools/{id}/migrate [post]
func (h *AdminHandler) Migrate(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := poolIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req request.MigrateRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	deprecated, newAddr := common.HexToAddress(req.Deprecated), common.HexToAddress(req.New)
	if err := h.svc.Reassign(c.Request.Context(), caller, id, deprecated, newAddr); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"pool_id": id, "deprecated": deprecated.Hex(), "new": newAddr.Hex()})
}

// SetSigner 更换开池授权签名人
// @Router /api/v1/admin/signer [put]
func (h *AdminHandler) SetSigner(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req request.SetSignerRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	signer := common.HexToAddress(req.Signer)
	if err := h.svc.SetSigner(c.Request.Context(), caller, signer); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"signer": signer.Hex()})
}

// Sweep 提取托管中未分配的余额
// @Router /api/v1/admin/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req request.SweepRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	amt, err := req.SweepAmount()
	if err != nil {
		response.Error(c, err)
		return
	}

	asset, to := common.HexToAddress(req.Asset), common.HexToAddress(req.To)
	if err := h.svc.Sweep(c.Request.Context(), caller, asset, amt, to); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"asset": asset.Hex(), "to": to.Hex(), "amount": req.Amount})
}
