package handler

import (
	"github.com/gin-gonic/gin"

	"token-vesting/internal/handler/request"
	"token-vesting/internal/handler/response"
	"token-vesting/internal/service"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/amount"
)

type VestingHandler struct {
	svc *service.VestingService
}

func NewVestingHandler(svc *service.VestingService) *VestingHandler {
	return &VestingHandler{svc: svc}
}

// OpenLinearPool 开线性池, 调用方即出资人
// @Router /api/v1/pools/linear [post]
func (h *VestingHandler) OpenLinearPool(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req request.OpenLinearPoolRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	ledgerReq, err := req.ToLedger()
	if err != nil {
		response.Error(c, err)
		return
	}

	id, err := h.svc.OpenLinearPool(c.Request.Context(), caller, ledgerReq)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"pool_id": id})
}

// OpenCliffPool 开悬崖池
// @Router /api/v1/pools/cliff [post]
func (h *VestingHandler) OpenCliffPool(c *gin.Context) {
	caller, err := callerOf(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req request.OpenCliffPoolRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	ledgerReq, err := req.ToLedger()
	if err != nil {
		response.Error(c, err)
		return
	}

	id, err := h.svc.OpenCliffPool(c.Request.Context(), caller, ledgerReq)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"pool_id": id})
}

// GetPool 池元数据与名册
// @Router /api/v1/pools/{id} [get]
func (h *VestingHandler) GetPool(c *gin.Context) {
	id, err := poolIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	info, err := h.svc.Pool(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.FromPool(info))
}

// Claimable 当前可领金额, schedule 缺省为 linear
// @Router /api/v1/pools/{id}/claimable [get]
func (h *VestingHandler) Claimable(c *gin.Context) {
	id, err := poolIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := addressOf(c.Query("user"), "user")
	if err != nil {
		response.Error(c, err)
		return
	}
	schedule := vesting.Schedule(c.DefaultQuery("schedule", string(vesting.ScheduleLinear)))

	got, err := h.svc.Claimable(c.Request.Context(), id, user, schedule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"pool_id":   id,
		"user":      user.Hex(),
		"schedule":  schedule,
		"claimable": amount.ToDecimal(got),
	})
}

// Claim 调用方领取自己的份额
// @Router /api/v1/pools/{id}/claim [post]
func (h *VestingHandler) Claim(c *gin.Context) {
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
	var req request.ClaimRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	receipt, err := h.svc.Claim(c.Request.Context(), caller, id, vesting.Schedule(req.Schedule))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.FromReceipt(receipt))
}

// Allocations 某地址在池内的子账本行
// @Router /api/v1/pools/{id}/allocations/{address} [get]
func (h *VestingHandler) Allocations(c *gin.Context) {
	id, err := poolIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := addressOf(c.Param("address"), "address")
	if err != nil {
		response.Error(c, err)
		return
	}

	views, err := h.svc.Allocations(c.Request.Context(), id, user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.FromAllocations(views))
}

// Unallocated 托管中未分配的余额
// @Router /api/v1/escrow/{asset}/unallocated [get]
func (h *VestingHandler) Unallocated(c *gin.Context) {
	asset, err := addressOf(c.Param("asset"), "asset")
	if err != nil {
		response.Error(c, err)
		return
	}
	free, err := h.svc.Unallocated(c.Request.Context(), asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"asset": asset.Hex(), "unallocated": amount.ToDecimal(free)})
}

// MigratedFrom 查询新地址替换的旧地址
// @Router /api/v1/migrations/{address} [get]
func (h *VestingHandler) MigratedFrom(c *gin.Context) {
	addr, err := addressOf(c.Param("address"), "address")
	if err != nil {
		response.Error(c, err)
		return
	}
	from, ok := h.svc.MigratedFrom(c.Request.Context(), addr)
	data := gin.H{"address": addr.Hex(), "migrated": ok}
	if ok {
		data["migrated_from"] = from.Hex()
	}
	response.Success(c, data)
}
