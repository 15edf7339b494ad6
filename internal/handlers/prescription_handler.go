package handlers

import (
	"errors"
	"strconv"

	"pharmos/internal/middleware"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreatePrescriptionRequest 处方录入请求
type CreatePrescriptionRequest struct {
	PatientID      uint                             `json:"patient_id" binding:"required"`
	PrescriberName string                           `json:"prescriber_name" binding:"required"`
	Items          []services.PrescriptionItemInput `json:"items" binding:"required,min=1,dive"`
	Notes          *string                          `json:"notes"`
}

// DispenseRequest 发药请求
type DispenseRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// PrescriptionHandler 处方处理器
type PrescriptionHandler struct {
	prescriptions *services.PrescriptionService
}

func NewPrescriptionHandler(prescriptions *services.PrescriptionService) *PrescriptionHandler {
	return &PrescriptionHandler{prescriptions: prescriptions}
}

// Create 录入处方
func (h *PrescriptionHandler) Create(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	var req CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	prescription, err := h.prescriptions.Create(sc, req.PatientID, req.PrescriberName, req.Items, req.Notes)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, prescription)
}

// GetAll 分页获取处方列表
func (h *PrescriptionHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	status := c.Query("status")
	var patientID uint
	if v := c.Query("patient_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			patientID = uint(n)
		}
	}

	prescriptions, total, err := h.prescriptions.GetWithPage(sc, status, patientID, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, prescriptions, pageInfo)
}

// GetByID 获取处方
func (h *PrescriptionHandler) GetByID(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	prescription, err := h.prescriptions.GetByID(sc, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "处方不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, prescription)
}

// Dispense 发药（生成销售单并扣减库存）
func (h *PrescriptionHandler) Dispense(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req DispenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	prescription, sale, err := h.prescriptions.Dispense(sc, uint(id), req.PaymentMethod, c.ClientIP())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "处方不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"prescription": prescription,
		"sale":         sale,
	})
}

// Cancel 作废处方
func (h *PrescriptionHandler) Cancel(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.prescriptions.Cancel(sc, uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "处方不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "处方已作废", nil)
}
