package handlers

import (
	"errors"
	"strconv"
	"time"

	"pharmos/internal/middleware"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreatePatientRequest 患者建档请求
type CreatePatientRequest struct {
	Name        string     `json:"name" binding:"required"`
	Gender      string     `json:"gender"`
	Phone       *string    `json:"phone"`
	Email       *string    `json:"email"`
	Allergies   *string    `json:"allergies"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// PatientHandler 患者处理器
type PatientHandler struct {
	patients *services.PatientService
}

func NewPatientHandler(patients *services.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

// Create 患者建档
func (h *PatientHandler) Create(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	patient, err := h.patients.Create(sc, req.Name, req.Gender, req.Phone, req.Email, req.Allergies, req.DateOfBirth)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, patient)
}

// GetAll 分页获取患者列表
func (h *PatientHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	keyword := c.Query("keyword")

	patients, total, err := h.patients.GetWithPage(sc, keyword, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, patients, pageInfo)
}

// GetByID 获取患者
func (h *PatientHandler) GetByID(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	patient, err := h.patients.GetByID(sc, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "患者不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, patient)
}

// Update 更新患者档案
func (h *PatientHandler) Update(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	delete(updates, "tenant_id")
	delete(updates, "code")

	patient, err := h.patients.Update(sc, uint(id), updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "患者不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, patient)
}

// Archive 归档患者
func (h *PatientHandler) Archive(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.patients.Archive(sc, uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "患者不存在")
			return
		}
		response.ServerError(c, "归档失败")
		return
	}

	response.SuccessWithMessage(c, "患者已归档", nil)
}
