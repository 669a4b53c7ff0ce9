package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/monitoring"
	"maktab/backend/internal/service"
	"maktab/backend/internal/storage"
)

// StudentLogHandler 处理学生背诵进度记录的 HTTP 请求
type StudentLogHandler struct {
	logs    *service.StudentLogService
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewStudentLogHandler 创建进度记录处理器
func NewStudentLogHandler(logs *service.StudentLogService, metrics *monitoring.Metrics, log *zap.Logger) *StudentLogHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StudentLogHandler{
		logs:    logs,
		metrics: metrics,
		log:     log,
	}
}

// Append 追加一条进度记录，日期留空时取服务时区的当天
func (h *StudentLogHandler) Append(c *gin.Context) {
	var input service.AppendLogInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	entry, err := h.logs.Append(input)
	if err != nil {
		switch err {
		case service.ErrLogStudentRequired, service.ErrInvalidDate:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to append student log",
				zap.String("student", input.StudentID),
				zap.Error(err),
			)
			InternalError(c, MsgLogSaveFailed)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordStudentLog()
	}
	Created(c, entry)
}

// List 返回某个学生的全部进度记录，按日期倒序
func (h *StudentLogHandler) List(c *gin.Context) {
	studentID := c.Param("studentId")
	if studentID == "" {
		BadRequest(c, GetErrorMessage(service.ErrLogStudentRequired))
		return
	}

	entries, err := h.logs.List(studentID)
	if err != nil {
		h.log.Error("failed to list student logs",
			zap.String("student", studentID),
			zap.Error(err),
		)
		InternalError(c, MsgLogListFailed)
		return
	}

	Success(c, gin.H{"logs": entries})
}

// Delete 删除一条进度记录
func (h *StudentLogHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.logs.Delete(id); err != nil {
		switch err {
		case storage.ErrLogNotFound:
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to delete student log",
				zap.String("log_id", id),
				zap.Error(err),
			)
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	NoContent(c)
}
