package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/middleware"
	"maktab/backend/internal/monitoring"
	"maktab/backend/internal/service"
)

// AttendanceHandler 处理考勤相关的 HTTP 请求
type AttendanceHandler struct {
	attendance *service.AttendanceService
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

// NewAttendanceHandler 创建考勤处理器
func NewAttendanceHandler(attendance *service.AttendanceService, metrics *monitoring.Metrics, log *zap.Logger) *AttendanceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttendanceHandler{
		attendance: attendance,
		metrics:    metrics,
		log:        log,
	}
}

type attendanceBatchRequest struct {
	Date    string                    `json:"date" binding:"required"`
	Entries []service.AttendanceEntry `json:"entries" binding:"required"`
}

// SaveBatch 保存整批考勤。
//
// 教师在花名册界面为每个学生标记状态后一次性提交；校验同步完成，
// 落盘交给工作池异步执行，响应立即返回已构建的记录。
func (h *AttendanceHandler) SaveBatch(c *gin.Context) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req attendanceBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	records, err := h.attendance.SaveBatchAsync(uc.ID, req.Date, req.Entries)
	if err != nil {
		switch err {
		case service.ErrEmptyBatch, service.ErrInvalidDate, service.ErrInvalidStatus, service.ErrStudentRequired:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to save attendance batch",
				zap.String("teacher_id", uc.ID),
				zap.String("date", req.Date),
				zap.Error(err),
			)
			InternalError(c, MsgAttendanceSaveFailed)
		}
		return
	}

	if h.metrics != nil {
		counts := map[string]int{}
		for _, r := range records {
			counts[string(r.Status)]++
		}
		for status, n := range counts {
			h.metrics.RecordAttendance(status, n)
		}
	}

	Created(c, gin.H{"records": records})
}

// ListByTeacher 查询教师提交的考勤记录，支持 from/to 日期范围
func (h *AttendanceHandler) ListByTeacher(c *gin.Context) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	teacherID := uc.ID
	if id := c.Query("teacherId"); id != "" && uc.Role == domain.RoleAdmin {
		teacherID = id
	}

	records, err := h.attendance.ListByTeacher(teacherID, c.Query("from"), c.Query("to"))
	if err != nil {
		if err == service.ErrInvalidDate {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to list attendance",
			zap.String("teacher_id", teacherID),
			zap.Error(err),
		)
		InternalError(c, MsgAttendanceListFailed)
		return
	}

	Success(c, gin.H{"records": records})
}

// ListByStudent 查询某个学生的考勤历史
func (h *AttendanceHandler) ListByStudent(c *gin.Context) {
	student := c.Param("name")
	if student == "" {
		BadRequest(c, GetErrorMessage(service.ErrStudentRequired))
		return
	}

	records, err := h.attendance.ListByStudent(student, c.Query("from"), c.Query("to"))
	if err != nil {
		if err == service.ErrInvalidDate {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to list student attendance",
			zap.String("student", student),
			zap.Error(err),
		)
		InternalError(c, MsgAttendanceListFailed)
		return
	}

	Success(c, gin.H{"records": records})
}
