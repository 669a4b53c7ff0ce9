package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/middleware"
	"maktab/backend/internal/service"
)

// RosterHandler 处理收件人目录和学生名单查询
type RosterHandler struct {
	roster *service.RosterService
	log    *zap.Logger
}

// NewRosterHandler 创建花名册处理器
func NewRosterHandler(roster *service.RosterService, log *zap.Logger) *RosterHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RosterHandler{roster: roster, log: log}
}

// Directory 返回当前用户的可选收件人目录。
//
// 目录按角色裁剪：管理员看到全员，教师看到管理员和本人学生，
// 学生看到管理员和自己的教师。自己永远不在目录里。
func (h *RosterHandler) Directory(c *gin.Context) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	recipients, err := h.roster.Recipients(uc)
	if err != nil {
		switch err {
		case service.ErrUnknownRole:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to load recipient directory",
				zap.String("user_id", uc.ID),
				zap.Error(err),
			)
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	Success(c, gin.H{"recipients": recipients})
}

// Students 返回当前教师名下的学生名单
func (h *RosterHandler) Students(c *gin.Context) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	teacherID := uc.ID
	if id := c.Query("teacherId"); id != "" && uc.Role == domain.RoleAdmin {
		teacherID = id
	}

	students, err := h.roster.Students(teacherID)
	if err != nil {
		h.log.Error("failed to list students",
			zap.String("teacher_id", teacherID),
			zap.Error(err),
		)
		InternalError(c, MsgUserListFailed)
		return
	}

	Success(c, gin.H{"students": students})
}
