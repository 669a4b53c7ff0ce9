package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"maktab/backend/internal/auth"
	"maktab/backend/internal/domain"
	"maktab/backend/internal/messaging"
	"maktab/backend/internal/service"
	"maktab/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 认证错误
	auth.ErrInvalidCredentials: "编号或密码错误",
	auth.ErrUserInactive:       "账号已停用",
	auth.ErrUserNotFound:       "账号不存在",
	auth.ErrCodeExists:         "该登录编号已被使用",
	auth.ErrInvalidRole:        "角色无效",
	auth.ErrPasswordTooShort:   "密码至少需要 8 个字符",
	auth.ErrPasswordTooLong:    "密码最多 72 个字符",

	// 账号字段错误
	domain.ErrNameRequired: "姓名不能为空",
	domain.ErrInvalidCode:  "登录编号格式无效",
	domain.ErrCodeTooShort: "登录编号太短",
	domain.ErrCodeTooLong:  "登录编号太长",

	// 消息错误
	storage.ErrMessageNotFound: "消息不存在",

	// 花名册错误
	service.ErrUnknownRole:  "未知的用户角色",
	storage.ErrUserNotFound: "账号不存在",

	// 考勤错误
	service.ErrEmptyBatch:      "考勤批次不能为空",
	service.ErrInvalidDate:     "日期格式无效，应为 YYYY-MM-DD",
	service.ErrInvalidStatus:   "考勤状态无效",
	service.ErrStudentRequired: "学生姓名不能为空",

	// 学习记录错误
	service.ErrLogStudentRequired: "学生编号不能为空",
	storage.ErrLogNotFound:        "进度记录不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// respondEngineError 按引擎错误类别映射 HTTP 状态码。
//
// 引擎把错误同时写进快照的 lastError 字段，HTTP 层这里只负责
// 状态码，前端以快照为准渲染提示。
func respondEngineError(c *gin.Context, err error) {
	var engErr *messaging.EngineError
	if !errors.As(err, &engErr) {
		InternalError(c, MsgOperationFailed)
		return
	}

	switch engErr.Kind {
	case messaging.ErrorValidation:
		BadRequest(c, engErr.Reason)
	case messaging.ErrorNotFound:
		NotFound(c, engErr.Reason)
	case messaging.ErrorStoreUnavailable:
		ServiceUnavailable(c, MsgStoreUnavailable)
	default:
		InternalError(c, MsgOperationFailed)
	}
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgOperationFailed  = "操作失败，请稍后重试"
	MsgStoreUnavailable = "存储服务暂时不可用"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "编号或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"
	MsgPermissionDenied   = "权限不足"

	// 消息相关
	MsgMessageSendFailed  = "发送消息失败"
	MsgMessageNotFound    = "消息不存在"
	MsgMessageListFailed  = "获取消息列表失败"
	MsgMessageReadFailed  = "标记已读失败"
	MsgInvalidFolder      = "未知的文件夹，仅支持 inbox 和 sent"
	MsgRecipientForbidden = "该收件人不在您的可选范围内"

	// 考勤与学习记录相关
	MsgAttendanceSaveFailed = "保存考勤失败"
	MsgAttendanceListFailed = "获取考勤记录失败"
	MsgLogSaveFailed        = "保存学习记录失败"
	MsgLogListFailed        = "获取学习记录失败"

	// 管理相关
	MsgUserCreateFailed = "创建账号失败"
	MsgUserListFailed   = "获取账号列表失败"
	MsgStatisticsFailed = "获取统计信息失败"
)
