package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/messaging"
	"maktab/backend/internal/middleware"
	"maktab/backend/internal/monitoring"
	"maktab/backend/internal/service"
)

// MessageHandler 处理消息引擎相关的 HTTP 请求。
//
// 每个登录用户持有一个长活的消息引擎会话（见 messaging.Registry），
// 所有端点都返回引擎的完整展示快照，前端以快照为唯一渲染依据。
type MessageHandler struct {
	registry *messaging.Registry
	roster   *service.RosterService
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(registry *messaging.Registry, roster *service.RosterService, metrics *monitoring.Metrics, log *zap.Logger) *MessageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageHandler{
		registry: registry,
		roster:   roster,
		metrics:  metrics,
		log:      log,
	}
}

type composeRequest struct {
	Subject       string      `json:"subject"`
	Content       string      `json:"content"`
	RecipientID   string      `json:"recipientId"`
	RecipientRole domain.Role `json:"recipientRole"`
}

type replyRequest struct {
	Content string `json:"content"`
}

// engine 取出当前用户的引擎会话
func (h *MessageHandler) engine(c *gin.Context) (*messaging.Engine, domain.UserContext, bool) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return nil, domain.UserContext{}, false
	}
	return h.registry.Engine(uc.ID), uc, true
}

// List 返回指定文件夹的消息列表。
//
// folder 查询参数缺省为 inbox；切换文件夹总是触发一次完整重载，
// 并清除选中和撰写状态。
func (h *MessageHandler) List(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}

	folder := messaging.Folder(c.DefaultQuery("folder", string(messaging.FolderInbox)))
	if err := eng.SwitchFolder(uc, folder); err != nil {
		respondEngineError(c, err)
		return
	}

	Success(c, eng.Snapshot())
}

// State 返回当前会话的展示快照，不触发任何加载
func (h *MessageHandler) State(c *gin.Context) {
	eng, _, ok := h.engine(c)
	if !ok {
		return
	}
	Success(c, eng.Snapshot())
}

// Refresh 强制重新加载当前文件夹
func (h *MessageHandler) Refresh(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}
	eng.Refresh(uc)
	Success(c, eng.Snapshot())
}

// StartCompose 进入撰写状态
func (h *MessageHandler) StartCompose(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}
	eng.StartCompose(uc)
	Success(c, eng.Snapshot())
}

// CancelCompose 放弃草稿并回到 Idle
func (h *MessageHandler) CancelCompose(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}
	eng.CancelCompose(uc)
	Success(c, eng.Snapshot())
}

// Compose 发送一条新消息。
//
// 收件人必须在当前用户的可选收件人目录内：管理员可寄给所有人，
// 教师限于管理员和本人学生，学生限于管理员和自己的教师。
func (h *MessageHandler) Compose(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}

	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if req.RecipientID != "" {
		allowed, err := h.roster.CanAddress(uc, req.RecipientID, req.RecipientRole)
		if err != nil {
			h.log.Error("recipient check failed", zap.Error(err))
			InternalError(c, MsgMessageSendFailed)
			return
		}
		if !allowed {
			Forbidden(c, MsgRecipientForbidden)
			return
		}
	}

	err := eng.Compose(uc, messaging.Draft{
		Subject:       req.Subject,
		Content:       req.Content,
		RecipientID:   req.RecipientID,
		RecipientRole: req.RecipientRole,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMessageSent(string(uc.Role))
	}
	Created(c, eng.Snapshot())
}

// Select 选中一条消息并展开线程。
//
// 收件箱里选中未读消息会同步标记已读，这是阅读即已读语义。
func (h *MessageHandler) Select(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}

	if err := eng.SelectMessage(uc, c.Param("id")); err != nil {
		respondEngineError(c, err)
		return
	}

	Success(c, eng.Snapshot())
}

// ClearSelection 取消选中回到列表
func (h *MessageHandler) ClearSelection(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}
	eng.ClearSelection(uc)
	Success(c, eng.Snapshot())
}

// MarkRead 将一条消息标记为已读
func (h *MessageHandler) MarkRead(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}

	if err := eng.MarkAsRead(uc, c.Param("id")); err != nil {
		respondEngineError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMessageRead()
	}
	Success(c, eng.Snapshot())
}

// Reply 向当前选中的消息追加回复
func (h *MessageHandler) Reply(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := eng.Reply(uc, req.Content); err != nil {
		respondEngineError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMessageReplied()
	}
	Created(c, eng.Snapshot())
}

// Delete 删除一条消息及其全部回复。
//
// 需要 confirm=true 查询参数二次确认，未确认的请求不会执行删除。
func (h *MessageHandler) Delete(c *gin.Context) {
	eng, uc, ok := h.engine(c)
	if !ok {
		return
	}

	confirmed := c.Query("confirm") == "true"
	if err := eng.Delete(uc, c.Param("id"), confirmed); err != nil {
		respondEngineError(c, err)
		return
	}

	if confirmed && h.metrics != nil {
		h.metrics.RecordMessageDeleted()
	}
	Success(c, eng.Snapshot())
}
