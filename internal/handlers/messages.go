package handlers

import (
	"errors"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hospital-app-server/internal/models"
	"hospital-app-server/internal/scheduling"
	"hospital-app-server/internal/utils"
)

// MessageHandler handles messaging related requests.
type MessageHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(db *gorm.DB, log *zap.Logger) *MessageHandler {
	return &MessageHandler{DB: db, Log: log}
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	RecipientID string `json:"recipientId" binding:"required,uuid"`
	Subject     string `json:"subject" binding:"max=255"`
	Content     string `json:"content" binding:"required,max=5000"`
}

// SendMessage handles sending a new message.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if actor.ID == req.RecipientID {
		utils.BadRequest(c, "Cannot send a message to yourself")
		return
	}

	var recipient models.User
	if err := h.DB.First(&recipient, "id = ?", req.RecipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Recipient user not found")
		} else {
			utils.InternalServerError(c, "Database error verifying recipient")
		}
		return
	}
	if !recipient.IsActive {
		utils.UnprocessableEntity(c, "Recipient account is deactivated")
		return
	}
	if !models.CanMessage(actor.Role, recipient.Role) {
		utils.Forbidden(c, "You are not authorized to send a message to this user")
		return
	}

	message := models.Message{
		SenderID:   actor.ID,
		ReceiverID: recipient.ID,
		Subject:    req.Subject,
		Content:    req.Content,
		Status:     models.MessageStatusSent,
	}
	if err := h.DB.Create(&message).Error; err != nil {
		h.Log.Error("send message failed", zap.String("sender_id", actor.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to send message")
		return
	}
	utils.Created(c, "Message sent successfully", message)
}

// MessageListQuery narrows GET /messages to one conversation.
type MessageListQuery struct {
	WithUser string `form:"withUser" binding:"omitempty,uuid"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// GetMessagesForUser lists messages the caller sent or received, newest
// first. With ?withUser= it returns that conversation and marks the
// partner's unread messages as read.
func (h *MessageHandler) GetMessagesForUser(c *gin.Context) {
	var q MessageListQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.Message{})
		if q.WithUser != "" {
			return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
				actor.ID, q.WithUser, q.WithUser, actor.ID)
		}
		return db.Where("sender_id = ? OR receiver_id = ?", actor.ID, actor.ID)
	}

	var total int64
	if err := h.DB.Scopes(filter).Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to count messages")
		return
	}
	p := utils.NewPagination(q.Page, q.Limit, total)

	var messages []models.Message
	if err := h.DB.Scopes(filter).Order("created_at desc").
		Offset((p.Page - 1) * p.Limit).
		Limit(p.Limit).
		Find(&messages).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch messages")
		return
	}

	if q.WithUser != "" {
		if err := h.markRead(h.DB.Where("sender_id = ? AND receiver_id = ?", q.WithUser, actor.ID)); err != nil {
			h.Log.Warn("mark conversation read failed", zap.String("user_id", actor.ID), zap.Error(err))
		}
	}
	utils.Success(c, "Messages fetched successfully", gin.H{
		"messages":   messages,
		"pagination": p,
	})
}

// ConversationPreview summarises one conversation partner.
type ConversationPreview struct {
	Partner     models.UserSanitized `json:"partner"`
	LastMessage models.Message       `json:"lastMessage"`
	UnreadCount int64                `json:"unreadCount"`
}

// GetConversations lists conversation partners with the latest message and
// unread count, most recent first.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var partnerIDs []string
	err := h.DB.Raw(`
		SELECT DISTINCT partner_id FROM (
			SELECT receiver_id AS partner_id FROM messages WHERE sender_id = ?
			UNION
			SELECT sender_id AS partner_id FROM messages WHERE receiver_id = ?
		) AS partners`, actor.ID, actor.ID).Scan(&partnerIDs).Error
	if err != nil {
		h.Log.Error("load conversation partners failed", zap.String("user_id", actor.ID), zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch conversations")
		return
	}

	previews := make([]ConversationPreview, 0, len(partnerIDs))
	for _, pid := range partnerIDs {
		var partner models.User
		if err := h.DB.First(&partner, "id = ?", pid).Error; err != nil {
			continue
		}
		var last models.Message
		if err := h.DB.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			actor.ID, pid, pid, actor.ID).
			Order("created_at desc").First(&last).Error; err != nil {
			continue
		}
		var unread int64
		h.DB.Model(&models.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND status = ?", pid, actor.ID, models.MessageStatusSent).
			Count(&unread)

		previews = append(previews, ConversationPreview{
			Partner:     partner.Sanitize(),
			LastMessage: last,
			UnreadCount: unread,
		})
	}
	slices.SortFunc(previews, func(a, b ConversationPreview) int {
		return b.LastMessage.CreatedAt.Compare(a.LastMessage.CreatedAt)
	})
	utils.Success(c, "Conversations fetched successfully", previews)
}

// MarkMessageAsRead marks a received message as read. Only the recipient may do this.
func (h *MessageHandler) MarkMessageAsRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var message models.Message
	if err := h.DB.First(&message, "id = ?", c.Param("messageId")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Message not found")
		} else {
			utils.InternalServerError(c, "Database error")
		}
		return
	}
	if message.ReceiverID != actor.ID {
		utils.Forbidden(c, "You are not authorized to mark this message as read")
		return
	}
	if message.Status == models.MessageStatusRead {
		utils.Success(c, "Message already marked as read", message)
		return
	}

	now := time.Now().UTC()
	if err := h.markRead(h.DB.Where("id = ?", message.ID)); err != nil {
		utils.InternalServerError(c, "Failed to update message status")
		return
	}
	message.Status = models.MessageStatusRead
	message.ReadAt = &now
	utils.Success(c, "Message marked as read successfully", message)
}

func (h *MessageHandler) markRead(scope *gorm.DB) error {
	return scope.Model(&models.Message{}).
		Where("status = ?", models.MessageStatusSent).
		Updates(map[string]any{"status": models.MessageStatusRead, "read_at": time.Now().UTC()}).Error
}

// NewMessagesQuery represents the query params for polling new messages.
type NewMessagesQuery struct {
	Since string `form:"since" binding:"required"`
}

// GetNewMessages returns messages sent or received after ?since= (RFC 3339).
func (h *MessageHandler) GetNewMessages(c *gin.Context) {
	var q NewMessagesQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	since, err := time.Parse(time.RFC3339, q.Since)
	if err != nil {
		utils.ValidationFailed(c, []scheduling.FieldError{{Field: "since", Message: "must be an RFC 3339 timestamp"}})
		return
	}

	var messages []models.Message
	if err := h.DB.Where("(receiver_id = ? OR sender_id = ?) AND created_at > ?", actor.ID, actor.ID, since.UTC()).
		Order("created_at asc").
		Limit(200).
		Find(&messages).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch messages")
		return
	}
	utils.Success(c, "New messages fetched successfully", messages)
}
