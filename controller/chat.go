package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"convochat/model"
	"convochat/service"
)

// ChatController serves conversations and their messages.
type ChatController struct {
	chat *service.ChatService
}

func NewChatController(chat *service.ChatService) *ChatController {
	return &ChatController{chat: chat}
}

type userMessagePayload struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Edited    bool      `json:"edited"`
}

type assistantMessagePayload struct {
	ID         uint      `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Superseded bool      `json:"superseded"`
}

func userMessageJSON(m *model.Message) userMessagePayload {
	return userMessagePayload{ID: m.ID, Content: m.Content, CreatedAt: m.CreatedAt, Edited: m.Edited}
}

func assistantMessageJSON(m *model.Message) assistantMessagePayload {
	return assistantMessagePayload{ID: m.ID, Content: m.Content, CreatedAt: m.CreatedAt, Superseded: m.Superseded}
}

func (ch *ChatController) List(c *gin.Context) {
	convs, err := ch.chat.ListConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (ch *ChatController) Create(c *gin.Context) {
	conv, err := ch.chat.CreateConversation(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	logger.Infof("[%s] Conversation %d created", c.GetString("requestId"), conv.ID)
	c.JSON(http.StatusCreated, conv)
}

func (ch *ChatController) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := ch.chat.GetConversation(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	msgs := detail.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         detail.Conversation.ID,
		"title":      detail.Conversation.Title,
		"created_at": detail.Conversation.CreatedAt,
		"updated_at": detail.Conversation.UpdatedAt,
		"messages":   msgs,
	})
}

func (ch *ChatController) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := ch.chat.DeleteConversation(c.Request.Context(), id, currentUserID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *ChatController) Rename(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	conv, err := ch.chat.RenameConversation(c.Request.Context(), id, currentUserID(c), input.Title)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (ch *ChatController) SendMessage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	ex, err := ch.chat.SendMessage(c.Request.Context(), id, currentUserID(c), input.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if ex.Outcome != service.OutcomeCompleted {
		logger.Warnf("[%s] Conversation %d answered with a fallback reply (%s)", c.GetString("requestId"), id, ex.Outcome)
	}
	c.JSON(http.StatusCreated, gin.H{
		"user_message":      userMessageJSON(ex.UserMessage),
		"assistant_message": assistantMessageJSON(ex.AssistantMessage),
		"degraded":          ex.Outcome != service.OutcomeCompleted,
		"outcome":           ex.Outcome,
	})
}

func (ch *ChatController) Regenerate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		MessageID uint `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	regen, err := ch.chat.RegenerateReply(c.Request.Context(), id, currentUserID(c), input.MessageID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := gin.H{
		"assistant_message": assistantMessageJSON(regen.AssistantMessage),
		"degraded":          regen.Outcome != service.OutcomeCompleted,
		"outcome":           regen.Outcome,
	}
	if regen.Superseded != nil {
		resp["superseded_message_id"] = regen.Superseded.ID
	}
	c.JSON(http.StatusCreated, resp)
}

func (ch *ChatController) EditMessage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	msg, err := ch.chat.EditMessage(c.Request.Context(), id, currentUserID(c), input.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               msg.ID,
		"content":          msg.Content,
		"created_at":       msg.CreatedAt,
		"edited":           msg.Edited,
		"edited_at":        msg.EditedAt,
		"previous_content": msg.PreviousContent,
	})
}
