// internal/api/handlers.go
package api

import (
	"net/http"
	"time"

	"notification-gateway/internal/admission"
	apperrors "notification-gateway/internal/common/errors"
	"notification-gateway/internal/notification"

	"github.com/gin-gonic/gin"
)

// createNotificationRequest is the POST /notifications body.
type createNotificationRequest struct {
	NotificationType string                 `json:"notification_type" binding:"required"`
	UserID           string                 `json:"user_id" binding:"required"`
	TemplateCode     string                 `json:"template_code" binding:"required"`
	Variables        variablesPayload       `json:"variables" binding:"required"`
	RequestID        string                 `json:"request_id" binding:"required"`
	Priority         int                    `json:"priority" binding:"required,min=1,max=10"`
	CustomMetadata   map[string]interface{} `json:"custom_metadata"`
}

type variablesPayload struct {
	Name string                 `json:"name" binding:"required"`
	Link string                 `json:"link" binding:"required"`
	Meta map[string]interface{} `json:"meta"`
}

// updateStatusRequest is the internal POST /notification_status body.
type updateStatusRequest struct {
	NotificationID string `json:"notification_id" binding:"required"`
	Status         string `json:"status" binding:"required"`
	Error          string `json:"error"`
}

// apiResponse is the standard envelope on every response.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
}

type notificationData struct {
	NotificationID string              `json:"notification_id"`
	Status         notification.Status `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
}

type notificationStatusData struct {
	NotificationID   string              `json:"notification_id"`
	Status           notification.Status `json:"status"`
	NotificationType notification.Type   `json:"notification_type"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Attempts         int                 `json:"attempts"`
	ErrorMessage     string              `json:"error_message,omitempty"`
}

func errorResponse(msg string) apiResponse {
	return apiResponse{Success: false, Error: msg, Message: msg}
}

func (s *Server) handleCreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}

	notificationType, err := notification.ParseType(req.NotificationType)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	// Template-level variable validation at the boundary, before any
	// resource is touched.
	variablesDoc := map[string]interface{}{
		"name": req.Variables.Name,
		"link": req.Variables.Link,
	}
	if req.Variables.Meta != nil {
		variablesDoc["meta"] = req.Variables.Meta
	}
	if err := s.registry.Validate(req.TemplateCode, variablesDoc); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	n, replayed, err := s.coordinator.Admit(c.Request.Context(), admission.Request{
		Spec: notification.Spec{
			Type:         notificationType,
			UserID:       req.UserID,
			TemplateCode: req.TemplateCode,
			Variables: notification.Variables{
				Name: req.Variables.Name,
				Link: req.Variables.Link,
				Meta: req.Variables.Meta,
			},
			RequestID:      req.RequestID,
			Priority:       req.Priority,
			CustomMetadata: req.CustomMetadata,
		},
		CallerID:      callerIdentity(c),
		CorrelationID: c.GetString(ctxKeyCorrelationID),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	message := "Notification queued successfully"
	if replayed {
		message = "Notification already exists (idempotent request)"
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data: notificationData{
			NotificationID: n.ID,
			Status:         n.Status,
			CreatedAt:      n.CreatedAt,
		},
		Message: message,
	})
}

func (s *Server) handleGetNotification(c *gin.Context) {
	n, err := s.coordinator.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data: notificationStatusData{
			NotificationID:   n.ID,
			Status:           n.Status,
			NotificationType: n.Type,
			CreatedAt:        n.CreatedAt,
			UpdatedAt:        n.UpdatedAt,
			Attempts:         n.Attempts,
			ErrorMessage:     n.ErrorMessage,
		},
		Message: "Status retrieved successfully",
	})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}

	status, err := notification.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	n, err := s.reporter.Report(c.Request.Context(), req.NotificationID, status, req.Error)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data: notificationData{
			NotificationID: n.ID,
			Status:         n.Status,
			CreatedAt:      n.CreatedAt,
		},
		Message: "Status updated successfully",
	})
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	stdErr, ok := apperrors.AsStandard(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case apperrors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case apperrors.ErrCodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case apperrors.ErrCodeNotificationNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeIdempotencyConflict, apperrors.ErrCodeInvalidStatusTransition:
		status = http.StatusConflict
	case apperrors.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	case apperrors.ErrCodePublishFailed:
		status = http.StatusBadGateway
	}

	c.JSON(status, apiResponse{
		Success: false,
		Error:   string(stdErr.Code),
		Message: stdErr.Message,
	})
}
