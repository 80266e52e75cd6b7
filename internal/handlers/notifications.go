package handlers

import (
	"net/http"

	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type FCMTokenInput struct {
	FCMToken string `json:"fcmToken" binding:"required"`
}

// RegisterFCMToken registers or replaces the caller's push token.
func RegisterFCMToken(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input FCMTokenInput
		if !bindJSON(c, &input) {
			return
		}
		if err := auth.SetDeviceToken(c.Request.Context(), currentUserID(c), input.FCMToken); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FCM token registered successfully"})
	}
}

// RemoveFCMToken clears the caller's push token, e.g. on logout.
func RemoveFCMToken(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.SetDeviceToken(c.Request.Context(), currentUserID(c), ""); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FCM token removed successfully"})
	}
}
