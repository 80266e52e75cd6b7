package handlers

import (
	"net/http"

	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=owner seeker"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=6"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func Register(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterInput
		if !bindJSON(c, &input) {
			return
		}

		result, err := auth.Register(c.Request.Context(), services.RegisterInput{
			Name:     input.Name,
			Email:    input.Email,
			Password: input.Password,
			Role:     models.UserRole(input.Role),
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func Login(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if !bindJSON(c, &input) {
			return
		}

		result, err := auth.Login(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func Me(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Me(c.Request.Context(), currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// RequestPasswordReset mails a one-time code for resetting the password.
func RequestPasswordReset(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ForgotPasswordInput
		if !bindJSON(c, &input) {
			return
		}

		if err := auth.RequestPasswordReset(c.Request.Context(), input.Email); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password reset code sent to your email"})
	}
}

func ResetPassword(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ResetPasswordInput
		if !bindJSON(c, &input) {
			return
		}

		if err := auth.ResetPassword(c.Request.Context(), input.Email, input.OTP, input.NewPassword); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
	}
}
