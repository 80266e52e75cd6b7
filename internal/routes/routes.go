package routes

import (
	"github.com/chachabrian/propnest-backend/internal/handlers"
	"github.com/chachabrian/propnest-backend/internal/middleware"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Tokens      *utils.JWTManager
	AuthLimiter *middleware.LimiterStore
	DataMode    string

	Auth       *services.AuthService
	Properties *services.PropertyService
	Bookings   *services.BookingService
	Payments   *services.PaymentService
	Chats      *services.ChatService
	Relay      *services.Relay
	Hub        *services.Hub
}

func SetupRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", handlers.Health(d.Relay, d.DataMode))

	api := r.Group("/api")
	requireAuth := middleware.AuthMiddleware(d.Tokens)
	ownerOnly := middleware.RequireRole(models.UserRoleOwner)

	auth := api.Group("/auth")
	if d.AuthLimiter != nil {
		auth.Use(middleware.RateLimit(d.AuthLimiter))
	}
	{
		auth.POST("/register", handlers.Register(d.Auth))
		auth.POST("/login", handlers.Login(d.Auth))
		auth.POST("/forgot-password", handlers.RequestPasswordReset(d.Auth))
		auth.POST("/reset-password", handlers.ResetPassword(d.Auth))
		auth.GET("/me", requireAuth, handlers.Me(d.Auth))
	}

	// Public catalogue
	api.GET("/properties", handlers.ListProperties(d.Properties))
	api.GET("/properties/nearby", handlers.GetNearbyProperties(d.Properties))
	api.GET("/properties/:id", handlers.GetProperty(d.Properties))
	api.GET("/properties/:id/quote", handlers.GetQuote(d.Bookings))
	api.GET("/properties/:id/availability", handlers.GetAvailability(d.Bookings))

	api.GET("/ws", requireAuth, handlers.WebSocketHandler(d.Hub))

	protected := api.Group("/")
	protected.Use(requireAuth)
	{
		properties := protected.Group("/properties")
		{
			properties.GET("/mine", ownerOnly, handlers.GetMyProperties(d.Properties))
			properties.POST("", ownerOnly, handlers.CreateProperty(d.Properties))
			properties.PUT("/:id", ownerOnly, handlers.UpdateProperty(d.Properties))
			properties.DELETE("/:id", ownerOnly, handlers.DeleteProperty(d.Properties))
			properties.POST("/:id/images", ownerOnly, handlers.UploadPropertyImage(d.Properties))
		}

		book := protected.Group("/book")
		{
			book.POST("/:propertyId", handlers.CreateBooking(d.Bookings))
			book.GET("/:bookingId", handlers.GetBooking(d.Bookings))
			book.PATCH("/:bookingId/accept", ownerOnly, handlers.AcceptBooking(d.Bookings))
			book.PATCH("/:bookingId/reject", ownerOnly, handlers.RejectBooking(d.Bookings))
		}

		bookings := protected.Group("/bookings")
		{
			bookings.GET("", ownerOnly, handlers.GetOwnerBookings(d.Bookings))
			bookings.GET("/my-bookings", handlers.GetMyBookings(d.Bookings))
		}

		payment := protected.Group("/payment")
		{
			payment.POST("/create-order", handlers.CreatePaymentOrder(d.Payments))
			payment.POST("/verify", handlers.VerifyPayment(d.Payments))
			payment.GET("/:bookingId", handlers.GetPayment(d.Payments))
		}

		chats := protected.Group("/chats")
		{
			chats.POST("", handlers.StartChat(d.Chats))
			chats.GET("", handlers.ListChats(d.Chats))
			chats.GET("/:id/messages", handlers.GetChatMessages(d.Chats))
			chats.POST("/:id/messages", handlers.SendChatMessage(d.Chats))
		}

		messages := protected.Group("/messages")
		{
			messages.POST("", handlers.SendDirectMessage(d.Chats))
			messages.GET("/inbox", handlers.GetInbox(d.Chats))
			messages.GET("/conversation/:userId", handlers.GetConversation(d.Chats))
			messages.GET("/unread-count", handlers.GetUnreadCount(d.Chats))
		}

		protected.GET("/presence/:userId", handlers.GetPresence(d.Relay))

		notifications := protected.Group("/notifications")
		{
			notifications.POST("/register-token", handlers.RegisterFCMToken(d.Auth))
			notifications.DELETE("/remove-token", handlers.RemoveFCMToken(d.Auth))
		}
	}
}
