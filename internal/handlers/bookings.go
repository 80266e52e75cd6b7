package handlers

import (
	"net/http"

	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type BookingInput struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

// CreateBooking requests a stay at the property in the path.
func CreateBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		propertyID, ok := uintParam(c, "propertyId")
		if !ok {
			return
		}
		var input BookingInput
		if !bindJSON(c, &input) {
			return
		}

		booking, err := bookings.Create(c.Request.Context(), propertyID, currentUserID(c), input.CheckIn, input.CheckOut)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"booking": booking})
	}
}

func AcceptBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "bookingId")
		if !ok {
			return
		}
		booking, err := bookings.Accept(c.Request.Context(), id, currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"booking": booking})
	}
}

func RejectBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "bookingId")
		if !ok {
			return
		}
		booking, err := bookings.Reject(c.Request.Context(), id, currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"booking": booking})
	}
}

func GetBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "bookingId")
		if !ok {
			return
		}
		booking, err := bookings.Get(c.Request.Context(), id, currentUserID(c))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"booking": booking})
	}
}

// GetOwnerBookings lists requests made on the caller's properties.
func GetOwnerBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		list, meta, err := bookings.ListForOwner(c.Request.Context(), currentUserID(c), c.Query("status"), page)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, pageResponse{Data: list, Pagination: meta})
	}
}

// GetMyBookings lists the caller's own requests.
func GetMyBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := pagination(c)
		if !ok {
			return
		}
		list, meta, err := bookings.ListForSeeker(c.Request.Context(), currentUserID(c), c.Query("status"), page)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, pageResponse{Data: list, Pagination: meta})
	}
}

func GetQuote(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		quote, err := bookings.Quote(c.Request.Context(), id, c.Query("checkIn"), c.Query("checkOut"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

// GetAvailability returns the ranges already held on a property.
func GetAvailability(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		ranges, err := bookings.Availability(c.Request.Context(), id, c.Query("from"), c.Query("to"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"propertyId": id, "booked": ranges})
	}
}
