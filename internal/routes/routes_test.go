package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/chachabrian/propnest-backend/internal/handlers"
	"github.com/chachabrian/propnest-backend/internal/logging"
	"github.com/chachabrian/propnest-backend/internal/middleware"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	ownerID  uint = 1
	seekerID uint = 3
	flatID   uint = 1

	keySecret = "route_secret"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := handlers.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testServer struct {
	router *gin.Engine
	tokens *utils.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, _ := store.NewFixture()
	require.NoError(t, store.Seed(context.Background(), s))

	log := logging.Discard()
	images, err := services.NewLocalImageStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	now := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	tokens := utils.NewJWTManager("route-test-secret", 7*24*time.Hour)
	relay := services.NewRelay(services.NewMemoryPresence(), s.Messages, s.Chats, log)
	notifier := services.NoopNotifier{}

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.ErrorHandler(log, true))
	SetupRoutes(r, Deps{
		Tokens:      tokens,
		AuthLimiter: nil,
		DataMode:    "fixture",
		Auth:        services.NewAuthService(s, tokens, nil, false, log),
		Properties:  services.NewPropertyService(s, images, log),
		Bookings:    services.NewBookingService(s, notifier, log).WithClock(func() time.Time { return now }),
		Payments:    services.NewPaymentService(s, services.FixtureGateway{}, "rzp_test_routes", keySecret, "INR", notifier, log),
		Chats:       services.NewChatService(s, relay),
		Relay:       relay,
		Hub:         services.NewHub(relay, []string{"*"}, false, log),
	})
	return &testServer{router: r, tokens: tokens}
}

func (ts *testServer) token(t *testing.T, id uint, role models.UserRole) string {
	t.Helper()
	tok, err := ts.tokens.GenerateToken(&models.User{Model: gorm.Model{ID: id}, Role: role})
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestRegisterAndDuplicate(t *testing.T) {
	ts := newTestServer(t)
	body := gin.H{"name": "Asha", "email": "asha@example.com", "password": "secret1", "role": "seeker"}

	w, out := ts.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, out["token"])

	w, out = ts.do(t, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email is already registered", out["error"])
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
		want string
	}{
		{"missing name", gin.H{"email": "a@b.co", "password": "secret1", "role": "owner"}, "name is required"},
		{"bad email", gin.H{"name": "A", "email": "nope", "password": "secret1", "role": "owner"}, "email must be a valid email"},
		{"short password", gin.H{"name": "A", "email": "a@b.co", "password": "123", "role": "owner"}, "password must be at least 6 characters"},
		{"bad role", gin.H{"name": "A", "email": "a@b.co", "password": "secret1", "role": "admin"}, "role must be one of owner, seeker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := ts.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, out["error"])
		})
	}
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)

	w, out := ts.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "seeker@propnest.test", "password": store.FixturePassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)

	w, out = ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := out["user"].(map[string]interface{})
	assert.Equal(t, "seeker@propnest.test", user["email"])

	w, _ = ts.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCannotBookOwnProperty(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.token(t, ownerID, models.UserRoleOwner)

	w, out := ts.do(t, http.MethodPost, "/api/book/1", owner, gin.H{"checkIn": "2025-01-10", "checkOut": "2025-01-12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot book your own property", out["error"])
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.token(t, ownerID, models.UserRoleOwner)
	seeker := ts.token(t, seekerID, models.UserRoleSeeker)

	w, out := ts.do(t, http.MethodPost, "/api/properties", owner, gin.H{
		"title": "Studio", "price": 1000, "location": "HSR Layout, Bengaluru", "type": "flat",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	propertyID := uint(out["property"].(map[string]interface{})["ID"].(float64))

	path := "/api/book/" + uintString(propertyID)
	w, out = ts.do(t, http.MethodPost, path, seeker, gin.H{"checkIn": "2025-01-10", "checkOut": "2025-01-12"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := out["booking"].(map[string]interface{})
	assert.Equal(t, float64(2000), booking["totalAmount"])
	assert.Equal(t, "pending", booking["status"])

	w, out = ts.do(t, http.MethodPost, path, seeker, gin.H{"checkIn": "2025-01-11", "checkOut": "2025-01-13"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Property is not available for the selected dates", out["error"])

	w, out = ts.do(t, http.MethodGet, "/api/bookings/my-bookings?status=pending", seeker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["data"], 1)
	assert.Equal(t, false, out["pagination"].(map[string]interface{})["hasNextPage"])

	w, _ = ts.do(t, http.MethodGet, "/api/bookings", seeker, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPaymentVerification(t *testing.T) {
	ts := newTestServer(t)
	seeker := ts.token(t, seekerID, models.UserRoleSeeker)

	w, out := ts.do(t, http.MethodPost, "/api/book/1", seeker, gin.H{"checkIn": "2025-02-01", "checkOut": "2025-02-03"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bookingID := out["booking"].(map[string]interface{})["ID"].(float64)

	w, out = ts.do(t, http.MethodPost, "/api/payment/create-order", seeker, gin.H{"bookingId": bookingID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orderID := out["orderId"].(string)
	assert.Equal(t, float64(500000), out["amount"])
	assert.Equal(t, "rzp_test_routes", out["keyId"])

	verify := gin.H{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_route_1",
		"razorpay_signature":  "bogus",
		"bookingId":           bookingID,
	}
	w, out = ts.do(t, http.MethodPost, "/api/payment/verify", seeker, verify)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid payment signature", out["error"])

	verify["razorpay_signature"] = services.PaymentSignature([]byte(keySecret), orderID, "pay_route_1")
	w, out = ts.do(t, http.MethodPost, "/api/payment/verify", seeker, verify)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "accepted", out["booking"].(map[string]interface{})["status"])
	assert.Equal(t, "completed", out["payment"].(map[string]interface{})["status"])
}

func TestPaginationLimit(t *testing.T) {
	ts := newTestServer(t)

	w, out := ts.do(t, http.MethodGet, "/api/properties?limit=51", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "limit must be between 1 and 50", out["error"])

	w, out = ts.do(t, http.MethodGet, "/api/properties?limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["data"], 2)
	assert.Equal(t, true, out["pagination"].(map[string]interface{})["hasNextPage"])
}

func TestOwnerOnlyRoutes(t *testing.T) {
	ts := newTestServer(t)
	seeker := ts.token(t, seekerID, models.UserRoleSeeker)

	w, out := ts.do(t, http.MethodPost, "/api/properties", seeker, gin.H{
		"title": "Room", "price": 500, "location": "Pune", "type": "pg",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only owners can do this", out["error"])

	owner2 := ts.token(t, 2, models.UserRoleOwner)
	w, _ = ts.do(t, http.MethodDelete, "/api/properties/1", owner2, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPropertyTypeValidation(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.token(t, ownerID, models.UserRoleOwner)

	w, out := ts.do(t, http.MethodPost, "/api/properties", owner, gin.H{
		"title": "Castle", "price": 500, "location": "Mysuru", "type": "castle",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "type must be one of flat, house, pg", out["error"])
}

func TestMessagesAndPresence(t *testing.T) {
	ts := newTestServer(t)
	seeker := ts.token(t, seekerID, models.UserRoleSeeker)
	owner := ts.token(t, ownerID, models.UserRoleOwner)

	w, _ := ts.do(t, http.MethodPost, "/api/messages", seeker, gin.H{"receiverId": ownerID, "content": "Is the flat free?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, out := ts.do(t, http.MethodGet, "/api/messages/unread-count", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), out["unreadCount"])

	w, out = ts.do(t, http.MethodGet, "/api/messages/conversation/3", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["messages"], 1)

	w, out = ts.do(t, http.MethodGet, "/api/presence/1", seeker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["online"])
}

func TestChatFlow(t *testing.T) {
	ts := newTestServer(t)
	seeker := ts.token(t, seekerID, models.UserRoleSeeker)

	w, out := ts.do(t, http.MethodPost, "/api/chats", seeker, gin.H{"propertyId": flatID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	chatID := out["chat"].(map[string]interface{})["ID"].(float64)

	path := "/api/chats/" + uintString(uint(chatID)) + "/messages"
	w, _ = ts.do(t, http.MethodPost, path, seeker, gin.H{"content": "Hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, out = ts.do(t, http.MethodGet, path, seeker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["messages"], 1)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w, out := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "fixture", out["dataMode"])
}

func TestInvalidPathParam(t *testing.T) {
	ts := newTestServer(t)

	w, out := ts.do(t, http.MethodGet, "/api/properties/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id", out["error"])
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
