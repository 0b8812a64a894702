package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"tix/src/db"
	"tix/src/models"
	"tix/src/types"
	"tix/src/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	Token *string
}

const (
	origin = "http://localhost:3000"
)

// stubAuthMiddleware stands in for the real auth middleware so handler
// validation can be exercised without a database.
func stubAuthMiddleware(ctx *gin.Context) {
	ctx.Set("id", uint(1))
	ctx.Set("email", "someone@example.com")
	ctx.Set("role", "user")
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", eventDateTimeValidatorFunc)
		v.RegisterValidation("ltdate", ltfield)
	}

	token, err := generateJWT(&models.User{ID: 42, Email: "someone@example.com", Role: "user"})
	assert.Nil(s.T(), err)
	s.Token = &token
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestJWTRoundTrip() {
	token := *s.Token
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})

	assert.Nil(s.T(), err)
	assert.True(s.T(), tkn.Valid)
	assert.Equal(s.T(), "42", claims.Subject)
	assert.Equal(s.T(), "someone@example.com", claims.Username)
}

func (s *TestSuite) TestAuthValidation() {
	router := setupRouter()
	guestAuthRoutes(router)

	s.Run("Should reject a login without a valid email", func() {
		w := httptest.NewRecorder()
		jbody := map[string]any{"email": "not-an-email"}
		sbody, _ := json.Marshal(&jbody)
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(string(sbody)))
		req.Header.Set("origin", origin)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a register without a body", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader("{}"))
		req.Header.Set("origin", origin)
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestOrderValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(stubAuthMiddleware)
	orderHandlers(apiv1)

	s.Run("Should return a 400 error for an order without items", func() {
		w := httptest.NewRecorder()
		body, _ := json.Marshal(&types.CreateOrderRequestBody{})
		req, _ := http.NewRequest("POST", "/api/v1/orders", strings.NewReader(string(body)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)

		rbytes, err := io.ReadAll(w.Body)
		assert.Nil(s.T(), err)
		errMsg := gjson.Get(string(rbytes), "error").String()
		assert.NotEmpty(s.T(), errMsg)
	})

	s.Run("Should return a 400 error for a hold above the cap", func() {
		w := httptest.NewRecorder()
		body, _ := json.Marshal(&types.CreateOrderRequestBody{
			Items:       []types.TicketSelection{{TicketTypeID: 1, Qty: 2}},
			HoldMinutes: 120,
		})
		req, _ := http.NewRequest("POST", "/api/v1/orders", strings.NewReader(string(body)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should return a 400 error for an extend with a past deadline", func() {
		w := httptest.NewRecorder()
		body, _ := json.Marshal(&types.ExtendOrderRequestBody{
			ReservedUntil: "2020-01-01 10:00:00 +00:00",
		})
		req, _ := http.NewRequest("PUT", "/api/v1/orders/1/extend", strings.NewReader(string(body)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func newMockDB() sqlmock.Sqlmock {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	db.NewDB(gormDB)
	return mock
}

// Two gates scanning the same code race past the initial read; the loser's
// conditional update touches zero rows and must come back as a conflict.
func (s *TestSuite) TestCheckInConflict() {
	os.Setenv("TICKET_CODE_KEY", "0123456789abcdef0123456789abcdef")
	defer os.Unsetenv("TICKET_CODE_KEY")

	code, err := utils.TicketCode(1, 2)
	assert.Nil(s.T(), err)

	mock := newMockDB()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "attendees"`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "order_id", "checked_in_at"}).
			AddRow(2, 1, nil))
	mock.ExpectQuery(`SELECT \* FROM "orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(1, "paid"))
	mock.ExpectExec(`UPDATE "attendees"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(stubAuthMiddleware)
	attendeeHandlers(apiv1)

	w := httptest.NewRecorder()
	body, _ := json.Marshal(&types.CheckInRequestBody{Code: code})
	req, _ := http.NewRequest("POST", "/api/v1/check-in", strings.NewReader(string(body)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 409, w.Code)
	assert.Nil(s.T(), mock.ExpectationsWereMet())
}

func (s *TestSuite) TestUnauthorizedRequest() {
	router := setupRouter()
	apiv1 := apiv1Group(router)

	apiv1.Use(func(ctx *gin.Context) {
		bearerToken := ctx.Request.Header.Get("Authorization")
		if !strings.HasPrefix(bearerToken, "Bearer") {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	})
	orderHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/orders", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestStripeWebhookSignature() {
	router := setupRouter()
	stripeWebhookRoute(router)

	w := httptest.NewRecorder()
	payload := `{"id":"evt_test","type":"payment_intent.succeeded"}`
	req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(payload))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
