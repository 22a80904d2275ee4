package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/cloud-kitchen/database"
	"github.com/yeremiapane/cloud-kitchen/middlewares"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/services"
)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	db       *gorm.DB
	store    *services.GormOrderStore
	checkout *services.CheckoutService
	status   *services.OrderStatusService
	items    []models.MenuItem
}

func setupTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	items := []models.MenuItem{
		{Name: "Veg Biryani", Category: "biryani", Price: 100, Available: true, Veg: true},
		{Name: "Garlic Naan", Category: "breads", Price: 50, Available: true, Veg: true},
		{Name: "Chicken Tikka", Category: "starters", Price: 300, Available: true},
	}
	require.NoError(t, db.Create(&items).Error)

	store := services.NewGormOrderStore(db)
	return &testEnv{
		db:       db,
		store:    store,
		checkout: services.NewCheckoutService(store, services.NewSequenceDisplayID(1000), true, 5*time.Second),
		status:   services.NewOrderStatusService(store, nil, 5*time.Second),
		items:    items,
	}
}

// asRole stands in for the auth middleware.
func asRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middlewares.ContextUsername, "tester")
		c.Set(middlewares.ContextRole, role)
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func newAuthRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
