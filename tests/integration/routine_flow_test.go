package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/thrivelab/thrive/backend/internal/activity"
	"github.com/thrivelab/thrive/backend/internal/auth"
	"github.com/thrivelab/thrive/backend/internal/categories"
	"github.com/thrivelab/thrive/backend/internal/routine"
	"github.com/thrivelab/thrive/backend/internal/server"
	"github.com/thrivelab/thrive/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	integrationSecret = "integration-secret"
	jsonContentType   = "application/json"
)

type scriptedGenerator struct{}

func (scriptedGenerator) GenerateRoutine(ctx context.Context, prompt string) (string, error) {
	return "1. Drink water\n- Stretch", nil
}

func TestRegisterSaveToggleGraphFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&activity.Activity{}, &routine.CacheEntry{}, &users.User{}, &categories.Category{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	tokens := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(integrationSecret),
		Issuer:        "thrive-auth",
		Audience:      "thrive-api",
	})
	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build users service: %v", err)
	}
	activityService, err := activity.NewService(activity.ServiceConfig{
		Database:   db,
		IDProvider: activity.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build activity service: %v", err)
	}
	routineService, err := routine.NewService(routine.ServiceConfig{
		Database:   db,
		Generator:  scriptedGenerator{},
		IDProvider: activity.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build routine service: %v", err)
	}
	categoryService, err := categories.NewService(db)
	if err != nil {
		testContext.Fatalf("failed to build category service: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:    tokens,
		UsersService:    usersService,
		ActivityService: activityService,
		RoutineService:  routineService,
		CategoryService: categoryService,
		Logger:          zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	// Register an account and capture the session token.
	registerBody, _ := json.Marshal(map[string]string{
		"name":     "Casey Doe",
		"username": "caseydoe",
		"password": "long-enough-password",
	})
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(registerBody))
	request.Header.Set("Content-Type", jsonContentType)
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusCreated {
		testContext.Fatalf("register failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &session); err != nil {
		testContext.Fatalf("failed to decode session: %v", err)
	}

	authorized := func(method, path string, body []byte) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(method, path, bytes.NewReader(body))
		request.Header.Set("Content-Type", jsonContentType)
		request.Header.Set("Authorization", "Bearer "+session.Token)
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	// Save a two-activity batch; both records must share one tag.
	saveBody, _ := json.Marshal(map[string][]string{"activities": {"A", "B"}})
	response := authorized(http.MethodPost, "/api/activities", saveBody)
	if response.Code != http.StatusCreated {
		testContext.Fatalf("save failed: %d %s", response.Code, response.Body.String())
	}
	var saved struct {
		Data []struct {
			ID  string `json:"id"`
			Tag string `json:"tag"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &saved); err != nil {
		testContext.Fatalf("failed to decode save response: %v", err)
	}
	if len(saved.Data) != 2 || saved.Data[0].Tag != saved.Data[1].Tag {
		testContext.Fatalf("expected two records sharing one tag, got %+v", saved.Data)
	}

	// Complete activity A once; the immediate repeat must conflict.
	toggleBody, _ := json.Marshal(map[string]bool{"complete": true})
	togglePath := "/api/activities/" + saved.Data[0].ID + "/completion"
	if response := authorized(http.MethodPost, togglePath, toggleBody); response.Code != http.StatusOK {
		testContext.Fatalf("first complete failed: %d %s", response.Code, response.Body.String())
	}
	if response := authorized(http.MethodPost, togglePath, toggleBody); response.Code != http.StatusConflict {
		testContext.Fatalf("expected conflict on repeat complete, got %d", response.Code)
	}

	// The streak graph shows A in bucket 0 only.
	response = authorized(http.MethodGet, "/api/activities/graph?tag="+saved.Data[0].Tag, nil)
	if response.Code != http.StatusOK {
		testContext.Fatalf("graph failed: %d %s", response.Code, response.Body.String())
	}
	var graph struct {
		Tag   string `json:"tag"`
		Graph []struct {
			StartDate  string `json:"start_date"`
			Activities []struct {
				ID string `json:"id"`
			} `json:"activities"`
		} `json:"graph"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &graph); err != nil {
		testContext.Fatalf("failed to decode graph: %v", err)
	}
	if graph.Tag != saved.Data[0].Tag {
		testContext.Fatalf("unexpected graph tag %q", graph.Tag)
	}
	if len(graph.Graph) != activity.GraphLength {
		testContext.Fatalf("expected %d buckets, got %d", activity.GraphLength, len(graph.Graph))
	}
	if len(graph.Graph[0].Activities) != 1 || graph.Graph[0].Activities[0].ID != saved.Data[0].ID {
		testContext.Fatalf("expected activity A alone in bucket 0, got %+v", graph.Graph[0].Activities)
	}
	for index := 1; index < len(graph.Graph); index++ {
		if len(graph.Graph[index].Activities) != 0 {
			testContext.Fatalf("expected bucket %d empty, got %+v", index, graph.Graph[index].Activities)
		}
	}

	// Generated routines are cached: the second identical request must not
	// change the stored entry count.
	if response := authorized(http.MethodGet, "/api/generate?category=fitness&difficulty=easy&durationPerDay=15", nil); response.Code != http.StatusOK {
		testContext.Fatalf("generate failed: %d %s", response.Code, response.Body.String())
	}
	if response := authorized(http.MethodGet, "/api/generate?category=fitness&difficulty=easy&durationPerDay=15", nil); response.Code != http.StatusOK {
		testContext.Fatalf("cached generate failed: %d %s", response.Code, response.Body.String())
	}
	var cacheCount int64
	if err := db.Model(&routine.CacheEntry{}).Count(&cacheCount).Error; err != nil {
		testContext.Fatalf("failed to count cache entries: %v", err)
	}
	if cacheCount != 1 {
		testContext.Fatalf("expected one cache entry, got %d", cacheCount)
	}
}
