package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/thrivelab/thrive/backend/internal/activity"
	"github.com/thrivelab/thrive/backend/internal/auth"
	"github.com/thrivelab/thrive/backend/internal/categories"
	"github.com/thrivelab/thrive/backend/internal/routine"
	"github.com/thrivelab/thrive/backend/internal/users"
	"go.uber.org/zap"
)

const userIDContextKey = "thrive_user_id"

const (
	maxDurationPerDay = 180
	defaultListLimit  = 20
)

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingUsersService    = errors.New("users service dependency required")
	errMissingActivityService = errors.New("activity service dependency required")
	errMissingRoutineService  = errors.New("routine service dependency required")
	errMissingCategoryService = errors.New("category service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// TokenManager issues tokens at registration or login and validates them
// on protected routes.
type TokenManager interface {
	IssueToken(ctx context.Context, claims auth.AccountClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface to the underlying services.
type Dependencies struct {
	TokenManager    TokenManager
	UsersService    *users.Service
	ActivityService *activity.Service
	RoutineService  *routine.Service
	CategoryService *categories.Service
	Logger          *zap.Logger
}

// NewHTTPHandler builds the gin handler exposing the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.ActivityService == nil {
		return nil, errMissingActivityService
	}
	if deps.RoutineService == nil {
		return nil, errMissingRoutineService
	}
	if deps.CategoryService == nil {
		return nil, errMissingCategoryService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.TokenManager,
		users:      deps.UsersService,
		activities: deps.ActivityService,
		routines:   deps.RoutineService,
		categories: deps.CategoryService,
		logger:     logger,
	}

	router.POST("/api/register", handler.handleRegister)
	router.POST("/api/login", handler.handleLogin)
	router.GET("/api/home", handler.handleHome)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/generate", handler.handleGenerate)
	protected.POST("/activities", handler.handleCreateActivities)
	protected.GET("/activities", handler.handleListActivities)
	protected.GET("/activities/graph", handler.handleStreakGraph)
	protected.POST("/activities/:id/completion", handler.handleToggleCompletion)

	return router, nil
}

type httpHandler struct {
	tokens     TokenManager
	users      *users.Service
	activities *activity.Service
	routines   *routine.Service
	categories *categories.Service
	logger     *zap.Logger
}

type registerRequestPayload struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponsePayload struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), request.Name, request.Username, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondSession(c, http.StatusCreated, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondSession(c, http.StatusOK, user)
}

func (h *httpHandler) respondSession(c *gin.Context, status int, user users.User) {
	token, _, err := h.tokens.IssueToken(c.Request.Context(), auth.AccountClaims{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
	})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(status, sessionResponsePayload{
		Name:     user.Name,
		Username: user.Username,
		Token:    token,
	})
}

func (h *httpHandler) handleHome(c *gin.Context) {
	catalog, err := h.categories.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list categories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog_unavailable"})
		return
	}

	payload := make([]gin.H, 0, len(catalog))
	for _, category := range catalog {
		payload = append(payload, gin.H{
			"id":            category.ID,
			"name":          category.Name,
			"subcategories": category.Subcategories,
		})
	}
	c.JSON(http.StatusOK, payload)
}

type generateResponsePayload struct {
	Activities []string `json:"activities"`
	Original   string   `json:"original"`
}

func (h *httpHandler) handleGenerate(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	difficulty := strings.TrimSpace(c.Query("difficulty"))
	durationRaw := strings.TrimSpace(c.Query("durationPerDay"))

	if !isKnownCategory(category) || !isKnownDifficulty(difficulty) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	duration, err := strconv.Atoi(durationRaw)
	if err != nil || duration < 1 || duration > maxDurationPerDay {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.routines.GetOrGenerate(c.Request.Context(), category, difficulty, duration)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, generateResponsePayload{
		Activities: result.Activities,
		Original:   result.Original,
	})
}

func isKnownCategory(value string) bool {
	switch value {
	case "fitness", "mind", "knowledge":
		return true
	}
	return false
}

func isKnownDifficulty(value string) bool {
	switch value {
	case "easy", "medium", "hard":
		return true
	}
	return false
}

type createActivitiesPayload struct {
	Activities []string `json:"activities"`
}

type activityPayload struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Tag              string   `json:"tag"`
	DatesCompleted   []string `json:"dates_completed"`
	CreatedAt        string   `json:"created_at"`
	IsCompletedToday *bool    `json:"is_completed_today,omitempty"`
}

func (h *httpHandler) handleCreateActivities(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}

	var request createActivitiesPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Activities) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	records, err := h.activities.CreateBatch(c.Request.Context(), owner, request.Activities)
	if err != nil {
		h.respondError(c, err)
		return
	}

	payload := make([]activityPayload, 0, len(records))
	for _, record := range records {
		payload = append(payload, marshalActivity(record, nil))
	}
	c.JSON(http.StatusCreated, gin.H{"data": payload})
}

func (h *httpHandler) handleListActivities(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}

	groupByTag := c.Query("group_by_tag") == "true"
	skip := parseNonNegative(c.Query("skip"), 0)
	limit := parseNonNegative(c.Query("limit"), defaultListLimit)

	result, err := h.activities.ListActivities(c.Request.Context(), owner, groupByTag, skip, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !groupByTag {
		payload := make([]activityPayload, 0, len(result.Activities))
		for _, record := range result.Activities {
			payload = append(payload, marshalActivity(record, nil))
		}
		c.JSON(http.StatusOK, gin.H{"data": payload, "count": result.Count})
		return
	}

	groups := make([]gin.H, 0, len(result.Groups))
	for _, group := range result.Groups {
		members := make([]activityPayload, 0, len(group.Activities))
		for _, view := range group.Activities {
			completed := view.IsCompletedToday
			members = append(members, marshalActivity(view.Activity, &completed))
		}
		groups = append(groups, gin.H{"tag": group.Tag, "activities": members})
	}
	c.JSON(http.StatusOK, gin.H{"data": groups, "count": result.Count})
}

type toggleCompletionPayload struct {
	Complete *bool `json:"complete"`
}

func (h *httpHandler) handleToggleCompletion(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}

	id, err := activity.NewActivityID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_activity_id"})
		return
	}

	var request toggleCompletionPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Complete == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.activities.ToggleCompletion(c.Request.Context(), owner, id, *request.Complete)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, marshalActivity(record, nil))
}

type graphDayPayload struct {
	StartDate  string             `json:"start_date"`
	Activities []graphItemPayload `json:"activities"`
}

type graphItemPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *httpHandler) handleStreakGraph(c *gin.Context) {
	owner, ok := h.requestOwner(c)
	if !ok {
		return
	}

	graph, err := h.activities.BuildGraph(c.Request.Context(), owner, strings.TrimSpace(c.Query("tag")))
	if err != nil {
		h.respondError(c, err)
		return
	}

	days := make([]graphDayPayload, 0, len(graph.Days))
	for _, day := range graph.Days {
		items := make([]graphItemPayload, 0, len(day.Activities))
		for _, item := range day.Activities {
			items = append(items, graphItemPayload{ID: item.ID, Name: item.Name})
		}
		days = append(days, graphDayPayload{
			StartDate:  day.StartDate.Format(time.RFC3339),
			Activities: items,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tag": graph.Tag, "graph": days})
}

func (h *httpHandler) requestOwner(c *gin.Context) (activity.UserID, bool) {
	raw := c.GetString(userIDContextKey)
	owner, err := activity.NewUserID(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return owner, true
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func marshalActivity(record activity.Activity, completedToday *bool) activityPayload {
	dates := make([]string, 0, len(record.DatesCompleted))
	for _, date := range record.DatesCompleted {
		dates = append(dates, date.UTC().Format(time.RFC3339))
	}
	return activityPayload{
		ID:               record.ID,
		Name:             record.Name,
		Tag:              record.Tag,
		DatesCompleted:   dates,
		CreatedAt:        record.CreatedAt.UTC().Format(time.RFC3339),
		IsCompletedToday: completedToday,
	}
}

func parseNonNegative(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// respondError maps service error kinds to transport responses. Unknown
// failures surface the stable service code the way the rest of the API does.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, activity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, activity.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "already_completed"})
	case errors.Is(err, activity.ErrInvalidInput), errors.Is(err, users.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username_taken"})
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, routine.ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed"})
	case errors.Is(err, routine.ErrUpstreamUnavailable):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "upstream_unavailable"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		response := gin.H{"error": "internal_error"}
		var activityErr *activity.ServiceError
		var routineErr *routine.ServiceError
		var usersErr *users.ServiceError
		switch {
		case errors.As(err, &activityErr):
			response["code"] = activityErr.Code()
		case errors.As(err, &routineErr):
			response["code"] = routineErr.Code()
		case errors.As(err, &usersErr):
			response["code"] = usersErr.Code()
		}
		c.JSON(http.StatusInternalServerError, response)
	}
}
