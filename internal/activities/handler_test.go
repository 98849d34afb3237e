package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activity-hub/backend/internal/middleware"
	"github.com/activity-hub/backend/internal/models"
)

type stubCategories map[uuid.UUID]models.Category

func (s stubCategories) Get(_ context.Context, id uuid.UUID) (*models.Category, error) {
	c, ok := s[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

type stubMedia map[uuid.UUID]models.Media

func (s stubMedia) Get(_ context.Context, id uuid.UUID) (*models.Media, error) {
	m, ok := s[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &m, nil
}

type envelope struct {
	Datetime string          `json:"datetime"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
}

type handlerFixture struct {
	router   *gin.Engine
	svc      *Service
	user     uuid.UUID
	category models.Category
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		svc:      NewService(NewMemoryStore(), fixedClock(testNow), nil),
		user:     uuid.New(),
		category: models.Category{ID: uuid.New(), Name: "Outdoor"},
	}
	h := NewHandler(f.svc, stubCategories{f.category.ID: f.category}, stubMedia{}, time.UTC, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, f.user)
		c.Set(middleware.ContextUserRole, string(models.RoleAdmin))
		c.Next()
	})
	r.GET("/activities", h.Search)
	r.POST("/activities", h.Create)
	r.GET("/activities/:id", h.Get)
	r.PUT("/activities/:id", h.Update)
	r.DELETE("/activities/:id", h.Delete)
	r.GET("/activities/:id/joinable", h.Joinable)
	r.POST("/activities/:id/join", h.Join)
	r.DELETE("/activities/:id/join", h.Leave)
	r.GET("/users/activities", h.ListMine)
	f.router = r
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(v))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr, env
}

func (f *handlerFixture) validBody() map[string]interface{} {
	return map[string]interface{}{
		"name":           "Kayaking",
		"location":       "River dock",
		"startAt":        testNow.Add(24 * time.Hour).Format(time.RFC3339),
		"endAt":          testNow.Add(26 * time.Hour).Format(time.RFC3339),
		"availableSeats": 1,
		"categories":     []string{f.category.ID.String()},
	}
}

func (f *handlerFixture) create(t *testing.T) uuid.UUID {
	t.Helper()
	rr, env := f.do(t, http.MethodPost, "/activities", f.validBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var data struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID
}

func TestCreateAndGetActivity(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.create(t)

	rr, env := f.do(t, http.MethodGet, "/activities/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Activity found", env.Message)
	assert.NotEmpty(t, env.Datetime)

	var a models.Activity
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, "Kayaking", a.Name)
	require.Len(t, a.Categories, 1)
	assert.Equal(t, "Outdoor", a.Categories[0].Name)
}

func TestCreateActivityRejectsBadInput(t *testing.T) {
	f := newHandlerFixture(t)

	missing := f.validBody()
	delete(missing, "location")
	rr, env := f.do(t, http.MethodPost, "/activities", missing)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Required field `location` is missing!", env.Message)

	rr, env = f.do(t, http.MethodPost, "/activities", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "The request's body is not a valid JSON string.", env.Message)

	unknownCat := f.validBody()
	other := uuid.New()
	unknownCat["categories"] = []string{other.String()}
	rr, env = f.do(t, http.MethodPost, "/activities", unknownCat)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Category not found with ID: "+other.String(), env.Message)

	unknownMedia := f.validBody()
	unknownMedia["media"] = other.String()
	rr, _ = f.do(t, http.MethodPost, "/activities", unknownMedia)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	backwards := f.validBody()
	backwards["endAt"] = testNow.Format(time.RFC3339)
	rr, _ = f.do(t, http.MethodPost, "/activities", backwards)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJoinFlowOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.create(t)
	path := "/activities/" + id.String() + "/join"

	rr, env := f.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Joined activity", env.Message)

	rr, env = f.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.ErrAlreadyJoined.Error(), env.Message)

	_, err := f.svc.Join(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, models.ErrNoSeatsLeft)

	rr, env = f.do(t, http.MethodGet, "/users/activities", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Found 1 activities", env.Message)

	rr, _ = f.do(t, http.MethodGet, "/activities/"+id.String()+"/joinable", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, env = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Left activity", env.Message)

	rr, _ = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = f.do(t, http.MethodGet, "/activities/"+id.String()+"/joinable", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestJoinUnknownActivity(t *testing.T) {
	f := newHandlerFixture(t)
	rr, env := f.do(t, http.MethodPost, "/activities/"+uuid.New().String()+"/join", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Activity not found", env.Message)

	rr, _ = f.do(t, http.MethodPost, "/activities/not-a-uuid/join", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchQueryParameters(t *testing.T) {
	f := newHandlerFixture(t)
	f.create(t)

	rr, env := f.do(t, http.MethodGet, "/activities?name=Kayak&day=2024-03-11&availableOnly=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Found 1 activities", env.Message)

	rr, env = f.do(t, http.MethodGet, "/activities?day=2024-03-12", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Found 0 activities", env.Message)

	rr, _ = f.do(t, http.MethodGet, "/activities?day=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodGet, "/activities?availableOnly=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateAndDeleteActivity(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.create(t)

	body := f.validBody()
	body["name"] = "Canoeing"
	body["categories"] = []string{}
	rr, env := f.do(t, http.MethodPut, "/activities/"+id.String(), body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Activity edited", env.Message)

	got, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Canoeing", got.Name)
	assert.Empty(t, got.Categories)

	rr, _ = f.do(t, http.MethodPut, "/activities/"+uuid.New().String(), body)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, env = f.do(t, http.MethodDelete, "/activities/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Activity deleted", env.Message)

	rr, _ = f.do(t, http.MethodGet, "/activities/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
