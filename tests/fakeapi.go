package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
)

const (
	FakeAPIKey      = "fake-api-key"
	FakeUsername    = "admin"
	FakePassword    = "Pa$$w0rd"
	FakeLoginPath   = "/auth/login"
	fakeSigningKey  = "fake-signing-key"
	fakeTokenExpiry = time.Hour
)

// FakeAPI is an in-memory school transportation REST API served over HTTP.
// Items are kept in API shape; ids are assigned as "<resource>-<n>".
type FakeAPI struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string][]map[string]interface{}
	faults      map[string]int
	requests    []string
	nextID      int
	requireAuth bool
}

// NewFakeAPI starts a FakeAPI, closed when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	api := &FakeAPI{
		collections: make(map[string][]map[string]interface{}),
		faults:      make(map[string]int),
		requireAuth: true,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(api.checkAPIKey)
	e.POST(FakeLoginPath, api.login)
	g := e.Group("", api.checkToken)
	g.GET("/:resource", api.list)
	g.POST("/:resource", api.create)
	g.GET("/:resource/:id", api.get)
	g.PUT("/:resource/:id", api.update)
	g.PATCH("/:resource/:id", api.patch)
	g.DELETE("/:resource/:id", api.delete)

	api.Server = httptest.NewServer(e)
	t.Cleanup(api.Close)
	return api
}

// Token returns a valid bearer token, as returned by a successful login.
func (api *FakeAPI) Token(t *testing.T) string {
	t.Helper()
	token, err := signToken(FakeUsername, time.Now().Add(fakeTokenExpiry))
	if err != nil {
		t.Fatalf("FakeAPI.Token() failed: %v", err)
	}
	return token
}

// ExpiredToken returns a token that expired an hour ago.
func (api *FakeAPI) ExpiredToken(t *testing.T) string {
	t.Helper()
	token, err := signToken(FakeUsername, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FakeAPI.ExpiredToken() failed: %v", err)
	}
	return token
}

// DisableAuth lets requests without a bearer token through.
func (api *FakeAPI) DisableAuth() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.requireAuth = false
}

// Seed appends items to resource.
func (api *FakeAPI) Seed(resource string, items ...map[string]interface{}) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.collections[resource] = append(api.collections[resource], items...)
}

// Fail makes every request matching method and path answer with code.
func (api *FakeAPI) Fail(method, path string, code int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.faults[method+" "+path] = code
}

// Items returns a copy of resource's items.
func (api *FakeAPI) Items(resource string) []map[string]interface{} {
	api.mu.Lock()
	defer api.mu.Unlock()
	items := make([]map[string]interface{}, 0, len(api.collections[resource]))
	for _, it := range api.collections[resource] {
		items = append(items, copyItem(it))
	}
	return items
}

// Requests returns every request received, as "METHOD /path".
func (api *FakeAPI) Requests() []string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]string(nil), api.requests...)
}

func signToken(subject string, expiresAt time.Time) (string, error) {
	claims := jwt.StandardClaims{
		Subject:   subject,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(fakeSigningKey))
}

func message(code int, msg string) error {
	return echo.NewHTTPError(code, msg)
}

func (api *FakeAPI) checkAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		api.mu.Lock()
		api.requests = append(api.requests, req.Method+" "+req.URL.Path)
		code := api.faults[req.Method+" "+req.URL.Path]
		api.mu.Unlock()

		if req.Header.Get("x-api-key") != FakeAPIKey {
			return ctx.JSON(http.StatusForbidden, echo.Map{"message": "invalid api key"})
		}
		if code != 0 {
			return ctx.JSON(code, echo.Map{"message": fmt.Sprintf("injected %d", code)})
		}
		return next(ctx)
	}
}

func (api *FakeAPI) checkToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		api.mu.Lock()
		required := api.requireAuth
		api.mu.Unlock()
		if !required {
			return next(ctx)
		}

		raw := strings.TrimPrefix(ctx.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte(fakeSigningKey), nil })
		if raw == "" || err != nil {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "session expired"})
		}
		return next(ctx)
	}
}

func (api *FakeAPI) login(ctx echo.Context) error {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&creds); err != nil {
		return err
	}
	if creds.Username != FakeUsername || creds.Password != FakePassword {
		return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid credentials"})
	}
	token, err := signToken(creds.Username, time.Now().Add(fakeTokenExpiry))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

// bindBody decodes the request body only: echo's Bind also copies path params into maps.
func bindBody(ctx echo.Context, i interface{}) error {
	return (&echo.DefaultBinder{}).BindBody(ctx, i)
}

func (api *FakeAPI) list(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"data": api.Items(ctx.Param("resource"))})
}

func (api *FakeAPI) create(ctx echo.Context) error {
	var item map[string]interface{}
	if err := bindBody(ctx, &item); err != nil {
		return err
	}
	resource := ctx.Param("resource")

	api.mu.Lock()
	api.nextID++
	item["id"] = fmt.Sprintf("%s-%d", resource, api.nextID)
	api.collections[resource] = append(api.collections[resource], item)
	created := copyItem(item)
	api.mu.Unlock()

	return ctx.JSON(http.StatusCreated, created)
}

func (api *FakeAPI) get(ctx echo.Context) error {
	api.mu.Lock()
	defer api.mu.Unlock()
	_, item := api.find(ctx.Param("resource"), ctx.Param("id"))
	if item == nil {
		return message(http.StatusNotFound, "not found")
	}
	return ctx.JSON(http.StatusOK, copyItem(item))
}

func (api *FakeAPI) update(ctx echo.Context) error {
	return api.write(ctx, true)
}

func (api *FakeAPI) patch(ctx echo.Context) error {
	return api.write(ctx, false)
}

func (api *FakeAPI) write(ctx echo.Context, replace bool) error {
	var fields map[string]interface{}
	if err := bindBody(ctx, &fields); err != nil {
		return err
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	resource, id := ctx.Param("resource"), ctx.Param("id")
	idx, item := api.find(resource, id)
	if item == nil {
		return message(http.StatusNotFound, "not found")
	}
	if replace {
		item = make(map[string]interface{}, len(fields))
	}
	for k, v := range fields {
		item[k] = v
	}
	item["id"] = id
	item["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	api.collections[resource][idx] = item
	return ctx.JSON(http.StatusOK, copyItem(item))
}

func (api *FakeAPI) delete(ctx echo.Context) error {
	api.mu.Lock()
	defer api.mu.Unlock()
	resource := ctx.Param("resource")
	idx, item := api.find(resource, ctx.Param("id"))
	if item == nil {
		return message(http.StatusNotFound, "not found")
	}
	items := api.collections[resource]
	api.collections[resource] = append(items[:idx:idx], items[idx+1:]...)
	return ctx.NoContent(http.StatusNoContent)
}

// find must be called with api.mu held.
func (api *FakeAPI) find(resource, id string) (int, map[string]interface{}) {
	for i, it := range api.collections[resource] {
		if fmt.Sprint(it["id"]) == id {
			return i, it
		}
	}
	return -1, nil
}

func copyItem(it map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(it))
	for k, v := range it {
		c[k] = v
	}
	return c
}
