package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/collection"
	"github.com/trezcool/schoolbus/core/transport"
	"github.com/trezcool/schoolbus/tests"
)

func setup(t *testing.T) (*testutil.FakeAPI, *Client) {
	api := testutil.NewFakeAPI(t)
	conf := core.NewTestConfig().API
	conf.BaseURL = api.URL
	conf.Key = testutil.FakeAPIKey
	conf.LoginPath = testutil.FakeLoginPath

	client := NewClient(conf, nil, WithMapper(transport.Mapper{}), WithHTTPClient(api.Client()))
	require.NoError(t, client.Session().Set(api.Token(t)))
	return api, client
}

func TestClient_Login(t *testing.T) {
	api, client := setup(t)
	client.Session().Invalidate()

	tests := []struct {
		name     string
		username string
		password string
		wantCode int
	}{
		{name: "wrong password", username: testutil.FakeUsername, password: "nope", wantCode: http.StatusUnauthorized},
		{name: "ok", username: testutil.FakeUsername, password: testutil.FakePassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := client.Login(context.Background(), tt.username, tt.password)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, StatusCode(err))
				assert.False(t, errors.Is(err, ErrUnauthorized), "a failed login does not invalidate the session")
				assert.True(t, client.Session().Expired())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, token, client.Session().Token())
			assert.False(t, client.Session().Expired())
		})
	}
	assert.Contains(t, api.Requests(), "POST "+testutil.FakeLoginPath)
}

func TestClient_CRUD(t *testing.T) {
	api, client := setup(t)
	api.Seed(transport.Drivers,
		map[string]interface{}{"id": "d1", "name": "Ama", "phone": "+243 81", "status": "Active"},
		map[string]interface{}{"id": "d2", "name": "Kofi", "phone": "+243 82", "status": "OnLeave"},
	)
	ctx := context.Background()

	items, err := client.List(ctx, transport.Drivers)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "+243 81", items[0].String("mobile"), "phone is exposed as mobile")
	assert.NotContains(t, items[0], "phone")

	created, err := client.Create(ctx, transport.Drivers, collection.Item{"name": "Esi", "mobile": "+243 83"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID())
	assert.Equal(t, "+243 83", created.String("mobile"))
	assert.Equal(t, "+243 83", api.Items(transport.Drivers)[2]["phone"], "mobile is sent as phone")
	assert.NotContains(t, api.Items(transport.Drivers)[2], "resource", "route params are not stored")

	patched, err := client.Patch(ctx, transport.Drivers, "d2", collection.Item{"status": "Active"})
	require.NoError(t, err)
	assert.Equal(t, "Active", patched.String("status"))
	assert.Equal(t, "Kofi", patched.String("name"))
	assert.NotEmpty(t, patched.String("updated_at"))
	assert.NotContains(t, patched, "resource")

	updated, err := client.Update(ctx, transport.Drivers, "d1", collection.Item{"name": "Ama K."})
	require.NoError(t, err)
	assert.Equal(t, collection.Item{"id": "d1", "name": "Ama K.", "updated_at": updated["updated_at"]}, updated)

	require.NoError(t, client.Delete(ctx, transport.Drivers, "d1"))
	assert.Len(t, api.Items(transport.Drivers), 2)

	err = client.Delete(ctx, transport.Drivers, "d1")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not found", apiErr.Message)
}

func TestClient_failures(t *testing.T) {
	api, client := setup(t)
	api.Seed(transport.Buses, map[string]interface{}{"id": "b1", "status": "Active"})
	api.Fail(http.MethodPatch, "/buses/b1", http.StatusInternalServerError)

	_, err := client.Patch(context.Background(), transport.Buses, "b1", collection.Item{"status": "Inactive"})
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, "500: injected 500", err.Error())
	assert.False(t, client.Session().Expired())

	client.rest.HTTPClient.Timeout = time.Millisecond
	api.Close()
	_, err = client.List(context.Background(), transport.Buses)
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
}

func TestClient_unauthorizedInvalidatesSession(t *testing.T) {
	api, client := setup(t)
	require.NoError(t, client.Session().Set(api.ExpiredToken(t)))
	require.True(t, client.Session().Expired())
	require.NoError(t, client.Session().Set(api.Token(t)))

	var invalidated int
	client.Session().OnInvalidate(func() { invalidated++ })
	api.Fail(http.MethodGet, "/buses", http.StatusUnauthorized)

	_, err := client.List(context.Background(), transport.Buses)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, 1, invalidated)
	assert.True(t, client.Session().Expired())
	assert.Equal(t, "", client.Session().Token())
}

func TestClient_missingAPIKey(t *testing.T) {
	api, client := setup(t)
	client.apiKey = ""
	_, err := client.List(context.Background(), transport.Buses)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.Equal(t, []string{"GET /buses"}, api.Requests())
}

func Test_decodeItems(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []collection.Item
		wantErr bool
	}{
		{name: "empty body", body: "", want: []collection.Item{}},
		{name: "bare array", body: `[{"id": 1}]`, want: []collection.Item{{"id": json.Number("1")}}},
		{name: "data wrapper", body: `{"data": [{"id": "a"}], "total": 1}`, want: []collection.Item{{"id": "a"}}},
		{name: "null data", body: `{"data": null}`, want: []collection.Item{}},
		{name: "no data", body: `{"items": []}`, wantErr: true},
		{name: "invalid", body: `[{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeItems([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeItems() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_decodeItem(t *testing.T) {
	got, err := decodeItem([]byte(`{"data": {"id": "a"}}`))
	require.NoError(t, err)
	assert.Equal(t, collection.Item{"id": "a"}, got)

	got, err = decodeItem([]byte(`{"id": "a", "data": {"x": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID())

	got, err = decodeItem(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func Test_newError(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want string
	}{
		{name: "message field", code: 400, body: `{"message": "plate number taken"}`, want: "plate number taken"},
		{name: "error field", code: 409, body: `{"error": "conflict"}`, want: "conflict"},
		{name: "plain text", code: 502, body: "bad gateway\n", want: "bad gateway"},
		{name: "no body", code: 503, want: "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newError(tt.code, tt.body).Message)
		})
	}
}

func TestClient_noContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(core.APIConfig{BaseURL: srv.URL + "/"}, nil)
	item, err := client.Patch(context.Background(), "trips", "t1", collection.Item{"status": "Completed"})
	require.NoError(t, err)
	assert.Nil(t, item, "an empty response keeps the optimistic value")
}
