package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	. "github.com/trezcool/schoolbus/apps/api/echo"
	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/notification"
	"github.com/trezcool/schoolbus/services/email"
	"github.com/trezcool/schoolbus/services/metrics"
	"github.com/trezcool/schoolbus/storage/database/inmem"
	"github.com/trezcool/schoolbus/tests"
)

const testAPIKey = "s3cr3t-k3y"

var errInvalidKey = httpErr{Error: "invalid or missing API key"}

func setup(t *testing.T) Server {
	t.Helper()
	conf := core.NewTestConfig()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	conf.Notifications.APIKeyHash = string(hash)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)

	// set up services
	repo := inmemdb.NewNotificationRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	prom := metricsvc.NewPrometheus()
	notifSvc := notification.NewService(repo, mailSvc, validate, testutil.NewLogger(t), notification.WithMetrics(prom))

	// set up server
	srv := NewServer(ServerDeps{
		Conf:            conf,
		Logger:          testutil.NewLogger(t),
		NotificationSvc: notifSvc,
		Validate:        validate,
		Translator:      translator,
		Metrics:         prom.Handler(),
		DisableReqLogs:  true,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	key      string
	wantCode int
	wantData []byte
}

func newKeyRequest(method, path, key string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newKeyRequest(method, path, testAPIKey, data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
