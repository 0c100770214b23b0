package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/basilfx/knx-devstack/internal/infrastructure/logging"
	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knxconfig"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
	"github.com/basilfx/knx-devstack/internal/knxdevice/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeWriter struct {
	index int
	value []byte
	calls int
}

func (f *fakeWriter) UpdateComObject(_ context.Context, index int, value []byte) error {
	if index >= 1 {
		return knxdevice.ErrNotFound
	}
	f.index = index
	f.value = append([]byte(nil), value...)
	f.calls++
	return nil
}

type fakeEvents struct {
	records []store.EventRecord
}

func (f *fakeEvents) ListEvents(_ context.Context, limit int) ([]store.EventRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func testServer(t *testing.T) (*Server, *fakeWriter) {
	t.Helper()

	addr, err := knx.ParsePhysical("1.1.8")
	if err != nil {
		t.Fatalf("ParsePhysical: %v", err)
	}
	group, err := knx.ParseGroup("0/0/1")
	if err != nil {
		t.Fatalf("ParseGroup: %v", err)
	}

	dev := knxdevice.NewDevice(addr, "if0")
	dev.ComObjects = []*knxdevice.ComObject{
		knxdevice.NewComObject(knxdevice.Bit1, knx.PriorityLow, knxdevice.AccessFlags{
			Enabled: true, Read: true, Write: true,
		}),
	}
	err = dev.Associations.Update(
		[]knxdevice.AssocTableRow{{AddressIndex: 1, ComObjectIndex: 0}},
		[]knxdevice.AddressTableRow{{Address: group}},
		1,
	)
	if err != nil {
		t.Fatalf("Associations.Update: %v", err)
	}

	writer := &fakeWriter{}
	srv := New(Deps{
		Config: knxconfig.DiagnosticsConfig{
			Enabled:   true,
			Addr:      ":0",
			JWTSecret: testSecret,
			Username:  "admin",
			Password:  "hunter2hunter2",
		},
		Logger: logging.Default(),
		Device: dev,
		Writer: writer,
		Events: &fakeEvents{records: []store.EventRecord{
			{ID: 2, Ts: time.Now(), Kind: "com_object_write"},
			{ID: 1, Ts: time.Now(), Kind: "restart"},
		}},
	})
	return srv, writer
}

func login(t *testing.T, handler http.Handler, username, password string) (string, int) {
	t.Helper()

	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return "", rec.Code
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	return resp.AccessToken, rec.Code
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.router()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/comobjects"},
		{http.MethodPost, "/api/comobjects/0/write"},
		{http.MethodGet, "/api/events"},
		{http.MethodGet, "/api/status"},
		{http.MethodGet, "/ws/monitor"},
	}

	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status %d, want 401", route.method, route.path, rec.Code)
		}
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.router()

	if _, code := login(t, handler, "admin", "wrong"); code != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", code)
	}
	if _, code := login(t, handler, "intruder", "hunter2hunter2"); code != http.StatusUnauthorized {
		t.Errorf("bad username: status %d, want 401", code)
	}
}

func TestLoginThenListComObjects(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.router()

	token, code := login(t, handler, "admin", "hunter2hunter2")
	if code != http.StatusOK {
		t.Fatalf("login: status %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/comobjects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ComObjects []comObjectView `json:"com_objects"`
		Count      int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || len(resp.ComObjects) != 1 {
		t.Fatalf("count = %d, objects = %d", resp.Count, len(resp.ComObjects))
	}
	obj := resp.ComObjects[0]
	if obj.Type != "bit1" || !obj.Writable {
		t.Errorf("object = %+v", obj)
	}
	if len(obj.GroupAddresses) != 1 || obj.GroupAddresses[0] != "0/0/1" {
		t.Errorf("group addresses = %v", obj.GroupAddresses)
	}
}

func TestWriteComObject(t *testing.T) {
	srv, writer := testServer(t)
	handler := srv.router()

	token, _ := login(t, handler, "admin", "hunter2hunter2")

	body := bytes.NewReader([]byte(`{"value":"01"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/comobjects/0/write", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("write: status %d, body %s", rec.Code, rec.Body.String())
	}
	if writer.calls != 1 || writer.index != 0 || len(writer.value) != 1 || writer.value[0] != 0x01 {
		t.Errorf("writer = %+v", writer)
	}
}

func TestWriteComObjectNotFound(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.router()

	token, _ := login(t, handler, "admin", "hunter2hunter2")

	req := httptest.NewRequest(http.MethodPost, "/api/comobjects/9/write", bytes.NewReader([]byte(`{"value":"01"}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListEvents(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.router()

	token, _ := login(t, handler, "admin", "hunter2hunter2")

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("events: status %d", rec.Code)
	}
	var resp struct {
		Events []eventView `json:"events"`
		Count  int         `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Events[0].Kind != "com_object_write" {
		t.Errorf("events = %+v", resp)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := issueToken(testSecret, "admin")
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	claims, err := parseToken(token, testSecret)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("subject = %q", claims.Subject)
	}

	if _, err := parseToken(token, "another-secret-another-secret-32"); err == nil {
		t.Error("expected error parsing with wrong secret")
	}
}
