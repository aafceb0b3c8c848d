package handlers

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/logging"
	"github.com/agentgate/agentgate/internal/store"
	"github.com/agentgate/agentgate/internal/webhook"
)

func newWebhookRouter(t *testing.T) (*mux.Router, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	dispatcher := webhook.NewDispatcher(st, time.Second, logging.NewLogger("error", "text", "stdout"))
	dispatcher.SetResolver(func(host string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("93.184.216.34")}, nil
	})
	h := NewWebhookHandlers(st, dispatcher)

	router := mux.NewRouter()
	router.HandleFunc("/api/webhooks", h.CreateWebhook).Methods("POST")
	router.HandleFunc("/api/webhooks", h.ListWebhooks).Methods("GET")
	router.HandleFunc("/api/webhooks/{id}", h.GetWebhook).Methods("GET")
	router.HandleFunc("/api/webhooks/{id}", h.UpdateWebhook).Methods("PATCH")
	router.HandleFunc("/api/webhooks/{id}", h.DisableWebhook).Methods("DELETE")
	router.HandleFunc("/api/webhooks/{id}/test", h.TestWebhook).Methods("POST")
	router.HandleFunc("/api/webhooks/{id}/deliveries", h.ListDeliveries).Methods("GET")
	return router, st
}

func TestWebhookCRUD(t *testing.T) {
	router, st := newWebhookRouter(t)

	rec := doJSON(t, router, "POST", "/api/webhooks", `{
		"url": "https://hooks.example.com/agentgate",
		"secret": "hook-secret",
		"events": ["request.approved", "request.denied"]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created db.Webhook
	decodeJSON(t, rec, &created)
	if created.ID == "" || !created.Enabled {
		t.Errorf("created = %+v", created)
	}
	if strings.Contains(rec.Body.String(), "hook-secret") {
		t.Error("response leaked the webhook secret")
	}

	rec = doJSON(t, router, "PATCH", "/api/webhooks/"+created.ID, `{"events": ["*"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	var updated db.Webhook
	decodeJSON(t, rec, &updated)
	if len(updated.Events) != 1 || updated.Events[0] != "*" {
		t.Errorf("events = %v", updated.Events)
	}

	rec = doJSON(t, router, "DELETE", "/api/webhooks/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("disable status = %d", rec.Code)
	}
	hook, _ := st.GetWebhook(httptest.NewRequest("GET", "/", nil).Context(), created.ID)
	if hook.Enabled {
		t.Error("expected disabled webhook")
	}
}

func TestCreateWebhook_Validation(t *testing.T) {
	router, _ := newWebhookRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"secret": "s", "events": ["*"]}`},
		{"bad scheme", `{"url": "ftp://example.com", "secret": "s", "events": ["*"]}`},
		{"missing secret", `{"url": "https://example.com", "events": ["*"]}`},
		{"missing events", `{"url": "https://example.com", "secret": "s"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/api/webhooks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTestWebhookAndDeliveries(t *testing.T) {
	router, _ := newWebhookRouter(t)

	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Webhook-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := doJSON(t, router, "POST", "/api/webhooks", `{
		"url": "`+srv.URL+`",
		"secret": "s",
		"events": ["*"]
	}`)
	var created db.Webhook
	decodeJSON(t, rec, &created)

	rec = doJSON(t, router, "POST", "/api/webhooks/"+created.ID+"/test", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("test status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotEvent != "webhook.test" {
		t.Errorf("event = %q, want webhook.test", gotEvent)
	}
	var tested struct {
		Delivery db.WebhookDelivery `json:"delivery"`
	}
	decodeJSON(t, rec, &tested)
	if tested.Delivery.Status != db.DeliverySuccess {
		t.Errorf("delivery status = %q, want success", tested.Delivery.Status)
	}

	rec = doJSON(t, router, "GET", "/api/webhooks/"+created.ID+"/deliveries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deliveries status = %d", rec.Code)
	}
	var listed struct {
		Deliveries []db.WebhookDelivery `json:"deliveries"`
	}
	decodeJSON(t, rec, &listed)
	if len(listed.Deliveries) != 1 {
		t.Errorf("got %d deliveries, want 1", len(listed.Deliveries))
	}
}

func TestListDeliveries_UnknownWebhook(t *testing.T) {
	router, _ := newWebhookRouter(t)

	rec := doJSON(t, router, "GET", "/api/webhooks/missing/deliveries", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
