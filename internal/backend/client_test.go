package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/txdxai/sophia/pkg/models"
)

// --- helpers ---

func backendServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewHTTPClient(ts.URL, Timeouts{Auth: 2 * time.Second, Ticket: 2 * time.Second, Audit: 2 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- Authenticate ---

func TestAuthenticate_Success(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/agents/auth/token", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(7), body["companyId"])
		assert.Equal(t, "SOPHIA", body["agentType"])
		assert.Equal(t, "key-123", body["agentAccessKey"])

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":      "jwt-abc",
			"agent_instance_id": "inst-7",
			"agent_instance": map[string]any{
				"azure_openai_endpoint": "https://oai.example",
				"azure_openai_key":      "secret",
				"azure_search_endpoint": "https://search.example",
				"azure_search_key":      "s-key",
				"azure_vector_store_id": "kb",
			},
		})
	})

	res, err := c.Authenticate(context.Background(), 7, "key-123")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", res.AccessToken)
	assert.Equal(t, "inst-7", res.AgentInstanceID)
	require.NotNil(t, res.Instance)

	cfg := res.Instance.TenantConfig(7)
	assert.Equal(t, int64(7), cfg.CompanyID)
	assert.True(t, cfg.HasLLM())
	assert.True(t, cfg.HasRAG())
	assert.Equal(t, "kb", cfg.VectorStoreID)
}

func TestAuthenticate_EmptyInstanceIsNil(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":      "jwt",
			"agent_instance_id": "inst-1",
			"agent_instance":    map[string]any{},
		})
	})

	res, err := c.Authenticate(context.Background(), 1, "k")
	require.NoError(t, err)
	assert.Nil(t, res.Instance)
}

func TestAuthenticate_Rejected(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Authenticate(context.Background(), 1, "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

// --- GetInstance ---

func TestGetInstance(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/instance/inst-9", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"azure_agent_id": "asst_1"})
	})

	inst, err := c.GetInstance(context.Background(), "inst-9")
	require.NoError(t, err)
	assert.Equal(t, "asst_1", inst.AgentID)
	assert.False(t, inst.Empty())
}

// --- CreateTicket ---

func TestCreateTicket_Created(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets", r.URL.Path)
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Security Action Request: block_ip", body["subject"])
		assert.Equal(t, "Block 10.0.0.5", body["description"])
		assert.Equal(t, float64(3), body["userId"])
		assert.Equal(t, "critical", body["severity"])
		assert.NotContains(t, body, "user_id")
		assert.NotContains(t, body, "company_id")

		meta := body["metadata"].(map[string]any)
		assert.Equal(t, "SOPHIA", meta["created_by"])
		assert.Equal(t, "block_ip", meta["action_type"])
		assert.Equal(t, "thread_7_x", meta["context"].(map[string]any)["thread_id"])

		writeJSON(w, http.StatusCreated, map[string]any{
			"ticket_id":               "VIC-42",
			"status":                  "pending",
			"estimated_response_time": "10 minutos",
		})
	})

	rec, err := c.CreateTicket(context.Background(), "jwt", models.EscalationTicket{
		Subject:     "Security Action Request: block_ip",
		Description: "Block 10.0.0.5",
		Severity:    models.SeverityCritical,
		CompanyID:   7,
		UserID:      3,
		Context:     map[string]any{"thread_id": "thread_7_x"},
		Metadata:    models.TicketMetadata{ActionType: "block_ip", CreatedBy: "SOPHIA"},
	})
	require.NoError(t, err)
	assert.Equal(t, "VIC-42", rec.TicketID)
	assert.Equal(t, "10 minutos", rec.EstimatedResponseTime)
}

func TestCreateTicket_NumericID(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":   true,
			"ticket_id": 42,
			"ticket":    map[string]any{"id": 42, "status": "PENDING"},
		})
	})

	rec, err := c.CreateTicket(context.Background(), "jwt", models.EscalationTicket{Subject: "s", UserID: 3})
	require.NoError(t, err)
	assert.Equal(t, "42", rec.TicketID)
}

func TestCreateTicket_WrongStatus(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ticket_id": "VIC-1"})
	})

	_, err := c.CreateTicket(context.Background(), "jwt", models.EscalationTicket{})
	assert.ErrorIs(t, err, ErrBackendStatus)
}

func TestCreateTicket_MissingID(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{})
	})

	_, err := c.CreateTicket(context.Background(), "jwt", models.EscalationTicket{})
	assert.ErrorIs(t, err, ErrBackendStatus)
}

func TestCreateTicket_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, Timeouts{Ticket: 50 * time.Millisecond})
	_, err := c.CreateTicket(context.Background(), "jwt", models.EscalationTicket{})
	assert.ErrorIs(t, err, ErrBackendTimeout)
}

func TestCreateTicket_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewHTTPClient(url, Timeouts{})
	_, err := c.CreateTicket(context.Background(), "jwt", models.EscalationTicket{})
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

// --- ticket lifecycle ---

func TestTicketStatusAndCancel(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/tickets/VIC-5":
			writeJSON(w, http.StatusOK, map[string]any{"ticket_id": "VIC-5", "status": "in_progress"})
		case r.Method == http.MethodPost && r.URL.Path == "/tickets/VIC-5/cancel":
			writeJSON(w, http.StatusOK, map[string]any{"ticket_id": "VIC-5", "status": "cancelled"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	st, err := c.TicketStatus(context.Background(), "jwt", "VIC-5")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", st.Status)

	st, err = c.CancelTicket(context.Background(), "jwt", "VIC-5")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", st.Status)

	_, err = c.TicketStatus(context.Background(), "jwt", "VIC-404")
	assert.ErrorIs(t, err, ErrBackendStatus)
}

// --- Audit ---

func TestAudit_AcceptsAny2xx(t *testing.T) {
	var got AuditEntry
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.Audit(context.Background(), "jwt", AuditEntry{
		Action:     "CHAT",
		EntityType: "SOPHIA_MESSAGE",
		EntityID:   "thread_1_abc",
		Payload:    map[string]any{"intent": "query"},
	})
	require.NoError(t, err)
	assert.Equal(t, "CHAT", got.Action)
	assert.Equal(t, "SOPHIA_MESSAGE", got.EntityType)
}

func TestAudit_ServerError(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.Audit(context.Background(), "jwt", AuditEntry{})
	assert.True(t, errors.Is(err, ErrBackendStatus))
}

// --- classifyError ---

func TestAuthenticate_NumericInstanceID(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":      "jwt",
			"agent_instance_id": 5,
		})
	})

	res, err := c.Authenticate(context.Background(), 7, "k")
	require.NoError(t, err)
	assert.Equal(t, "5", res.AgentInstanceID)
	assert.Equal(t, "jwt", res.AccessToken)
}

func TestTicketStatus_NumericID(t *testing.T) {
	c := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets/42", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"ticket_id": 42, "status": "IN_PROGRESS"})
	})

	st, err := c.TicketStatus(context.Background(), "jwt", "42")
	require.NoError(t, err)
	assert.Equal(t, "42", st.TicketID)
	assert.Equal(t, "IN_PROGRESS", st.Status)
}

func TestWireID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"integer", `17`, "17", false},
		{"string", `"VIC-9"`, "VIC-9", false},
		{"null", `null`, "", false},
		{"object", `{}`, "", true},
		{"bool", `true`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id wireID
			err := json.Unmarshal([]byte(tt.in), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(id))
		})
	}
}

func TestClassifyError(t *testing.T) {
	assert.ErrorIs(t, classifyError(context.DeadlineExceeded), ErrBackendTimeout)
	assert.ErrorIs(t, classifyError(context.Canceled), ErrBackendTimeout)
	assert.ErrorIs(t, classifyError(errors.New("connection refused")), ErrBackendUnreachable)
}
