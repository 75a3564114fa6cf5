package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/config"
	"github.com/stratdeck/stratdeck/internal/metrics"
	"github.com/stratdeck/stratdeck/internal/service"
	"github.com/stratdeck/stratdeck/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	reg, err := archetype.LoadCatalog("../../../data/archetypes.yaml")
	require.NoError(t, err)

	m := metrics.New()
	svc := service.New(reg, store.NewMemory(), nil, m, zerolog.Nop())
	cfg := config.Default().Server
	cfg.RateLimit = 10000
	cfg.RateBurst = 10000
	cfg.RequestTimeout = config.Duration(5 * time.Second)
	return NewServer(svc, m, zerolog.Nop(), cfg)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func exampleFor(t *testing.T, srv *Server, typeID string) map[string]interface{} {
	t.Helper()
	rec := doJSON(t, srv, http.MethodGet, "/v1/archetypes/"+typeID+"/example", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Slots map[string]interface{} `json:"slots"`
	}
	decode(t, rec, &body)
	return body.Slots
}

func TestHealthAndMetrics(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArchetypeEndpoints(t *testing.T) {
	srv := testServer(t)

	t.Run("list with kind filter", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/archetypes?kind=gate", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Archetypes []struct {
				TypeID string `json:"type_id"`
				Kind   string `json:"kind"`
			} `json:"archetypes"`
		}
		decode(t, rec, &body)
		require.NotEmpty(t, body.Archetypes)
		for _, a := range body.Archetypes {
			assert.Equal(t, "gate", a.Kind)
		}
	})

	t.Run("schema carries etag and honors if-none-match", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/archetypes/entry.rule_trigger/schema", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		etag := rec.Header().Get("ETag")
		require.NotEmpty(t, etag)

		req := httptest.NewRequest(http.MethodGet, "/v1/archetypes/entry.rule_trigger/schema", nil)
		req.Header.Set("If-None-Match", etag)
		rec2 := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec2, req)
		assert.Equal(t, http.StatusNotModified, rec2.Code)
	})

	t.Run("unknown archetype 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/archetypes/entry.unknown/schema", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("draft validation returns issues not errors", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/v1/archetypes/entry.rule_trigger/validate",
			map[string]interface{}{"slots": map[string]interface{}{}})
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Valid  bool              `json:"valid"`
			Issues []json.RawMessage `json:"issues"`
		}
		decode(t, rec, &body)
		assert.False(t, body.Valid)
		assert.NotEmpty(t, body.Issues)
	})
}

func TestCardEndpoints(t *testing.T) {
	srv := testServer(t)
	slots := exampleFor(t, srv, "entry.rule_trigger")

	rec := doJSON(t, srv, http.MethodPost, "/v1/cards",
		map[string]interface{}{"type_id": "entry.rule_trigger", "slots": slots})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		CardID string `json:"card_id"`
	}
	decode(t, rec, &created)
	require.NotEmpty(t, created.CardID)

	rec = doJSON(t, srv, http.MethodGet, "/v1/cards/"+created.CardID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("invalid slots yield 422 with issue list", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/v1/cards",
			map[string]interface{}{"type_id": "entry.rule_trigger", "slots": map[string]interface{}{}})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body errorBody
		decode(t, rec, &body)
		assert.Equal(t, "SCHEMA_VALIDATION_ERROR", body.Code)
		assert.NotEmpty(t, body.Issues)
	})

	t.Run("missing card 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/cards/ghost", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec = doJSON(t, srv, http.MethodDelete, "/v1/cards/"+created.CardID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStrategyFlow(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/strategies", map[string]interface{}{
		"name":     "regime breakout",
		"universe": []string{"BTC-USD"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var st struct {
		StrategyID string `json:"strategy_id"`
	}
	decode(t, rec, &st)

	addCard := func(typeID, role string) {
		rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/v1/strategies/%s/cards", st.StrategyID),
			map[string]interface{}{
				"type_id": typeID,
				"slots":   exampleFor(t, srv, typeID),
				"role":    role,
				"enabled": true,
			})
		require.Equal(t, http.StatusCreated, rec.Code, "add %s: %s", typeID, rec.Body.String())
	}
	addCard("gate.regime", "gate")
	addCard("entry.rule_trigger", "entry")
	addCard("exit.take_profit_stop", "exit")

	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/v1/strategies/%s/compile", st.StrategyID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		StatusHint string `json:"status_hint"`
		Plan       []struct {
			Role string `json:"role"`
		} `json:"plan"`
	}
	decode(t, rec, &res)
	assert.Equal(t, "ready", res.StatusHint)
	require.Len(t, res.Plan, 3)
	assert.Equal(t, "gate", res.Plan[0].Role)
	assert.Equal(t, "entry", res.Plan[1].Role)
	assert.Equal(t, "exit", res.Plan[2].Role)

	t.Run("validate endpoint", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/v1/strategies/%s/validate", st.StrategyID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Valid      bool   `json:"valid"`
			StatusHint string `json:"status_hint"`
		}
		decode(t, rec, &body)
		assert.True(t, body.Valid)
		assert.Equal(t, "ready", body.StatusHint)
	})

	t.Run("duplicate attachment 409", func(t *testing.T) {
		var full struct {
			Attachments []struct {
				CardID string `json:"card_id"`
			} `json:"attachments"`
		}
		rec := doJSON(t, srv, http.MethodGet, "/v1/strategies/"+st.StrategyID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &full)
		require.NotEmpty(t, full.Attachments)

		rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/v1/strategies/%s/attachments", st.StrategyID),
			map[string]interface{}{"card_id": full.Attachments[0].CardID, "role": "gate", "enabled": true})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown strategy 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/v1/strategies/ghost/compile", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("patch meta", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPatch, "/v1/strategies/"+st.StrategyID,
			map[string]interface{}{"status": "ready"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, srv, http.MethodPatch, "/v1/strategies/"+st.StrategyID,
			map[string]interface{}{"status": "archived"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListCardsPagination(t *testing.T) {
	srv := testServer(t)
	slots := exampleFor(t, srv, "entry.rule_trigger")
	for i := 0; i < 3; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/v1/cards",
			map[string]interface{}{"type_id": "entry.rule_trigger", "slots": slots})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	list := func(query string) []json.RawMessage {
		rec := doJSON(t, srv, http.MethodGet, "/v1/cards"+query, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Cards []json.RawMessage `json:"cards"`
		}
		decode(t, rec, &body)
		return body.Cards
	}

	assert.Len(t, list(""), 3)
	assert.Len(t, list("?limit=2"), 2)
	assert.Len(t, list("?limit=2&offset=2"), 1)
	assert.Empty(t, list("?offset=5"))
	assert.Len(t, list("?limit=nope"), 3, "malformed limit reads as unlimited")
}

func TestBadJSONBody(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/cards", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
