package access_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderaudio/guidekit/svc/access"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()
	f := newFixture(t)
	srv := httptest.NewServer(access.Router(f.svc))
	t.Cleanup(srv.Close)
	return srv, f
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRouter_Consume(t *testing.T) {
	t.Parallel()

	t.Run("successful consume", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t)
		accountID := uuid.New()

		resp := postJSON(t, srv.URL+"/accounts/"+accountID.String()+"/attractions/louvre/consume",
			`{"amount": 1, "idempotency_key": "key-1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, float64(1), body["from_trial"])
		assert.Equal(t, float64(1), body["remaining"])
	})

	t.Run("amount defaults to one credit", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t)
		accountID := uuid.New()

		resp := postJSON(t, srv.URL+"/accounts/"+accountID.String()+"/attractions/louvre/consume",
			`{"idempotency_key": "key-1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), decodeBody(t, resp)["remaining"])
	})

	t.Run("insufficient credits returns 402", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t)
		accountID := uuid.New()
		url := srv.URL + "/accounts/" + accountID.String() + "/attractions/louvre/consume"

		resp := postJSON(t, url, `{"amount": 2, "idempotency_key": "key-1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = postJSON(t, url, `{"amount": 1, "idempotency_key": "key-2"}`)
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	})

	t.Run("fractional amount is rejected", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t)
		accountID := uuid.New()

		resp := postJSON(t, srv.URL+"/accounts/"+accountID.String()+"/attractions/louvre/consume",
			`{"amount": 1.5, "idempotency_key": "key-1"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("idempotency key defaults to the attraction id", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t)
		accountID := uuid.New()
		base := srv.URL + "/accounts/" + accountID.String() + "/attractions/"

		resp := postJSON(t, base+"louvre/consume", `{"amount": 1}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), decodeBody(t, resp)["remaining"])

		// A repeat request for the same attraction replays the first charge.
		resp = postJSON(t, base+"louvre/consume", `{"amount": 1}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, true, body["replayed"])
		assert.Equal(t, float64(1), body["remaining"])

		// A different attraction is a fresh charge.
		resp = postJSON(t, base+"orsay/consume", `{"amount": 1}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(0), decodeBody(t, resp)["remaining"])
	})

	t.Run("invalid account id is rejected", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t)

		resp := postJSON(t, srv.URL+"/accounts/not-a-uuid/attractions/louvre/consume",
			`{"amount": 1, "idempotency_key": "key-1"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRouter_Entitlement(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	accountID := uuid.New()

	resp, err := http.Get(srv.URL + "/accounts/" + accountID.String() + "/entitlement")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["has_unlimited_access"])
	assert.Equal(t, float64(2), body["total_limit"])
	assert.Equal(t, float64(2), body["remaining"])
}

func TestRouter_Webhook(t *testing.T) {
	t.Parallel()

	t.Run("valid delivery is acknowledged", func(t *testing.T) {
		t.Parallel()
		srv, f := newTestServer(t)
		accountID := uuid.New()

		payload := fmt.Appendf(nil, `{
			"event_id": "evt_200",
			"event_type": "transaction.completed",
			"occurred_at": "2026-08-01T12:00:00Z",
			"data": {
				"id": "txn_200",
				"custom_data": {"account_id": %q},
				"items": [{"price_id": "guide_pack_10"}]
			}
		}`, accountID)

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/billing", strings.NewReader(string(payload)))
		require.NoError(t, err)
		req.Header.Set("Paddle-Signature", signPayload(t, payload))

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		ledger, err := f.consumer.GetLedger(t.Context(), accountID)
		require.NoError(t, err)
		assert.Equal(t, 12, ledger.Available())
	})

	t.Run("bad signature returns 400", func(t *testing.T) {
		t.Parallel()
		srv, _ := newTestServer(t)

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/billing",
			strings.NewReader(`{"event_id": "evt_201"}`))
		require.NoError(t, err)
		req.Header.Set("Paddle-Signature", "ts=1;h1=deadbeef")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
