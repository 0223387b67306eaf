package ledger_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-dispatch/internal/auth"
	ledgerdb "ms-dispatch/internal/ledger/db"
	"ms-dispatch/internal/ledger/ledger_api"
	"ms-dispatch/internal/ledger/qr"
	"ms-dispatch/internal/ledger/service"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/models"
	"ms-dispatch/internal/utils"
)

func setupServer(t *testing.T) (*httptest.Server, *qr.QRGenerator) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:ledgerapitest?mode=memory&cache=shared")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx,
		(*models.Operator)(nil),
		(*models.Vehicle)(nil),
		(*models.Rate)(nil),
		(*models.Token)(nil),
	))

	operator := models.Operator{ID: "op-1", Username: "jdoe", Role: models.RoleOperator, CreatedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(&operator).Exec(ctx)
	require.NoError(t, err)
	vehicle := models.Vehicle{ID: "veh-1", Type: "truck", CreatedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(&vehicle).Exec(ctx)
	require.NoError(t, err)
	rate := models.Rate{VehicleType: "truck", Amount: 1200}
	_, err = bunDB.NewInsert().Model(&rate).Exec(ctx)
	require.NoError(t, err)

	store := ledgerdb.NewDB(bunDB)
	svc := service.NewLedgerService(store, nil, nil, nil)
	qrGen := qr.NewQRGenerator("test-secret")
	handler := ledger_api.NewHandler(svc, qrGen, &logger.Logger{})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(auth.Options{Disabled: true}))
		r.Route("/api/tokens", func(r chi.Router) {
			r.Post("/", handler.CreateToken)
			r.Post("/checkout", handler.CheckoutToken)
			r.Get("/{tokenID}", handler.ViewToken)
			r.Patch("/{tokenID}", handler.UpdateToken)
			r.Delete("/{tokenID}", handler.DeleteToken)
			r.Get("/{tokenID}/qr", handler.TokenQR)
			r.Post("/{tokenID}/load", handler.MarkLoaded)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	t.Cleanup(func() { bunDB.Close() })

	return server, qrGen
}

func doJSON(t *testing.T, method, url string, body interface{}, asUser string) (*http.Response, utils.APIResponse) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Operator-Username", asUser)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var apiResp utils.APIResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiResp))
	}
	return resp, apiResp
}

func issueReqBody() map[string]interface{} {
	return map[string]interface{}{
		"operator_id":      "op-1",
		"vehicle_id":       "veh-1",
		"driver_name":      "Ram Singh",
		"driver_mobile_no": "9876543210",
		"vehicle_no":       "MH12AB1234",
		"route":            "Pune-Nashik",
		"quantity":         30,
	}
}

func createToken(t *testing.T, server *httptest.Server) models.Token {
	resp, apiResp := doJSON(t, http.MethodPost, server.URL+"/api/tokens", issueReqBody(), "jdoe")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, apiResp.Success)

	raw, err := json.Marshal(apiResp.Data)
	require.NoError(t, err)
	var token models.Token
	require.NoError(t, json.Unmarshal(raw, &token))
	return token
}

func TestCreateAndViewToken(t *testing.T) {
	server, _ := setupServer(t)

	token := createToken(t, server)
	assert.Equal(t, "JDOE01", token.TokenNo)
	assert.Equal(t, 1200.0, token.VehicleRate)

	resp, apiResp := doJSON(t, http.MethodGet, server.URL+"/api/tokens/"+token.ID, nil, "jdoe")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, apiResp.Success)
}

func TestCreateTokenRejectsBadRequest(t *testing.T) {
	server, _ := setupServer(t)

	body := issueReqBody()
	body["driver_mobile_no"] = "abc"
	resp, apiResp := doJSON(t, http.MethodPost, server.URL+"/api/tokens", body, "jdoe")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, apiResp.Success)

	body = issueReqBody()
	body["operator_id"] = "op-missing"
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/tokens", body, "jdoe")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestViewMissingTokenReturns404(t *testing.T) {
	server, _ := setupServer(t)

	resp, apiResp := doJSON(t, http.MethodGet, server.URL+"/api/tokens/nope", nil, "jdoe")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, apiResp.Success)
}

func TestUpdateAndDeleteToken(t *testing.T) {
	server, _ := setupServer(t)
	token := createToken(t, server)

	resp, apiResp := doJSON(t, http.MethodPatch, server.URL+"/api/tokens/"+token.ID,
		map[string]interface{}{"driver_name": "Shyam Lal"}, "jdoe")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, apiResp.Success)

	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/tokens/"+token.ID, nil, "jdoe")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/tokens/"+token.ID, nil, "jdoe")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMarkLoadedAuthorization(t *testing.T) {
	server, _ := setupServer(t)
	token := createToken(t, server)

	// A different operator is refused.
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/tokens/"+token.ID+"/load", nil, "ramu")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, apiResp := doJSON(t, http.MethodPost, server.URL+"/api/tokens/"+token.ID+"/load", nil, "jdoe")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, apiResp.Success)
}

func TestTokenQREndpoint(t *testing.T) {
	server, _ := setupServer(t)
	token := createToken(t, server)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/tokens/"+token.ID+"/qr", nil)
	require.NoError(t, err)
	req.Header.Set("X-Operator-Username", "jdoe")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestCheckoutWithScannedQR(t *testing.T) {
	server, qrGen := setupServer(t)
	token := createToken(t, server)

	encrypted, err := qrGen.EncryptPayload(token)
	require.NoError(t, err)

	resp, apiResp := doJSON(t, http.MethodPost, server.URL+"/api/tokens/checkout",
		map[string]string{"encrypted_qr": encrypted}, "jdoe")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, apiResp.Success)

	// The stored token is now loaded.
	resp, apiResp = doJSON(t, http.MethodGet, server.URL+"/api/tokens/"+token.ID, nil, "jdoe")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := json.Marshal(apiResp.Data)
	require.NoError(t, err)
	var loaded models.Token
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.True(t, loaded.IsLoaded)
}

func TestCheckoutRejectsTamperedQR(t *testing.T) {
	server, qrGen := setupServer(t)
	token := createToken(t, server)

	tampered := token
	tampered.ChallanPin = "0000"
	encrypted, err := qrGen.EncryptPayload(tampered)
	require.NoError(t, err)

	resp, apiResp := doJSON(t, http.MethodPost, server.URL+"/api/tokens/checkout",
		map[string]string{"encrypted_qr": encrypted}, "jdoe")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, apiResp.Success)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/tokens/checkout",
		map[string]string{"encrypted_qr": ""}, "jdoe")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMissingIdentityHeaderIsUnauthorized(t *testing.T) {
	server, _ := setupServer(t)

	resp, err := http.Post(server.URL+"/api/tokens", "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
