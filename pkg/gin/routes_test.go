package gin

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	talentlayer "github.com/talentlayer/talentlayer-go"
	"github.com/talentlayer/talentlayer-go/extensions/idempotency"
)

var testSecret = []byte("test-secret")

type fakeAPI struct {
	proposal *talentlayer.Proposal
	err      error

	approved []string
	settled  []string
	amounts  []*big.Int
}

func (f *fakeAPI) GetProposal(context.Context, string, string) (*talentlayer.Proposal, error) {
	return f.proposal, f.err
}

func (f *fakeAPI) GetService(_ context.Context, serviceID string) (*talentlayer.Service, error) {
	if f.err != nil {
		return nil, f.err
	}
	if serviceID == "404" {
		return nil, nil
	}
	return &talentlayer.Service{ID: serviceID, Status: "Confirmed", TransactionID: "9"}, nil
}

func (f *fakeAPI) QuoteApproval(context.Context, string, string) (*talentlayer.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &talentlayer.Quote{Proposal: f.proposal, Breakdown: &talentlayer.FeeBreakdown{Total: big.NewInt(1_100_000)}}, nil
}

func (f *fakeAPI) Approve(_ context.Context, serviceID, proposalID, cid string) (*talentlayer.ApproveResult, error) {
	f.approved = append(f.approved, serviceID+"/"+proposalID+"/"+cid)
	if f.err != nil {
		return nil, f.err
	}
	return &talentlayer.ApproveResult{TransactionHash: "0xabc", Amount: big.NewInt(1_100_000)}, nil
}

func (f *fakeAPI) Release(_ context.Context, serviceID string, amount *big.Int, userID string) (*talentlayer.SettleResult, error) {
	return f.settle("release", serviceID, amount, userID)
}

func (f *fakeAPI) Reimburse(_ context.Context, serviceID string, amount *big.Int, userID string) (*talentlayer.SettleResult, error) {
	return f.settle("reimburse", serviceID, amount, userID)
}

func (f *fakeAPI) settle(op, serviceID string, amount *big.Int, userID string) (*talentlayer.SettleResult, error) {
	f.settled = append(f.settled, op+"/"+serviceID+"/"+userID)
	f.amounts = append(f.amounts, amount)
	if f.err != nil {
		return nil, f.err
	}
	return &talentlayer.SettleResult{TransactionHash: "0xdef", TransactionID: "9", Amount: amount}, nil
}

func (f *fakeAPI) Arbitrators() ([]talentlayer.Arbitrator, error) {
	return []talentlayer.Arbitrator{{Address: "0x0000000000000000000000000000000000000000", Name: talentlayer.ArbitratorNone}}, nil
}

func (f *fakeAPI) UpdateArbitrator(context.Context, string, string) (string, error) {
	return "0x123", f.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRouter(api talentlayer.EscrowAPI) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{API: api, Logger: quietLogger(), JWTSecret: testSecret})
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := IssueToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(r http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndArbitrators(t *testing.T) {
	r := newTestRouter(&fakeAPI{})

	w := do(r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/arbitrators", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), talentlayer.ArbitratorNone)
}

func TestReadsAreNotFound(t *testing.T) {
	r := newTestRouter(&fakeAPI{})

	w := do(r, http.MethodGet, "/proposals/1/2", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, talentlayer.ErrCodeProposalNotFound, decodeError(t, w).Code)

	w = do(r, http.MethodGet, "/services/404", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/services/7", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"transactionId":"9"`)
}

func TestQuote(t *testing.T) {
	r := newTestRouter(&fakeAPI{proposal: &talentlayer.Proposal{ID: "1-2"}})

	w := do(r, http.MethodGet, "/proposals/1/2/quote", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1100000`)
}

func TestWritesRequireToken(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(api)
	body := `{"serviceId":"1","proposalId":"2","metaEvidenceCid":"QmMeta"}`

	w := do(r, http.MethodPost, "/escrow/approve", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/escrow/approve", body, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := IssueToken([]byte("other-secret"), "ops", time.Hour)
	require.NoError(t, err)
	w = do(r, http.MethodPost, "/escrow/approve", body, "Bearer "+other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Empty(t, api.approved)
}

func TestRequireJWTRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)

	_, err = parseBearer("Bearer "+signed, testSecret)
	assert.Error(t, err)
}

func TestRequireJWTRejectsExpired(t *testing.T) {
	signed, err := IssueToken(testSecret, "ops", -time.Hour)
	require.NoError(t, err)

	_, err = parseBearer("Bearer "+signed, testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestApprove(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(api)

	w := do(r, http.MethodPost, "/escrow/approve",
		`{"serviceId":"1","proposalId":"2","metaEvidenceCid":"QmMeta"}`, bearer(t))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"1/2/QmMeta"}, api.approved)
	assert.Contains(t, w.Body.String(), `"transactionHash":"0xabc"`)
}

func TestApproveMissingField(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(api)

	w := do(r, http.MethodPost, "/escrow/approve", `{"serviceId":"1","proposalId":"2"}`, bearer(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, talentlayer.ErrCodeInvalidArgument, decodeError(t, w).Code)
	assert.Empty(t, api.approved)
}

func TestApproveFailureCarriesState(t *testing.T) {
	failure := talentlayer.NewError(talentlayer.ErrCodeApprovalFailed, "allowance approval transaction failed", nil)
	failure.State = talentlayer.StateEnsureAllowance
	r := newTestRouter(&fakeAPI{err: failure})

	w := do(r, http.MethodPost, "/escrow/approve",
		`{"serviceId":"1","proposalId":"2","metaEvidenceCid":"QmMeta"}`, bearer(t))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, talentlayer.ErrCodeApprovalFailed, body.Code)
	assert.Equal(t, string(talentlayer.StateEnsureAllowance), body.State)
}

func TestReleaseAndReimburse(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(api)
	body := `{"serviceId":"1","userId":"5","amount":"1000000000000000000000"}`

	w := do(r, http.MethodPost, "/escrow/release", body, bearer(t))
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/escrow/reimburse", body, bearer(t))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"release/1/5", "reimburse/1/5"}, api.settled)
	expected, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, 0, expected.Cmp(api.amounts[0]))
}

func TestRepeatedReleasesWithDeduplication(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(idempotency.Wrap(api))
	body := `{"serviceId":"1","userId":"5","amount":"500"}`

	withKey := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/escrow/release", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", bearer(t))
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// two partial releases of the same amount without a key are both paid
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/escrow/release", body, bearer(t)).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/escrow/release", body, bearer(t)).Code)
	assert.Len(t, api.settled, 2)

	// a retry carrying the same key replays the first result
	require.Equal(t, http.StatusOK, withKey("payout-1").Code)
	require.Equal(t, http.StatusOK, withKey("payout-1").Code)
	assert.Len(t, api.settled, 3)

	w := withKey(strings.Repeat("k", idempotency.MaxKeyLength+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, talentlayer.ErrCodeInvalidArgument, decodeError(t, w).Code)
	assert.Len(t, api.settled, 3)
}

func TestReleaseRejectsBadAmount(t *testing.T) {
	api := &fakeAPI{}
	r := newTestRouter(api)

	w := do(r, http.MethodPost, "/escrow/release", `{"serviceId":"1","userId":"5","amount":"ten"}`, bearer(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, talentlayer.ErrCodeInvalidAmount, decodeError(t, w).Code)
	assert.Empty(t, api.settled)
}

func TestUpdateArbitrator(t *testing.T) {
	r := newTestRouter(&fakeAPI{})
	w := do(r, http.MethodPut, "/platforms/3/arbitrator",
		`{"arbitrator":"0x0000000000000000000000000000000000000000"}`, bearer(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0x123")

	r = newTestRouter(&fakeAPI{err: talentlayer.NewError(talentlayer.ErrCodeInvalidArbitrator, "no", nil)})
	w = do(r, http.MethodPut, "/platforms/3/arbitrator", `{"arbitrator":"0x1"}`, bearer(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		talentlayer.ErrCodeTransactionNotFound: http.StatusNotFound,
		talentlayer.ErrCodeMissingPlatformID:   http.StatusBadRequest,
		talentlayer.ErrCodeAborted:             http.StatusConflict,
		talentlayer.ErrCodeEscrowCall:          http.StatusBadGateway,
		talentlayer.ErrCodeMissingLedger:       http.StatusServiceUnavailable,
		talentlayer.ErrCodeMissingDeployment:   http.StatusServiceUnavailable,
		talentlayer.ErrCodeInsufficientFunds:   http.StatusBadRequest,
		"":                                     http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, StatusFor(code), code)
	}
}

func TestMetricsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{
		API:     &fakeAPI{},
		Logger:  quietLogger(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) }),
	})

	w := do(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, "metrics", w.Body.String())

	// no secret configured: writes are open
	w = do(r, http.MethodPut, "/platforms/3/arbitrator", `{"arbitrator":"0x0"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
