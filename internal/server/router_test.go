package server

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-vesting/internal/custody"
	"token-vesting/internal/handler/middleware"
	"token-vesting/internal/schedule"
	"token-vesting/internal/service"
	"token-vesting/internal/vesting"
	"token-vesting/pkg/cache"
	"token-vesting/pkg/crypto_util"
	"token-vesting/pkg/errno"
)

const t0 = int64(1_700_000_000)

var (
	token  = common.HexToAddress("0x70c0")
	escrow = common.HexToAddress("0xe5c0")
)

type clock struct{ now int64 }

func (c *clock) Now() uint64        { return uint64(c.now) }
func (c *clock) Time() time.Time    { return time.Unix(c.now, 0) }
func (c *clock) advance(secs int64) { c.now += secs }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	clock   *clock
	custody *custody.Memory

	owner, signer, vester, alice *ecdsa.PrivateKey
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return k
}

func addr(k *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(k.PublicKey)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &testServer{
		t:       t,
		clock:   &clock{now: t0},
		custody: custody.NewMemory(escrow),
		owner:   newKey(t),
		signer:  newKey(t),
		vester:  newKey(t),
		alice:   newKey(t),
	}
	s.custody.Deposit(token, addr(s.vester), uint256.NewInt(10_000))

	ledger, err := vesting.New(vesting.Options{
		Owner:     addr(s.owner),
		Signer:    addr(s.signer),
		Custody:   s.custody,
		Validator: schedule.NewValidator(),
		Verifier:  crypto_util.NewPersonalVerifier(),
		Journal:   vesting.NewMemoryJournal(),
		Clock:     s.clock,
	})
	require.NoError(t, err)

	svc := service.NewVestingService(ledger, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)
	s.router = NewHTTPRouter(RouterConfig{Vesting: svc, AuthMaxSkew: time.Minute, Now: s.clock.Time})
	return s
}

// do 发送请求; key 不为空时附带签名头
func (s *testServer) do(method, path string, body interface{}, key *ecdsa.PrivateKey) envelope {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != nil {
		s.sign(req, key, s.clock.now)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func (s *testServer) sign(req *http.Request, key *ecdsa.PrivateKey, ts int64) {
	sig, err := crypto_util.SignPersonal(key, middleware.AuthMessage(req.Method, req.URL.Path, ts))
	require.NoError(s.t, err)
	req.Header.Set(middleware.HeaderAddress, addr(key).Hex())
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderSignature, hexutil.Encode(sig))
}

func (s *testServer) linearBody(tag string, end int64, beneficiaries []common.Address, allocations ...string) map[string]interface{} {
	tagBytes := []byte(tag)
	sig, err := crypto_util.SignPersonal(s.signer, vesting.PoolDigest("seed round", token, tagBytes).Bytes())
	require.NoError(s.t, err)
	bens := make([]string, len(beneficiaries))
	for i, b := range beneficiaries {
		bens[i] = b.Hex()
	}
	return map[string]interface{}{
		"name":          "seed round",
		"vesting_end":   end,
		"asset":         token.Hex(),
		"beneficiaries": bens,
		"allocations":   allocations,
		"signature":     hexutil.Encode(sig),
		"tag":           hexutil.Encode(tagBytes),
	}
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestLinearPoolOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := addr(s.alice)

	env := s.do(http.MethodPost, "/api/v1/pools/linear", s.linearBody("t1", t0+100, []common.Address{alice}, "1000"), s.vester)
	require.Equal(t, 0, env.Code, env.Msg)
	var opened struct {
		PoolID uint64 `json:"pool_id"`
	}
	decode(t, env.Data, &opened)
	assert.Equal(t, uint64(1), opened.PoolID)

	env = s.do(http.MethodGet, "/api/v1/pools/1", nil, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	var pool struct {
		Kind   string `json:"kind"`
		Vester string `json:"vester"`
		Total  string `json:"total"`
	}
	decode(t, env.Data, &pool)
	assert.Equal(t, "linear", pool.Kind)
	assert.Equal(t, addr(s.vester).Hex(), pool.Vester)
	assert.Equal(t, "1000", pool.Total)

	s.clock.advance(40)
	env = s.do(http.MethodGet, "/api/v1/pools/1/claimable?user="+alice.Hex(), nil, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	var claimable struct {
		Claimable string `json:"claimable"`
	}
	decode(t, env.Data, &claimable)
	assert.Equal(t, "400", claimable.Claimable)

	env = s.do(http.MethodPost, "/api/v1/pools/1/claim", map[string]string{"schedule": "linear"}, s.alice)
	require.Equal(t, 0, env.Code, env.Msg)
	var receipt struct {
		Amount    string `json:"amount"`
		Remaining string `json:"remaining"`
	}
	decode(t, env.Data, &receipt)
	assert.Equal(t, "400", receipt.Amount)
	assert.Equal(t, "600", receipt.Remaining)
	assert.Equal(t, "400", s.custody.Balance(token, alice).Dec())

	env = s.do(http.MethodGet, "/api/v1/pools/1/allocations/"+alice.Hex(), nil, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	var rows []struct {
		Schedule string `json:"schedule"`
		Claimed  string `json:"claimed"`
	}
	decode(t, env.Data, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "400", rows[0].Claimed)

	// 同一个授权不能用两次
	env = s.do(http.MethodPost, "/api/v1/pools/linear", s.linearBody("t1", t0+200, []common.Address{alice}, "10"), s.vester)
	assert.Equal(t, errno.ErrAlreadyUsed.Code, env.Code)
}

func TestBusinessErrorsUseEnvelope(t *testing.T) {
	s := newTestServer(t)
	alice := addr(s.alice)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		key    *ecdsa.PrivateKey
		code   int
	}{
		{"unknown pool", http.MethodGet, "/api/v1/pools/9", nil, nil, errno.ErrPoolNotFound.Code},
		{"bad pool id", http.MethodGet, "/api/v1/pools/abc", nil, nil, errno.ErrBind.Code},
		{"bad user", http.MethodGet, "/api/v1/pools/1/claimable?user=nope", nil, nil, errno.ErrBind.Code},
		{"claim without auth", http.MethodPost, "/api/v1/pools/1/claim", map[string]string{"schedule": "linear"}, nil, errno.ErrTokenInvalid.Code},
		{"bad schedule", http.MethodPost, "/api/v1/pools/1/claim", map[string]string{"schedule": "weekly"}, s.alice, errno.ErrBind.Code},
		{"sweep by non owner", http.MethodPost, "/api/v1/admin/sweep", map[string]string{"asset": token.Hex(), "to": alice.Hex(), "amount": "1"}, s.alice, errno.ErrUnauthorized.Code},
		{"fractional sweep", http.MethodPost, "/api/v1/admin/sweep", map[string]string{"asset": token.Hex(), "to": alice.Hex(), "amount": "1.5"}, s.owner, errno.ErrBind.Code},
		{"zero beneficiary", http.MethodPost, "/api/v1/pools/linear", s.linearBody("t2", t0+100, []common.Address{{}}, "1"), s.vester, errno.ErrBind.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := s.do(tt.method, tt.path, tt.body, tt.key)
			assert.Equal(t, tt.code, env.Code, env.Msg)
		})
	}
}

func TestAuthRejectsStaleAndForgedRequests(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"schedule": "linear"}

	send := func(mutate func(r *http.Request)) envelope {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pools/1/claim", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		mutate(req)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		return env
	}

	env := send(func(r *http.Request) { s.sign(r, s.alice, t0-120) })
	assert.Equal(t, errno.ErrTokenInvalid.Code, env.Code)

	env = send(func(r *http.Request) {
		s.sign(r, s.alice, t0)
		r.Header.Set(middleware.HeaderAddress, addr(s.owner).Hex())
	})
	assert.Equal(t, errno.ErrTokenInvalid.Code, env.Code)

	// 签名覆盖路径, 换路径即失效
	env = send(func(r *http.Request) {
		other := httptest.NewRequest(http.MethodPost, "/api/v1/pools/2/claim", nil)
		s.sign(other, s.alice, t0)
		for _, h := range []string{middleware.HeaderAddress, middleware.HeaderTimestamp, middleware.HeaderSignature} {
			r.Header.Set(h, other.Header.Get(h))
		}
	})
	assert.Equal(t, errno.ErrTokenInvalid.Code, env.Code)

	// 合法签名通过认证, 之后由账本判定
	env = send(func(r *http.Request) { s.sign(r, s.alice, t0) })
	assert.Equal(t, errno.ErrPoolNotFound.Code, env.Code)
}

func TestAdminOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice, bob := addr(s.alice), common.HexToAddress("0xb0b")

	env := s.do(http.MethodPost, "/api/v1/pools/linear", s.linearBody("t1", t0+100, []common.Address{alice}, "500"), s.vester)
	require.Equal(t, 0, env.Code, env.Msg)

	env = s.do(http.MethodPost, "/api/v1/admin/pools/1/migrate", map[string]string{"deprecated": alice.Hex(), "new": bob.Hex()}, s.owner)
	require.Equal(t, 0, env.Code, env.Msg)

	env = s.do(http.MethodGet, "/api/v1/migrations/"+bob.Hex(), nil, nil)
	var lookup struct {
		Migrated     bool   `json:"migrated"`
		MigratedFrom string `json:"migrated_from"`
	}
	decode(t, env.Data, &lookup)
	assert.True(t, lookup.Migrated)
	assert.Equal(t, alice.Hex(), lookup.MigratedFrom)

	// 缓存已失效, 名册里有新地址
	env = s.do(http.MethodGet, "/api/v1/pools/1", nil, nil)
	var pool struct {
		Roster []struct {
			Beneficiary  string `json:"beneficiary"`
			MigratedFrom string `json:"migrated_from"`
		} `json:"roster"`
	}
	decode(t, env.Data, &pool)
	require.Len(t, pool.Roster, 2)
	assert.Equal(t, bob.Hex(), pool.Roster[1].Beneficiary)

	s.custody.Deposit(token, escrow, uint256.NewInt(25))
	env = s.do(http.MethodGet, "/api/v1/escrow/"+token.Hex()+"/unallocated", nil, nil)
	var free struct {
		Unallocated string `json:"unallocated"`
	}
	decode(t, env.Data, &free)
	assert.Equal(t, "25", free.Unallocated)

	env = s.do(http.MethodPost, "/api/v1/admin/sweep", map[string]string{"asset": token.Hex(), "to": bob.Hex(), "amount": "25"}, s.owner)
	require.Equal(t, 0, env.Code, env.Msg)
	assert.Equal(t, "25", s.custody.Balance(token, bob).Dec())

	next := newKey(t)
	env = s.do(http.MethodPut, "/api/v1/admin/signer", map[string]string{"signer": addr(next).Hex()}, s.owner)
	require.Equal(t, 0, env.Code, env.Msg)

	// 旧签名人的授权失效
	env = s.do(http.MethodPost, "/api/v1/pools/linear", s.linearBody("t2", t0+100, []common.Address{alice}, "1"), s.vester)
	assert.Equal(t, errno.ErrSignerInvalid.Code, env.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	env := s.do(http.MethodPost, "/api/v1/pools/linear", s.linearBody("h1", t0+100, []common.Address{addr(s.alice)}, "10"), s.vester)
	require.Equal(t, 0, env.Code, env.Msg)

	env = s.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, 0, env.Code)
	var health struct {
		Status string `json:"status"`
		Seq    uint64 `json:"seq"`
		Pools  uint64 `json:"pools"`
		Signer string `json:"signer"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, uint64(1), health.Seq)
	assert.Equal(t, uint64(1), health.Pools)
	assert.Equal(t, addr(s.signer).Hex(), health.Signer)

	// 业务失败同样是 200, 指标按业务码区分
	env = s.do(http.MethodGet, "/api/v1/pools/99", nil, nil)
	require.Equal(t, errno.ErrPoolNotFound.Code, env.Code)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "vesting_http_requests_total")
	assert.Contains(t, body, `code="30008",method="GET",path="/api/v1/pools/:id"`)
}
