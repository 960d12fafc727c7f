package rpcserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsuite/feerd/feejson"
	"github.com/solsuite/feerd/feetracker"
)

// testServer returns a server backed by a tracker pre-populated with the
// given fees, all inserted into a single slot.
func testServer(t *testing.T, slot uint64, fees []uint64) *Server {
	t.Helper()

	tracker := feetracker.NewTracker(0)
	for _, fee := range fees {
		tracker.Insert(&feetracker.FeeObservation{
			Slot:              slot,
			FeePerComputeUnit: fee,
		})
	}

	s, err := New(&Config{
		Tracker:      tracker,
		RPCUser:      "admin",
		RPCPass:      "adminpass",
		RPCLimitUser: "limit",
		RPCLimitPass: "limitpass",
		MaxClients:   10,
	})
	require.NoError(t, err)
	return s
}

func TestHandleEstimateFee(t *testing.T) {
	s := testServer(t, 100, []uint64{10, 20, 30, 40, 50})

	cmd := feejson.NewEstimateFeeCmd(nil, nil, nil, &[]float64{60})
	result, err := handleEstimateFee(s, cmd, nil)
	require.NoError(t, err)

	res, ok := result.(*feejson.EstimateFeeResult)
	require.True(t, ok, "wrong result type %T", result)
	require.Equal(t, 5, res.SampleCount)
	require.Equal(t, float64(10), res.Min)
	require.Equal(t, float64(30), res.Medium)
	require.Equal(t, float64(50), res.UnsafeMax)
	require.Equal(t, float64(34), res.Percentiles["p60"])
	require.Equal(t, uint64(100), res.FirstSlot)
	require.Equal(t, uint64(100), res.LastSlot)
}

func TestHandleEstimateFeeDetails(t *testing.T) {
	s := testServer(t, 100, []uint64{10, 20, 30})

	cmd := feejson.NewEstimateFeeDetailsCmd(nil, nil, nil)
	result, err := handleEstimateFeeDetails(s, cmd, nil)
	require.NoError(t, err)

	res, ok := result.(*feejson.EstimateFeeDetailsResult)
	require.True(t, ok, "wrong result type %T", result)
	require.Equal(t, 3, res.Estimate.SampleCount)

	global, ok := res.Scopes["global"]
	require.True(t, ok, "missing global scope")
	require.Equal(t, 3, global.Count)
	require.Equal(t, float64(20), global.Mean)
}

func TestHealthResultStates(t *testing.T) {
	// Empty window reports empty regardless of update times.
	s := testServer(t, 0, nil)
	result := s.healthResult()
	require.Equal(t, "empty", result.Status)
	require.Equal(t, float64(-1), result.LastUpdateAge)

	// A freshly updated window reports ok.
	s = testServer(t, 100, []uint64{10})
	result = s.healthResult()
	require.Equal(t, "ok", result.Status)
	require.Equal(t, uint64(100), result.MaxSeenSlot)
	require.Equal(t, 1, result.WindowSlots)
	require.Equal(t, uint64(feetracker.DefaultMaxLookbackSlots),
		result.MaxLookbackSlots)
	require.GreaterOrEqual(t, result.LastUpdateAge, float64(0))
}

func TestHandleHealthHTTP(t *testing.T) {
	s := testServer(t, 100, []uint64{10})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.handleHealthHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var result feejson.HealthResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Equal(t, "ok", result.Status)

	// Empty window probes are unavailable.
	s = testServer(t, 0, nil)
	w = httptest.NewRecorder()
	s.handleHealthHTTP(w, r)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Non-GET methods are rejected.
	r = httptest.NewRequest(http.MethodPost, "/health", nil)
	w = httptest.NewRecorder()
	s.handleHealthHTTP(w, r)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCheckAuth(t *testing.T) {
	s := testServer(t, 0, nil)

	makeReq := func(user, pass string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if user != "" {
			login := user + ":" + pass
			auth := "Basic " +
				base64.StdEncoding.EncodeToString([]byte(login))
			r.Header.Set("Authorization", auth)
		}
		return r
	}

	authed, isAdmin, err := s.checkAuth(makeReq("admin", "adminpass"), true)
	require.NoError(t, err)
	require.True(t, authed)
	require.True(t, isAdmin)

	authed, isAdmin, err = s.checkAuth(makeReq("limit", "limitpass"), true)
	require.NoError(t, err)
	require.True(t, authed)
	require.False(t, isAdmin)

	_, _, err = s.checkAuth(makeReq("admin", "wrong"), true)
	require.Error(t, err)

	_, _, err = s.checkAuth(makeReq("", ""), true)
	require.Error(t, err)

	authed, isAdmin, err = s.checkAuth(makeReq("", ""), false)
	require.NoError(t, err)
	require.False(t, authed)
	require.False(t, isAdmin)
}

func TestProcessRequestLimitedUser(t *testing.T) {
	s := testServer(t, 0, nil)

	req := &feejson.Request{
		Jsonrpc: feejson.RpcVersion1,
		Method:  "stop",
		Params:  []json.RawMessage{},
		ID:      1,
	}
	reply := s.processRequest(req, false, nil)
	require.NotNil(t, reply)

	var resp feejson.Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	require.NotNil(t, resp.Error)
}
