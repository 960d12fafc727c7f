package feejson_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsuite/feerd/feejson"
)

// TestEstimateFeeCmdMarshal ensures trailing optional parameters that are not
// set are omitted from the marshalled request.
func TestEstimateFeeCmdMarshal(t *testing.T) {
	t.Parallel()

	accounts := []string{"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}
	lookback := uint64(25)

	tests := []struct {
		name     string
		cmd      interface{}
		expected string
	}{
		{
			name:     "no optional args",
			cmd:      feejson.NewEstimateFeeCmd(nil, nil, nil, nil),
			expected: `{"jsonrpc":"1.0","method":"estimatefee","params":[],"id":1}`,
		},
		{
			name:     "accounts only",
			cmd:      feejson.NewEstimateFeeCmd(&accounts, nil, nil, nil),
			expected: `{"jsonrpc":"1.0","method":"estimatefee","params":[["TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"]],"id":1}`,
		},
		{
			name:     "accounts and lookback",
			cmd:      feejson.NewEstimateFeeCmd(&accounts, &lookback, nil, nil),
			expected: `{"jsonrpc":"1.0","method":"estimatefee","params":[["TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"],25],"id":1}`,
		},
		{
			name:     "all args",
			cmd:      feejson.NewEstimateFeeCmd(&accounts, &lookback, feejson.Bool(true), &[]float64{60, 99.5}),
			expected: `{"jsonrpc":"1.0","method":"estimatefee","params":[["TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"],25,true,[60,99.5]],"id":1}`,
		},
	}

	for _, test := range tests {
		marshalled, err := feejson.MarshalCmd(feejson.RpcVersion1, 1, test.cmd)
		require.NoErrorf(t, err, "%s: marshal", test.name)
		require.Equalf(t, test.expected, string(marshalled), "%s", test.name)
	}
}

// TestEstimateFeeCmdUnmarshal ensures omitted optional parameters are
// populated with their registered defaults.
func TestEstimateFeeCmdUnmarshal(t *testing.T) {
	t.Parallel()

	var request feejson.Request
	err := json.Unmarshal([]byte(`{"jsonrpc":"1.0","method":"estimatefee","params":[],"id":1}`), &request)
	require.NoError(t, err)

	cmd, err := feejson.UnmarshalCmd(&request)
	require.NoError(t, err)

	c, ok := cmd.(*feejson.EstimateFeeCmd)
	require.True(t, ok, "wrong command type %T", cmd)
	require.NotNil(t, c.Accounts)
	require.Empty(t, *c.Accounts)
	require.Nil(t, c.LookbackSlots)
	require.NotNil(t, c.IncludeVote)
	require.False(t, *c.IncludeVote)
	require.Nil(t, c.Percentiles)
}

// TestUnmarshalCmdErrors ensures the command parser rejects unregistered
// methods and parameter count mismatches with the expected error codes.
func TestUnmarshalCmdErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request string
		code    feejson.ErrorCode
	}{
		{
			name:    "unregistered method",
			request: `{"jsonrpc":"1.0","method":"bogusmethod","params":[],"id":1}`,
			code:    feejson.ErrUnregisteredMethod,
		},
		{
			name:    "too many params",
			request: `{"jsonrpc":"1.0","method":"health","params":[1],"id":1}`,
			code:    feejson.ErrNumParams,
		},
		{
			name:    "invalid param type",
			request: `{"jsonrpc":"1.0","method":"estimatefee","params":["not-an-array"],"id":1}`,
			code:    feejson.ErrInvalidType,
		},
	}

	for _, test := range tests {
		var request feejson.Request
		err := json.Unmarshal([]byte(test.request), &request)
		require.NoErrorf(t, err, "%s: request", test.name)

		_, err = feejson.UnmarshalCmd(&request)
		require.Errorf(t, err, "%s", test.name)
		jerr, ok := err.(feejson.Error)
		require.Truef(t, ok, "%s: wrong error type %T", test.name, err)
		require.Equalf(t, test.code, jerr.ErrorCode, "%s", test.name)
	}
}

// TestRegisteredMethods ensures the server command set is registered on
// package init.
func TestRegisteredMethods(t *testing.T) {
	t.Parallel()

	registered := feejson.RegisteredCmdMethods()
	methods := make(map[string]struct{}, len(registered))
	for _, method := range registered {
		methods[method] = struct{}{}
	}

	for _, method := range []string{
		"estimatefee", "estimatefeedetails", "getrecentprioritizationfees",
		"health", "notifyslotfees", "stop", "uptime", "version",
	} {
		_, ok := methods[method]
		require.Truef(t, ok, "method %q not registered", method)
	}

	flags, err := feejson.MethodUsageFlags("notifyslotfees")
	require.NoError(t, err)
	require.Equal(t, feejson.UFWebsocketOnly, flags&feejson.UFWebsocketOnly)
}
