package feedclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSlotFeesNtfnParams(t *testing.T) {
	slot, txns, err := parseSlotFeesNtfnParams([]json.RawMessage{
		json.RawMessage(`12345`),
		json.RawMessage(`[{"signature":"a","fee":10},{"signature":"b","fee":20}]`),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(12345), slot)
	require.Len(t, txns, 2)
}

func TestParseSlotFeesNtfnParamsErrors(t *testing.T) {
	tests := []struct {
		name   string
		params []json.RawMessage
	}{
		{
			name:   "too few parameters",
			params: []json.RawMessage{json.RawMessage(`1`)},
		},
		{
			name: "too many parameters",
			params: []json.RawMessage{
				json.RawMessage(`1`),
				json.RawMessage(`[]`),
				json.RawMessage(`true`),
			},
		},
		{
			name: "non-numeric slot",
			params: []json.RawMessage{
				json.RawMessage(`"abc"`),
				json.RawMessage(`[]`),
			},
		},
		{
			name: "transactions not an array",
			params: []json.RawMessage{
				json.RawMessage(`1`),
				json.RawMessage(`{"fee":10}`),
			},
		},
	}
	for _, test := range tests {
		_, _, err := parseSlotFeesNtfnParams(test.params)
		require.Errorf(t, err, "%s", test.name)
	}
}
