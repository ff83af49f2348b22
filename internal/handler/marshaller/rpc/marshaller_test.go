package rpcmarshaller

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-rpc-service/internal/domain/model"
)

func TestCallFrame(t *testing.T) {
	data, err := MarshalCall(model.Call{
		RequestID: "req-1",
		Method:    "GetThing",
		Param:     json.RawMessage(`{"id":7}`),
	})
	require.NoError(t, err)

	frame, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, FrameCall, frame.Type)
	require.NotNil(t, frame.Call)
	assert.Equal(t, "req-1", frame.Call.RequestID)
	assert.Equal(t, "GetThing", frame.Call.Method)
}

func TestFireAndForgetCallHasNoRequestID(t *testing.T) {
	data, err := MarshalCall(model.Call{Method: "ConnectionEvent"})
	require.NoError(t, err)

	frame, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, frame.Call.RequestID)
}

func TestReplyFrame(t *testing.T) {
	data, err := MarshalReply(model.Reply{
		RequestID: "req-1",
		Response:  model.ErrorResponse("boom"),
	})
	require.NoError(t, err)

	frame, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, FrameReply, frame.Type)
	require.NotNil(t, frame.Reply)
	assert.Equal(t, model.ResponseError, frame.Reply.Response.ResponseType)
}

func TestUnmarshalRejectsMalformedFrames(t *testing.T) {
	cases := map[string]string{
		"not json":           `{{`,
		"unknown type":       `{"type":"telegram"}`,
		"call body missing":  `{"type":"call"}`,
		"reply body missing": `{"type":"reply"}`,
		"reply without id":   `{"type":"reply","reply":{"response":{"ResponseType":"Null"}}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(raw))
			assert.Error(t, err)
		})
	}
}

// Peers written against the PascalCase contract stay decodable.
func TestUnmarshalCaseInsensitiveKeys(t *testing.T) {
	raw := `{"Type":"reply","Reply":{"Request_Id":"req-9","Response":{"responsetype":"Null"}}}`

	frame, err := Unmarshal([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "req-9", frame.Reply.RequestID)
	assert.Equal(t, model.ResponseNull, frame.Reply.Response.ResponseType)
}
