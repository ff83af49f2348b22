// Package rpcmarshaller encodes and decodes the logical frames of the RPC
// fabric: Call (server→client) and Reply (client→server).
package rpcmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/webitel/im-rpc-service/internal/domain/model"
)

type FrameType string

const (
	FrameCall  FrameType = "call"
	FrameReply FrameType = "reply"
)

// Frame is the wire wrapper. Exactly one of Call/Reply is set, selected by
// Type. Field matching on decode is case-insensitive.
type Frame struct {
	Type  FrameType    `json:"type"`
	Call  *model.Call  `json:"call,omitempty"`
	Reply *model.Reply `json:"reply,omitempty"`
}

func MarshalCall(c model.Call) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameCall, Call: &c})
}

func MarshalReply(r model.Reply) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameReply, Reply: &r})
}

// Unmarshal parses a frame and checks the body matches the tag.
func Unmarshal(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("frame: %w", err)
	}
	switch f.Type {
	case FrameCall:
		if f.Call == nil {
			return Frame{}, fmt.Errorf("frame: call body missing")
		}
	case FrameReply:
		if f.Reply == nil {
			return Frame{}, fmt.Errorf("frame: reply body missing")
		}
		if f.Reply.RequestID == "" {
			return Frame{}, fmt.Errorf("frame: reply without request id")
		}
	default:
		return Frame{}, fmt.Errorf("frame: unknown type %q", f.Type)
	}
	return f, nil
}
