package model

import "encoding/json"

// ResponseType tags the response envelope union.
type ResponseType string

const (
	ResponseJSON  ResponseType = "JsonObject"
	ResponseFile  ResponseType = "FilePath"
	ResponseNull  ResponseType = "Null"
	ResponseError ResponseType = "Error"
)

// Response is the envelope a peer sends back for one request. Exactly one of
// the value fields is meaningful, selected by ResponseType. Field matching on
// decode is case-insensitive (encoding/json default).
type Response struct {
	ResponseType ResponseType    `json:"ResponseType"`
	JsonData     json.RawMessage `json:"JsonData,omitempty"`
	FilePath     string          `json:"FilePath,omitempty"`
	ErrorMessage string          `json:"ErrorMessage,omitempty"`
}

// IsZero reports whether the envelope carries no tag at all, which only
// happens on a malformed reply.
func (r Response) IsZero() bool { return r.ResponseType == "" }

func NullResponse() Response {
	return Response{ResponseType: ResponseNull}
}

func ErrorResponse(msg string) Response {
	return Response{ResponseType: ResponseError, ErrorMessage: msg}
}

func FileResponse(path string) Response {
	return Response{ResponseType: ResponseFile, FilePath: path}
}

func JSONResponse(raw json.RawMessage) Response {
	return Response{ResponseType: ResponseJSON, JsonData: raw}
}

// Call is the server→client frame carrying one method invocation.
// A Call with an empty RequestID is fire-and-forget: the peer executes the
// method (if it cares) and must not reply. Connection events travel this way.
type Call struct {
	RequestID string          `json:"request_id,omitempty"`
	Method    string          `json:"method"`
	Param     json.RawMessage `json:"param,omitempty"`
}

// Reply is the client→server frame completing one request.
// Sending more than one Reply for a RequestID is a protocol violation; the
// hub keeps the first and drops the rest.
type Reply struct {
	RequestID string   `json:"request_id"`
	Response  Response `json:"response"`
}
