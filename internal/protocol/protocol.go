// Package protocol defines the wire envelopes exchanged between the ctd
// client and daemon: one JSON object per line, newline-terminated, never
// containing an embedded newline.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Version is the protocol version this build speaks. A mismatch between
// client and daemon surfaces as a PROTOCOL_ERROR with no side effect.
const Version uint32 = 1

// ErrorCode is the wire error taxonomy, SCREAMING_SNAKE_CASE on the wire.
type ErrorCode string

const (
	ErrInvalidArg        ErrorCode = "INVALID_ARG"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"
	ErrIndexMismatch     ErrorCode = "INDEX_MISMATCH"
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
	ErrProtocol          ErrorCode = "PROTOCOL_ERROR"
)

// Request is the envelope a client sends. Cmd is a command object; which
// fields are meaningful depends on the Op discriminator (see Command).
type Request struct {
	Cmd             Command `json:"cmd"`
	RequestID       string  `json:"request_id"`
	ProtocolVersion uint32  `json:"protocol_version"`
}

// Command is tagged by Op ("find", "doc", "ls", "export", "reindex",
// "status", "diag", "bench"); fields not meaningful for a given Op are
// simply left at their zero value and omitted on the wire.
type Command struct {
	Op string `json:"cmd"`

	// find / doc / ls / export / status (shared filters)
	Name          string `json:"name,omitempty"`
	Path          string `json:"path,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Vis           string `json:"vis,omitempty"`
	Unimplemented *bool  `json:"unimplemented,omitempty"`
	Todo          *bool  `json:"todo,omitempty"`
	All           bool   `json:"all,omitempty"`

	// doc / ls / export
	IncludeDocs bool `json:"include_docs,omitempty"`

	// ls / export
	Expansion   string `json:"expansion,omitempty"`
	ImplParents bool   `json:"impl_parents,omitempty"`

	// export
	Bundle     bool `json:"bundle,omitempty"`
	WithSource bool `json:"with_source,omitempty"`

	// reindex
	Features       []string `json:"features,omitempty"`
	Target         string   `json:"target,omitempty"`
	Module         string   `json:"module,omitempty"`
	Struct         string   `json:"struct,omitempty"`
	IncludeDerives bool     `json:"include_derives,omitempty"`

	// bench
	Queries  uint32 `json:"queries,omitempty"`
	Warmup   uint32 `json:"warmup,omitempty"`
	Duration uint32 `json:"duration,omitempty"`
}

// Metrics is attached to a successful response by the daemon after a
// handler runs.
type Metrics struct {
	ElapsedMS uint64 `json:"elapsed_ms"`
	Bytes     int    `json:"bytes"`
}

// DecisionInfo describes the bounded alternatives offered when a full
// answer would exceed max_context_size.
type DecisionInfo struct {
	Reason     string   `json:"reason"`
	ContentLen int      `json:"content_len"`
	Options    []string `json:"options"`
}

// Response is the untagged union of success / decision-required / error,
// distinguished structurally by which fields are present rather than by a
// type tag, matching spec.md §4.3 and §9.
type Response struct {
	OK              bool             `json:"ok"`
	RequestID       string           `json:"request_id"`
	ProtocolVersion uint32           `json:"protocol_version"`
	Data            json.RawMessage  `json:"data,omitempty"`
	Truncated       bool             `json:"truncated,omitempty"`
	Metrics         *Metrics         `json:"metrics,omitempty"`
	DecisionRequired *DecisionInfo   `json:"decision_required,omitempty"`
	Err             string           `json:"err,omitempty"`
	ErrCode         ErrorCode        `json:"err_code,omitempty"`
}

// IsError reports whether this is the error shape of the union.
func (r *Response) IsError() bool {
	return !r.OK && r.ErrCode != ""
}

// IsDecisionRequired reports whether this is the decision-required shape.
func (r *Response) IsDecisionRequired() bool {
	return r.OK && r.DecisionRequired != nil
}

// Success builds a success envelope, marshaling data into the Data field.
func Success(requestID string, data interface{}) (Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response data: %w", err)
	}
	return Response{
		OK:              true,
		RequestID:       requestID,
		ProtocolVersion: Version,
		Data:            raw,
	}, nil
}

// Error builds an error envelope.
func Error(requestID string, code ErrorCode, err error) Response {
	return Response{
		OK:              false,
		RequestID:       requestID,
		ProtocolVersion: Version,
		Err:             err.Error(),
		ErrCode:         code,
	}
}

// Decision builds a decision-required envelope.
func Decision(requestID, reason string, contentLen int, options []string) Response {
	return Response{
		OK:              true,
		RequestID:       requestID,
		ProtocolVersion: Version,
		DecisionRequired: &DecisionInfo{
			Reason:     reason,
			ContentLen: contentLen,
			Options:    options,
		},
	}
}

// Marshal serializes a request or response to its line form, rejecting
// any payload containing an embedded newline as required by spec.md §4.3.
func Marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if strings.ContainsRune(string(b), '\n') {
		return "", fmt.Errorf("message contains an embedded newline (%d bytes)", len(b))
	}
	return string(b), nil
}

// UnmarshalRequest decodes one line into a Request.
func UnmarshalRequest(line string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// UnmarshalResponse decodes one line into a Response.
func UnmarshalResponse(line string) (Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
