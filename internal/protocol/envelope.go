package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInboundAccepted reports a call frame carrying the Accepted index,
// which only the server may emit.
var ErrInboundAccepted = errors.New("protocol: Accepted is not valid on inbound frames")

// Envelope is the outer frame on the TCP channel. The body stays raw
// until the command is known, so each frame is decoded exactly once.
type Envelope struct {
	Command Command         `json:"command"`
	Body    json.RawMessage `json:"body"`
	Token   string          `json:"token"`
}

// DecodeEnvelope parses one line into an envelope.
func DecodeEnvelope(line []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Command.Valid() {
		return env, fmt.Errorf("decode envelope: unknown command %d", env.Command)
	}
	return env, nil
}

// MessageRequest is the body of a Message envelope.
type MessageRequest struct {
	Message Message `json:"message"`
}

// CallRequest is the body of a Call envelope.
type CallRequest struct {
	Call      MediaCall  `json:"call"`
	Index     IndexToken `json:"index"`
	CreatedAt int64      `json:"created_at"`
}

// FileRequest is the body of a File envelope.
type FileRequest struct {
	File      MediaFile `json:"file"`
	CreatedAt int64     `json:"created_at"`
}

// DecodeMessage parses the envelope body as a message request.
func (e *Envelope) DecodeMessage() (MessageRequest, error) {
	var req MessageRequest
	if err := json.Unmarshal(e.Body, &req); err != nil {
		return req, fmt.Errorf("decode message request: %w", err)
	}
	return req, nil
}

// DecodeCall parses the envelope body as a call request. The Accepted
// index is rejected: it is a server-synthesized notification, never a
// client event.
func (e *Envelope) DecodeCall() (CallRequest, error) {
	var req CallRequest
	if err := json.Unmarshal(e.Body, &req); err != nil {
		return req, fmt.Errorf("decode call request: %w", err)
	}
	if !req.Index.Valid() {
		return req, fmt.Errorf("decode call request: unknown index %d", req.Index)
	}
	if req.Index == IndexAccepted {
		return req, ErrInboundAccepted
	}
	return req, nil
}

// DecodeFile parses the envelope body as a file request.
func (e *Envelope) DecodeFile() (FileRequest, error) {
	var req FileRequest
	if err := json.Unmarshal(e.Body, &req); err != nil {
		return req, fmt.Errorf("decode file request: %w", err)
	}
	if req.File.LenBytes < 0 {
		return req, fmt.Errorf("decode file request: negative length %d", req.File.LenBytes)
	}
	return req, nil
}

// Response status values.
const (
	StatusOk  = "Ok"
	StatusErr = "Err"
)

// CodeConnectionEstablished acknowledges a successful session handshake.
const CodeConnectionEstablished uint8 = 202

// Response is the server-to-client acknowledgement frame.
type Response struct {
	Status  string `json:"status"`
	Content uint8  `json:"content"`
}

// EncodeResponse serializes a response frame.
func EncodeResponse(status string, content uint8) (string, error) {
	out, err := json.Marshal(Response{Status: status, Content: content})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
