/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Action is a named request that carries no payload.
type Action string

const ActionAdvanceRound Action = "advance-round"

// Request is an inbound client message. Exactly one field is set.
type Request struct {
	Score  *uint8  `json:"score,omitempty"`
	Action *Action `json:"action,omitempty"`
}

// DecodeRequest parses a single inbound message. Field names must match
// exactly; unknown, duplicate or differently cased keys are rejected.
func DecodeRequest(data []byte) (Request, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w: %s", ErrDecode, err, data)
	}

	var req Request

	for key, raw := range fields {
		switch key {
		case "score":
			err = json.Unmarshal(raw, &req.Score)
		case "action":
			err = json.Unmarshal(raw, &req.Action)
		default:
			err = fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return Request{}, fmt.Errorf("%w: %w: %s", ErrDecode, err, data)
		}
	}

	switch {
	case req.Score != nil && req.Action != nil:
		return Request{}, fmt.Errorf("%w: score and action are mutually exclusive: %s", ErrDecode, data)
	case req.Score == nil && req.Action == nil:
		return Request{}, fmt.Errorf("%w: expected score or action: %s", ErrDecode, data)
	case req.Action != nil && *req.Action != ActionAdvanceRound:
		return Request{}, fmt.Errorf("%w: unknown action %q", ErrDecode, *req.Action)
	}

	return req, nil
}

// decodeFields splits a single JSON object into its raw members, keyed by
// the names exactly as sent.
func decodeFields(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected a JSON object")
	}

	fields := make(map[string]json.RawMessage)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate field %q", key)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields[key] = raw
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data")
	}

	return fields, nil
}

// ErrorResponse is the terminal message sent before a connection is dropped.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorFrame encodes err as an ErrorResponse.
func ErrorFrame(err error) []byte {
	data, _ := json.Marshal(ErrorResponse{Error: err.Error()})

	return data
}
