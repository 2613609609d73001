package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"TickChart/internal/domain/models"
)

// ErrNoPayload is returned when a tool result carries no usable tick payload.
var ErrNoPayload = errors.New("no tick payload in result")

const maxEnvelopeDepth = 4

type toolEnvelope struct {
	Items             json.RawMessage `json:"items"`
	StructuredContent json.RawMessage `json:"structuredContent"`
	Result            json.RawMessage `json:"result"`
	Content           []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// ExtractPayload pulls a RawPayload out of a tool result. The payload may be
// the document itself, sit under structuredContent or a JSON-RPC result, or be
// JSON text inside a content block.
func ExtractPayload(raw []byte) (*models.RawPayload, error) {
	return extractPayload(raw, 0)
}

func extractPayload(raw []byte, depth int) (*models.RawPayload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoPayload
	}
	if depth > maxEnvelopeDepth {
		return nil, fmt.Errorf("%w: envelope nested too deep", ErrNoPayload)
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: result is not an object", ErrNoPayload)
	}

	var env toolEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPayload, err)
	}
	if env.IsError {
		return nil, fmt.Errorf("%w: tool reported an error%s", ErrNoPayload, contentText(env))
	}

	if items := bytes.TrimSpace(env.Items); len(items) > 0 && !bytes.Equal(items, []byte("null")) {
		var p models.RawPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: decode items: %v", ErrNoPayload, err)
		}
		if p.Items == nil {
			p.Items = []*models.RawTick{}
		}
		return &p, nil
	}

	for _, nested := range []json.RawMessage{env.StructuredContent, env.Result} {
		if len(nested) == 0 {
			continue
		}
		if p, err := extractPayload(nested, depth+1); err == nil {
			return p, nil
		}
	}
	for _, c := range env.Content {
		if c.Type != "" && c.Type != "text" {
			continue
		}
		if p, err := extractPayload([]byte(c.Text), depth+1); err == nil {
			return p, nil
		}
	}
	return nil, ErrNoPayload
}

func contentText(env toolEnvelope) string {
	var parts []string
	for _, c := range env.Content {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return ": " + strings.Join(parts, "; ")
}
