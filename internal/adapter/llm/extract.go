package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hanehara/tsugite/internal/core/port"
)

// extractContent pulls choices[0].message.content out of a chat response.
func extractContent(resp chatResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

var jsonObjectBlock = regexp.MustCompile(`(?s)\{.*\}`)

type generationPayload struct {
	SQL         string   `json:"sql"`
	Assumptions []string `json:"assumptions"`
}

// extractGeneration parses the model content as JSON; when the content has
// prose or fences around it, the first {...} block is rescued and parsed
// instead.
func extractGeneration(content string) (*port.Generation, bool) {
	var p generationPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil || p.SQL == "" {
		block := jsonObjectBlock.FindString(content)
		if block == "" {
			return nil, false
		}
		p = generationPayload{}
		if err := json.Unmarshal([]byte(block), &p); err != nil || p.SQL == "" {
			return nil, false
		}
	}
	return &port.Generation{
		SQL:         strings.TrimSpace(p.SQL),
		Assumptions: p.Assumptions,
	}, true
}
