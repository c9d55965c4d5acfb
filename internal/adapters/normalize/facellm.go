package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/faceval/internal/domain/taxonomy"
)

const formatFaceLLM = "facellm"

type faceLLMOutput struct {
	AgeRange   string             `json:"age_range"`
	Gender     string             `json:"gender"`
	Ethnicity  string             `json:"ethnicity"`
	Confidence map[string]float64 `json:"confidence"`
}

// FaceLLM decodes the JSON answer of the generative model. The answer arrives
// as a string and may be wrapped in a markdown code fence.
type FaceLLM struct{}

// Format implements Decoder.
func (FaceLLM) Format() string { return formatFaceLLM }

// Decode implements Decoder.
func (FaceLLM) Decode(raw json.RawMessage) (Prediction, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		// already-structured answers are accepted as is
		text = string(raw)
	}
	text = stripFence(text)

	var out faceLLMOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Prediction{}, fmt.Errorf("%w: facellm answer: %w", ErrMalformedRecord, err)
	}

	p := Prediction{
		Labels: map[taxonomy.Attribute]string{
			taxonomy.Age:    out.AgeRange,
			taxonomy.Gender: out.Gender,
			taxonomy.Race:   out.Ethnicity,
		},
		Confidences: make(map[string]float64, len(out.Confidence)),
	}
	fields := map[string]taxonomy.Attribute{
		"age":       taxonomy.Age,
		"gender":    taxonomy.Gender,
		"ethnicity": taxonomy.Race,
	}
	for key, c := range out.Confidence {
		if attr, ok := fields[key]; ok {
			p.Confidences[string(attr)] = c
		}
	}
	return p, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
