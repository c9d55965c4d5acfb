package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/okian/faceval/internal/domain/harmonize"
	"github.com/okian/faceval/internal/domain/taxonomy"
)

const formatDeepFace = "deepface"

// FaceConfidenceField holds DeepFace's face detection score, the only
// confidence DeepFace reports for its age estimate.
const FaceConfidenceField = "face"

// deepFaceFace is one element of DeepFace.analyze output.
type deepFaceFace struct {
	Age            *float64           `json:"age"`
	FaceConfidence *float64           `json:"face_confidence"`
	DominantGender string             `json:"dominant_gender"`
	Gender         map[string]float64 `json:"gender"`
	DominantRace   string             `json:"dominant_race"`
	Race           map[string]float64 `json:"race"`
}

// DeepFace decodes DeepFace.analyze results. Age is binned from the numeric
// estimate; gender and race confidences are the dominant class's percentage.
type DeepFace struct{}

// Format implements Decoder.
func (DeepFace) Format() string { return formatDeepFace }

// Decode implements Decoder. Only the first detected face is used.
func (DeepFace) Decode(raw json.RawMessage) (Prediction, error) {
	var faces []deepFaceFace
	if err := json.Unmarshal(raw, &faces); err != nil {
		// single-face output is sometimes not wrapped in a list
		var one deepFaceFace
		if err2 := json.Unmarshal(raw, &one); err2 != nil {
			return Prediction{}, fmt.Errorf("%w: deepface output: %w", ErrMalformedRecord, err)
		}
		faces = []deepFaceFace{one}
	}
	if len(faces) == 0 {
		return Prediction{}, fmt.Errorf("%w: deepface output has no face", ErrMalformedRecord)
	}
	f := faces[0]

	p := Prediction{
		Labels:      make(map[taxonomy.Attribute]string, 3),
		Confidences: make(map[string]float64, 3),
	}

	if f.Age != nil {
		// bins are upper-inclusive on real ages, so 29.5 belongs to 30-39
		bin, err := harmonize.BinAge(int(math.Ceil(*f.Age)))
		if err != nil {
			return Prediction{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		p.Labels[taxonomy.Age] = bin
	}
	if f.FaceConfidence != nil {
		p.Confidences[FaceConfidenceField] = *f.FaceConfidence
	}

	if f.DominantGender != "" {
		p.Labels[taxonomy.Gender] = f.DominantGender
		if c, ok := f.Gender[f.DominantGender]; ok {
			p.Confidences[string(taxonomy.Gender)] = c
		}
	}
	if f.DominantRace != "" {
		p.Labels[taxonomy.Race] = f.DominantRace
		if c, ok := f.Race[f.DominantRace]; ok {
			p.Confidences[string(taxonomy.Race)] = c
		}
	}
	return p, nil
}
