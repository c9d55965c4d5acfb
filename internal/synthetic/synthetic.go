// Package synthetic generates ground truth and model predictions with known
// accuracy, for smoke-testing the evaluation pipeline end to end.
package synthetic

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"

	"github.com/okian/faceval/internal/adapters/repository"
	"github.com/okian/faceval/internal/config"
	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
	"github.com/okian/faceval/pkg/logger"
)

// ErrInvalidSpec is returned for unusable generator settings.
var ErrInvalidSpec = errors.New("invalid synthetic spec")

// Raw ground-truth spellings, as annotators write them.
var rawRace = map[string][]string{
	taxonomy.Asian:          {"East Asian", "Southeast Asian"},
	taxonomy.Black:          {"Black"},
	taxonomy.Indian:         {"Indian"},
	taxonomy.LatinoHispanic: {"Latino_Hispanic"},
	taxonomy.MiddleEastern:  {"Middle Eastern"},
	taxonomy.White:          {"White"},
}

// ModelSpec describes one simulated model.
type ModelSpec struct {
	Name string
	// Accuracy is the probability each label is predicted correctly.
	Accuracy float64
	// Confidences adds a confidence per attribute, higher when correct.
	Confidences bool
}

// Spec configures Generate.
type Spec struct {
	Subjects int
	Seed     uint64
	Models   []ModelSpec
}

// Dataset is a generated ground truth with predictions per model.
type Dataset struct {
	Truth       []model.LabelRecord
	Predictions map[string][]model.LabelRecord
}

// Generate builds a deterministic dataset from spec.
func Generate(spec Spec) (*Dataset, error) {
	if spec.Subjects < 1 {
		return nil, fmt.Errorf("%w: subjects must be positive", ErrInvalidSpec)
	}
	seen := map[string]bool{}
	for _, m := range spec.Models {
		if m.Name == "" || seen[m.Name] {
			return nil, fmt.Errorf("%w: model names must be unique and non-empty", ErrInvalidSpec)
		}
		if m.Accuracy < 0 || m.Accuracy > 1 {
			return nil, fmt.Errorf("%w: accuracy of %s outside [0,1]", ErrInvalidSpec, m.Name)
		}
		seen[m.Name] = true
	}

	rng := rand.New(rand.NewPCG(spec.Seed, spec.Seed^0x9e3779b97f4a7c15))
	ds := &Dataset{
		Truth:       make([]model.LabelRecord, spec.Subjects),
		Predictions: make(map[string][]model.LabelRecord, len(spec.Models)),
	}

	canonical := make([]map[taxonomy.Attribute]string, spec.Subjects)
	for i := range ds.Truth {
		labels := map[taxonomy.Attribute]string{}
		raw := map[taxonomy.Attribute]string{}
		for _, attr := range taxonomy.All() {
			tax := attr.Taxonomy()
			label := tax.Label(rng.IntN(tax.Len()))
			labels[attr] = label
			raw[attr] = rawLabel(rng, attr, label)
		}
		canonical[i] = labels
		ds.Truth[i] = model.LabelRecord{SubjectID: int64(i + 1), Values: raw}
	}

	for _, m := range spec.Models {
		preds := make([]model.LabelRecord, spec.Subjects)
		for i, truth := range canonical {
			rec := model.LabelRecord{SubjectID: int64(i + 1), Values: map[taxonomy.Attribute]string{}}
			if m.Confidences {
				rec.Confidences = map[string]float64{}
			}
			for _, attr := range taxonomy.All() {
				label, correct := predict(rng, attr, truth[attr], m.Accuracy)
				rec.Values[attr] = label
				if m.Confidences {
					rec.Confidences[string(attr)] = confidence(rng, correct)
				}
			}
			preds[i] = rec
		}
		ds.Predictions[m.Name] = preds
	}
	return ds, nil
}

func rawLabel(rng *rand.Rand, attr taxonomy.Attribute, label string) string {
	switch attr {
	case taxonomy.Race:
		opts := rawRace[label]
		return opts[rng.IntN(len(opts))]
	case taxonomy.Age:
		if label == taxonomy.Age70Plus {
			return "more than 70"
		}
	}
	return label
}

// predict returns the truth with probability acc, otherwise another label.
// Wrong age predictions land in a neighbouring bin.
func predict(rng *rand.Rand, attr taxonomy.Attribute, truth string, acc float64) (string, bool) {
	if rng.Float64() < acc {
		return truth, true
	}
	tax := attr.Taxonomy()
	idx, _ := tax.Index(truth)
	if tax.Ordered() {
		switch {
		case idx == 0:
			idx = 1
		case idx == tax.Len()-1:
			idx--
		case rng.IntN(2) == 0:
			idx--
		default:
			idx++
		}
		return tax.Label(idx), false
	}
	other := rng.IntN(tax.Len() - 1)
	if other >= idx {
		other++
	}
	return tax.Label(other), false
}

func confidence(rng *rand.Rand, correct bool) float64 {
	if correct {
		return 0.6 + 0.4*rng.Float64()
	}
	return 0.3 + 0.5*rng.Float64()
}

// Files lists what Write produced.
type Files struct {
	GroundTruth string
	Predictions map[string]string
	Config      string
}

// Write stores the dataset under dir as CSV files plus a faceval.yaml that
// evaluates them.
func Write(ctx context.Context, dir string, ds *Dataset, store repository.Store) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	out := &Files{
		GroundTruth: filepath.Join(dir, "ground_truth.csv"),
		Predictions: make(map[string]string, len(ds.Predictions)),
		Config:      filepath.Join(dir, "faceval.yaml"),
	}
	if err := store.SaveTruth(ctx, out.GroundTruth, ds.Truth); err != nil {
		return nil, err
	}

	names := sortedNames(ds.Predictions)
	models := make([]interface{}, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name+".csv")
		if err := store.SavePredictions(ctx, path, name, ds.Predictions[name]); err != nil {
			return nil, err
		}
		out.Predictions[name] = path
		models = append(models, map[string]interface{}{
			"name":        name,
			"predictions": path,
			"format":      config.FormatCSV,
		})
	}

	doc, err := yaml.Parser().Marshal(map[string]interface{}{
		"ground_truth": out.GroundTruth,
		"models":       models,
	})
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(out.Config, doc, 0o600); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}

	logger.Get().Info(ctx, "synthetic dataset written",
		logger.String("dir", dir),
		logger.Int("subjects", len(ds.Truth)),
		logger.Int("models", len(names)))
	return out, nil
}

func sortedNames(m map[string][]model.LabelRecord) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
