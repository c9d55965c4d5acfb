package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	workerpool "github.com/okian/faceval/internal/adapters/mq/worker"
	"github.com/okian/faceval/internal/adapters/normalize"
	"github.com/okian/faceval/internal/adapters/report"
	"github.com/okian/faceval/internal/adapters/repository"
	"github.com/okian/faceval/internal/config"
	"github.com/okian/faceval/internal/domain/calibration"
	"github.com/okian/faceval/internal/domain/harmonize"
	"github.com/okian/faceval/internal/domain/join"
	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/scoring"
	"github.com/okian/faceval/internal/domain/taxonomy"
	"github.com/okian/faceval/pkg/logger"
	"github.com/okian/faceval/pkg/metrics"
)

// Input is one model's predictions already held in memory.
type Input struct {
	Model   config.Model
	Records []model.LabelRecord
}

// source loads one model's predictions. Loading happens inside the model's
// job so a broken file fails that model only.
type source struct {
	cfg  config.Model
	load func(ctx context.Context) ([]model.LabelRecord, error)
}

// outcome is what a model job leaves behind for the report and agreement.
type outcome struct {
	report      report.ModelReport
	predictions []model.LabelRecord
}

// Evaluate loads ground truth and every model's predictions from disk, scores
// them and publishes the report. A model whose run fails is reported with its
// error; the returned error is reserved for failures of the whole run.
func (s *Service) Evaluate(ctx context.Context, groundTruth string, models []config.Model) (*report.Report, error) {
	truth, err := s.store.LoadTruth(ctx, groundTruth)
	if err != nil {
		metrics.RecordError("service", "load_ground_truth")
		return nil, fmt.Errorf("load ground truth: %w", err)
	}
	metrics.RecordRecordsLoaded("ground_truth", len(truth))

	sources := make([]source, len(models))
	for i, m := range models {
		sources[i] = source{cfg: m, load: s.fileLoader(m)}
	}
	return s.run(ctx, groundTruth, truth, sources)
}

// EvaluateRecords scores in-memory inputs against in-memory ground truth.
func (s *Service) EvaluateRecords(ctx context.Context, truth []model.LabelRecord, inputs []Input) (*report.Report, error) {
	sources := make([]source, len(inputs))
	for i, in := range inputs {
		recs := in.Records
		sources[i] = source{cfg: in.Model, load: func(context.Context) ([]model.LabelRecord, error) { return recs, nil }}
	}
	return s.run(ctx, "memory", truth, sources)
}

func (s *Service) fileLoader(m config.Model) func(ctx context.Context) ([]model.LabelRecord, error) {
	return func(ctx context.Context) ([]model.LabelRecord, error) {
		format := strings.ToLower(m.Format)
		if format == "" || format == config.FormatCSV {
			return s.store.LoadPredictions(ctx, m.Predictions, repository.WithConfidenceScale(m.ConfidenceScale))
		}

		dec, err := normalize.ForFormat(format)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(m.Predictions)
		if err != nil {
			return nil, fmt.Errorf("open predictions: %w", err)
		}
		defer func() { _ = f.Close() }()

		recs, stats, err := normalize.Read(ctx, f, dec,
			normalize.WithHarmonizer(s.harmonizer),
			normalize.WithConfidenceScale(m.ConfidenceScale),
			normalize.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Predictions, err)
		}
		s.logger.Info(ctx, "raw predictions normalized",
			logger.String("model", m.Name),
			logger.String("format", format),
			logger.Int("normalized", stats.Normalized),
			logger.Int("skipped", stats.Skipped))
		return recs, nil
	}
}

func (s *Service) run(ctx context.Context, truthName string, rawTruth []model.LabelRecord, sources []source) (*report.Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.Named("run")
	log.Info(ctx, "evaluation started",
		logger.String("run_id", runID),
		logger.Int("models", len(sources)),
		logger.Int("truth", len(rawTruth)))

	truth, err := s.harmonizer.HarmonizeRecords(rawTruth)
	if err != nil {
		metrics.RecordError("service", errorType(err))
		return nil, fmt.Errorf("harmonize ground truth: %w", err)
	}

	outcomes := make([]outcome, len(sources))
	jobs := make([]workerpool.Job, len(sources))
	for i, src := range sources {
		jobs[i] = workerpool.Job{
			Name: src.cfg.Name,
			Run: func(ctx context.Context) error {
				out, err := s.evaluateModel(ctx, src, truth)
				outcomes[i] = out
				return err
			},
		}
	}
	results := s.pool.Run(ctx, jobs)

	rep := &report.Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		GroundTruth: truthName,
		Harmonized:  make(map[string]string, len(s.attributes)),
		Models:      make([]report.ModelReport, len(sources)),
	}
	for _, a := range s.attributes {
		rep.Harmonized[string(a)] = s.harmonizer.Version(a)
	}

	var succeeded []scoring.Predictions
	for i, res := range results {
		mr := outcomes[i].report
		mr.Model = res.Name
		mr.Duration = res.Duration
		if res.Err != nil {
			mr.Error = res.Err.Error()
			metrics.RecordError("service", errorType(res.Err))
		} else {
			succeeded = append(succeeded, scoring.Predictions{Model: res.Name, Records: outcomes[i].predictions})
		}
		rep.Models[i] = mr
	}
	rep.Agreement = s.agreement(ctx, succeeded)

	s.publish(rep)
	log.Info(ctx, "evaluation finished",
		logger.String("run_id", runID),
		logger.Int("failed", len(rep.Failed())),
		logger.Duration("duration", time.Since(start)))
	return rep, nil
}

func (s *Service) evaluateModel(ctx context.Context, src source, truth []model.LabelRecord) (outcome, error) {
	var out outcome
	name := src.cfg.Name

	raw, err := src.load(ctx)
	if err != nil {
		return out, fmt.Errorf("load predictions: %w", err)
	}
	metrics.RecordRecordsLoaded("predictions", len(raw))

	preds, err := s.harmonizer.HarmonizeRecords(raw)
	if err != nil {
		return out, fmt.Errorf("harmonize predictions: %w", err)
	}

	set, stats, err := join.Join(name, truth, preds, s.attributes, join.WithMaxDropRatio(s.maxDropRatio))
	if err != nil {
		return out, fmt.Errorf("join: %w", err)
	}
	metrics.RecordJoin(name, stats.DroppedTruth, stats.DroppedPredictions, stats.Warning != nil)
	out.report.Join = &report.JoinSummary{
		Truth:              stats.Truth,
		Predictions:        stats.Predictions,
		Joined:             stats.Joined,
		DroppedTruth:       stats.DroppedTruth,
		DroppedPredictions: stats.DroppedPredictions,
	}
	if stats.Warning != nil {
		out.report.Join.Warning = stats.Warning.Error()
		s.logger.Warn(ctx, "join dropped too many rows",
			logger.String("model", name),
			logger.Int("truth", stats.Truth),
			logger.Int("predictions", stats.Predictions),
			logger.Int("joined", stats.Joined),
			logger.Float64("dropped_truth_ratio", stats.Warning.DroppedTruthRatio),
			logger.Float64("dropped_predictions_ratio", stats.Warning.DroppedPredictionsRatio))
	}

	attrs := make([]report.AttributeReport, 0, len(s.attributes))
	for _, attr := range s.attributes {
		ar, err := scoreAttribute(set, attr)
		if err != nil {
			return out, fmt.Errorf("%s: %w", attr, err)
		}
		attrs = append(attrs, ar)
	}

	strategy := s.strategy(src.cfg)
	var calibrations []*calibration.Result
	for _, attr := range s.attributes {
		field := src.cfg.Field(string(attr))
		res, err := calibration.Calibrate(set, attr, field, strategy)
		if errors.Is(err, calibration.ErrNoConfidences) {
			s.logger.Debug(ctx, "no confidences to calibrate",
				logger.String("model", name),
				logger.String("attribute", string(attr)),
				logger.String("field", field))
			continue
		}
		if err != nil {
			return out, fmt.Errorf("calibrate %s: %w", attr, err)
		}
		calibrations = append(calibrations, res)
	}

	// metrics are published only once the whole model run succeeded
	for _, ar := range attrs {
		metrics.UpdateScores(name, string(ar.Attribute), ar.Accuracy, ar.MacroF1)
		if ar.Ordinal != nil {
			metrics.UpdateMeanBinDistance(name, string(ar.Attribute), ar.Ordinal.MeanBinDistance)
		}
	}
	for _, res := range calibrations {
		metrics.UpdateECE(name, string(res.Attribute), res.Field, res.ECE)
	}

	out.report.Subjects = set.Len()
	out.report.Attributes = attrs
	out.report.Calibration = calibrations
	out.predictions = preds
	return out, nil
}

func scoreAttribute(set *model.EvaluationSet, attr taxonomy.Attribute) (report.AttributeReport, error) {
	tax := attr.Taxonomy()

	var (
		cat *scoring.Categorical
		ord *scoring.Ordinal
		err error
	)
	if tax.Ordered() {
		ord, err = scoring.NewOrdinal(set, tax)
		if err != nil {
			return report.AttributeReport{}, err
		}
		cat = ord.Categorical
	} else {
		cat, err = scoring.NewCategorical(set, tax)
		if err != nil {
			return report.AttributeReport{}, err
		}
	}

	ar := report.AttributeReport{
		Attribute: attr,
		Labels:    tax.Labels(),
		Accuracy:  cat.Accuracy(),
		MacroF1:   cat.MacroF1(),
		Confusion: cat.ConfusionMatrix(scoring.NormalizeRow),
		Counts:    cat.ConfusionMatrix(scoring.NormalizeNone),
		PerClass:  cat.PerClass(),
	}
	if ord != nil {
		within1, err := ord.WithinK(1)
		if err != nil {
			return report.AttributeReport{}, err
		}
		within2, err := ord.WithinK(2)
		if err != nil {
			return report.AttributeReport{}, err
		}
		ar.Ordinal = &report.OrdinalReport{
			MeanBinDistance: ord.MeanBinDistance(),
			Within1:         within1,
			Within2:         within2,
		}
	}
	return ar, nil
}

func (s *Service) strategy(m config.Model) calibration.Strategy {
	if strings.EqualFold(m.Bucketing, config.BucketingDistinct) {
		return calibration.DistinctValue{}
	}
	return calibration.FixedWidth{Bins: s.calibrationBins}
}

// agreement compares every pair of successful models on their shared subjects.
func (s *Service) agreement(ctx context.Context, preds []scoring.Predictions) []*scoring.AgreementResult {
	var out []*scoring.AgreementResult
	for i := 0; i < len(preds); i++ {
		for j := i + 1; j < len(preds); j++ {
			res, err := scoring.Agreement(preds[i], preds[j], s.attributes)
			if err != nil {
				s.logger.Debug(ctx, "models not compared",
					logger.String("model_a", preds[i].Model),
					logger.String("model_b", preds[j].Model),
					logger.Error(err))
				continue
			}
			out = append(out, res)
		}
	}
	return out
}

// errorType classifies a failure for the errors_by_component metric.
func errorType(err error) string {
	var (
		unknown *harmonize.UnknownLabelError
		outside *taxonomy.LabelOutOfTaxonomyError
		conf    *calibration.InvalidConfidenceError
	)
	switch {
	case errors.As(err, &unknown):
		return "unknown_label"
	case errors.As(err, &outside):
		return "label_out_of_taxonomy"
	case errors.As(err, &conf):
		return "invalid_confidence"
	case errors.Is(err, join.ErrDuplicateSubject):
		return "duplicate_subject"
	case errors.Is(err, join.ErrMissingValue):
		return "missing_value"
	case errors.Is(err, scoring.ErrEmptySet):
		return "empty_set"
	case errors.Is(err, repository.ErrMalformedRow), errors.Is(err, normalize.ErrMalformedRecord):
		return "malformed_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
