package calibration_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/faceval/internal/domain/calibration"
	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
	. "github.com/smartystreets/goconvey/convey"
)

type sample struct {
	conf    float64
	correct bool
}

// noConf marks a row that carries no confidence value.
var noConf = sample{conf: -1}

func buildSet(samples ...sample) *model.EvaluationSet {
	rows := make([]model.Row, len(samples))
	for i, s := range samples {
		pred := taxonomy.Male
		if !s.correct {
			pred = taxonomy.Female
		}
		rows[i] = model.Row{
			SubjectID: int64(i + 1),
			Truth:     map[taxonomy.Attribute]string{taxonomy.Gender: taxonomy.Male},
			Predicted: map[taxonomy.Attribute]string{taxonomy.Gender: pred},
		}
		if s != noConf {
			rows[i].Confidences = map[string]float64{"gender": s.conf}
		}
	}
	set, err := model.NewEvaluationSet("test", []taxonomy.Attribute{taxonomy.Gender}, rows)
	if err != nil {
		panic(err)
	}
	return set
}

func TestECE(t *testing.T) {
	Convey("Given two buckets 0.9/0.8 x8 and 0.4/0.4 x2", t, func() {
		buckets := []calibration.Bucket{
			{Lo: 0.9, Hi: 1, MeanConfidence: 0.9, Accuracy: 0.8, Count: 8},
			{Lo: 0.4, Hi: 0.5, MeanConfidence: 0.4, Accuracy: 0.4, Count: 2},
		}

		Convey("Then ECE is 0.08", func() {
			So(calibration.ECE(buckets), ShouldAlmostEqual, 0.08, 1e-12)
		})

		Convey("Then an empty NaN bucket changes nothing", func() {
			withEmpty := append(buckets, calibration.Bucket{MeanConfidence: math.NaN(), Accuracy: math.NaN()})
			So(calibration.ECE(withEmpty), ShouldAlmostEqual, 0.08, 1e-12)
		})
	})

	Convey("Given no buckets", t, func() {
		So(calibration.ECE(nil), ShouldEqual, 0)
	})
}

func TestCalibrateFixedWidth(t *testing.T) {
	Convey("Given ten samples spread over two buckets", t, func() {
		set := buildSet(
			sample{0.95, true}, sample{0.95, true}, sample{0.9, true}, sample{0.9, true},
			sample{0.92, true}, sample{0.91, false}, sample{0.99, true}, sample{1.0, false},
			sample{0.4, true}, sample{0.45, false},
		)

		Convey("When calibrated with ten fixed-width bins", func() {
			res, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.FixedWidth{})
			So(err, ShouldBeNil)

			Convey("Then all ten buckets are kept and counts add up", func() {
				So(len(res.Buckets), ShouldEqual, calibration.DefaultBins)
				total := 0
				for _, b := range res.Buckets {
					total += b.Count
				}
				So(total, ShouldEqual, 10)
				So(res.Total, ShouldEqual, 10)
			})

			Convey("Then 0.9 and 1.0 both land in the last bucket", func() {
				last := res.Buckets[9]
				So(last.Lo, ShouldEqual, 0.9)
				So(last.Hi, ShouldEqual, 1)
				So(last.Count, ShouldEqual, 8)
				So(last.Accuracy, ShouldEqual, 0.75)
				So(res.Buckets[4].Count, ShouldEqual, 2)
			})

			Convey("Then empty buckets have undefined statistics", func() {
				So(res.Buckets[0].Empty(), ShouldBeTrue)
				So(math.IsNaN(res.Buckets[0].MeanConfidence), ShouldBeTrue)
				So(math.IsNaN(res.Buckets[0].Accuracy), ShouldBeTrue)
			})

			Convey("Then ECE matches the bucket gaps", func() {
				// bucket 9: mean conf 0.94, acc 0.75; bucket 4: mean conf 0.425, acc 0.5
				want := math.Abs(0.75-7.52/8)*0.8 + math.Abs(0.5-0.425)*0.2
				So(res.ECE, ShouldAlmostEqual, want, 1e-9)
			})

			Convey("Then the result encodes NaN as null", func() {
				raw, err := json.Marshal(res)
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, `"mean_confidence":null`)
			})
		})
	})

	Convey("Given confidences on every bin boundary", t, func() {
		set := buildSet(sample{0.1, true}, sample{0.2, true}, sample{0.3, true}, sample{0.7, true})
		res, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.FixedWidth{Bins: 10})
		So(err, ShouldBeNil)

		Convey("Then each value opens its own bucket", func() {
			So(res.Buckets[1].Count, ShouldEqual, 1)
			So(res.Buckets[2].Count, ShouldEqual, 1)
			So(res.Buckets[3].Count, ShouldEqual, 1)
			So(res.Buckets[7].Count, ShouldEqual, 1)
		})
	})
}

func TestCalibrateProperties(t *testing.T) {
	Convey("Given perfectly calibrated predictions", t, func() {
		set := buildSet(sample{0.5, true}, sample{0.5, false}, sample{1.0, true}, sample{1.0, true})
		res, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.DistinctValue{})
		So(err, ShouldBeNil)
		So(res.ECE, ShouldAlmostEqual, 0, 1e-12)
	})

	Convey("Given predictions that share one bucket", t, func() {
		set := buildSet(sample{0.91, true}, sample{0.93, false}, sample{0.95, true}, sample{0.97, true})
		res, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.FixedWidth{Bins: 5})
		So(err, ShouldBeNil)

		Convey("Then ECE is the overall accuracy-confidence gap", func() {
			So(res.ECE, ShouldAlmostEqual, math.Abs(0.75-0.94), 1e-12)
		})
	})
}

func TestCalibrateDistinctValue(t *testing.T) {
	Convey("Given a model with a handful of confidence levels", t, func() {
		set := buildSet(sample{0.9, true}, sample{0.6, false}, sample{0.9, false}, sample{0.6, true}, sample{0.75, true})

		Convey("When calibrated by distinct value", func() {
			res, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.DistinctValue{})
			So(err, ShouldBeNil)

			Convey("Then there is one ascending bucket per value", func() {
				So(len(res.Buckets), ShouldEqual, 3)
				for i, want := range []float64{0.6, 0.75, 0.9} {
					So(res.Buckets[i].Lo, ShouldEqual, want)
					So(res.Buckets[i].Hi, ShouldEqual, want)
				}
				So(res.Buckets[0].Count, ShouldEqual, 2)
				So(res.Buckets[0].Accuracy, ShouldEqual, 0.5)
				So(res.Strategy, ShouldEqual, "distinct-value")
			})
		})
	})
}

func TestCalibrateInputs(t *testing.T) {
	Convey("Given percent-scaled confidences", t, func() {
		set := buildSet(sample{0.5, true}, sample{87, true})

		Convey("Then calibration refuses to guess the scale", func() {
			_, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.FixedWidth{})
			var ice *calibration.InvalidConfidenceError
			So(errors.As(err, &ice), ShouldBeTrue)
			So(ice.SubjectID, ShouldEqual, 2)
			So(ice.Value, ShouldEqual, 87)
		})
	})

	Convey("Given a NaN confidence", t, func() {
		set := buildSet(sample{math.NaN(), true})
		_, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.FixedWidth{})
		So(errors.Is(err, calibration.ErrInvalidConfidence), ShouldBeTrue)
	})

	Convey("Given rows without the confidence field", t, func() {
		set := buildSet(sample{0.8, true}, noConf, sample{0.6, false})
		res, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.FixedWidth{})
		So(err, ShouldBeNil)
		So(res.Skipped, ShouldEqual, 1)
		So(res.Total, ShouldEqual, 2)

		Convey("When no row has the field at all", func() {
			_, err := calibration.Calibrate(set, taxonomy.Gender, "face", calibration.FixedWidth{})
			So(errors.Is(err, calibration.ErrNoConfidences), ShouldBeTrue)
		})
	})

	Convey("Given a custom correctness predicate", t, func() {
		set := buildSet(sample{0.8, false}, sample{0.8, false})
		res, err := calibration.Calibrate(set, taxonomy.Gender, "gender", calibration.DistinctValue{},
			calibration.WithPredicate(func(model.Row) bool { return true }))
		So(err, ShouldBeNil)
		So(res.Buckets[0].Accuracy, ShouldEqual, 1)
	})

	Convey("Given no strategy", t, func() {
		_, err := calibration.Calibrate(buildSet(sample{0.5, true}), taxonomy.Gender, "gender", nil)
		So(errors.Is(err, calibration.ErrNilStrategy), ShouldBeTrue)
	})
}
