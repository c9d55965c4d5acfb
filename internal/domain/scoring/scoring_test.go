package scoring_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/scoring"
	"github.com/okian/faceval/internal/domain/taxonomy"
	. "github.com/smartystreets/goconvey/convey"
)

// pair is a (truth, prediction) label pair for a single attribute.
type pair struct{ truth, pred string }

func buildSet(attr taxonomy.Attribute, pairs ...pair) *model.EvaluationSet {
	rows := make([]model.Row, len(pairs))
	for i, p := range pairs {
		rows[i] = model.Row{
			SubjectID: int64(i + 1),
			Truth:     map[taxonomy.Attribute]string{attr: p.truth},
			Predicted: map[taxonomy.Attribute]string{attr: p.pred},
		}
	}
	set, err := model.NewEvaluationSet("test", []taxonomy.Attribute{attr}, rows)
	if err != nil {
		panic(err)
	}
	return set
}

func TestCategoricalGenderScenario(t *testing.T) {
	Convey("Given truth [Female, Male] and predictions [Male, Male]", t, func() {
		set := buildSet(taxonomy.Gender, pair{"Female", "Male"}, pair{"Male", "Male"})
		c, err := scoring.NewCategorical(set, taxonomy.Gender.Taxonomy())
		So(err, ShouldBeNil)

		Convey("Then accuracy is one half", func() {
			So(c.Accuracy(), ShouldEqual, 0.5)
		})

		Convey("Then the raw confusion matrix puts everything in the Male column", func() {
			So(c.ConfusionMatrix(scoring.NormalizeNone), ShouldResemble, [][]float64{{0, 1}, {0, 1}})
		})

		Convey("Then the row-normalized matrix is [[0,1],[0,1]]", func() {
			So(c.ConfusionMatrix(scoring.NormalizeRow), ShouldResemble, [][]float64{{0, 1}, {0, 1}})
		})

		Convey("Then per-class scores follow one-vs-rest counting", func() {
			pc := c.PerClass()
			So(pc[0].Label, ShouldEqual, "Female")
			So(pc[0].F1, ShouldEqual, 0)
			So(pc[0].Support, ShouldEqual, 1)
			So(pc[1].Precision, ShouldEqual, 0.5)
			So(pc[1].Recall, ShouldEqual, 1)
			So(pc[1].F1, ShouldAlmostEqual, 2.0/3, 1e-12)
			So(c.MacroF1(), ShouldAlmostEqual, 1.0/3, 1e-12)
		})
	})
}

func TestCategoricalProperties(t *testing.T) {
	Convey("Given a race evaluation set", t, func() {
		pairs := []pair{
			{"Asian", "Asian"}, {"Asian", "White"}, {"Black", "Black"},
			{"White", "White"}, {"White", "Middle Eastern"}, {"Indian", "Black"},
		}
		tax := taxonomy.Race.Taxonomy()
		c, err := scoring.NewCategorical(buildSet(taxonomy.Race, pairs...), tax)
		So(err, ShouldBeNil)

		Convey("Then raw row sums equal truth class counts", func() {
			m := c.ConfusionMatrix(scoring.NormalizeNone)
			sums := make([]float64, len(m))
			for i, row := range m {
				for _, v := range row {
					sums[i] += v
				}
			}
			// Asian, Black, Indian, Latino_Hispanic, Middle Eastern, White
			So(sums, ShouldResemble, []float64{2, 1, 1, 0, 0, 2})
		})

		Convey("Then normalized rows sum to one or are all zero", func() {
			m := c.ConfusionMatrix(scoring.NormalizeRow)
			for i, row := range m {
				sum := 0.0
				for _, v := range row {
					sum += v
				}
				if i == 3 || i == 4 {
					So(sum, ShouldEqual, 0)
				} else {
					So(sum, ShouldAlmostEqual, 1, 1e-12)
				}
			}
			want := make([][]float64, 6)
			for i := range want {
				want[i] = make([]float64, 6)
			}
			want[0][0], want[0][5] = 0.5, 0.5
			want[1][1] = 1
			want[2][1] = 1
			want[5][4], want[5][5] = 0.5, 0.5
			So(cmp.Diff(want, m, cmpopts.EquateApprox(0, 1e-12)), ShouldBeEmpty)
		})

		Convey("Then macro-F1 averages over all six classes", func() {
			pc := c.PerClass()
			So(len(pc), ShouldEqual, 6)
			sum := 0.0
			for _, s := range pc {
				sum += s.F1
			}
			So(c.MacroF1(), ShouldAlmostEqual, sum/6, 1e-12)
			So(pc[3].F1, ShouldEqual, 0)
		})

		Convey("When every row is duplicated", func() {
			doubled := append(append([]pair{}, pairs...), pairs...)
			d, err := scoring.NewCategorical(buildSet(taxonomy.Race, doubled...), tax)
			So(err, ShouldBeNil)

			Convey("Then macro-F1 and accuracy are unchanged", func() {
				So(d.MacroF1(), ShouldAlmostEqual, c.MacroF1(), 1e-12)
				So(d.Accuracy(), ShouldAlmostEqual, c.Accuracy(), 1e-12)
			})
		})
	})
}

func TestCategoricalExtremes(t *testing.T) {
	Convey("Given gender predictions", t, func() {
		tax := taxonomy.Gender.Taxonomy()

		Convey("When every prediction is right", func() {
			c, err := scoring.NewCategorical(buildSet(taxonomy.Gender, pair{"Male", "Male"}, pair{"Female", "Female"}), tax)
			So(err, ShouldBeNil)
			So(c.Accuracy(), ShouldEqual, 1)
			So(c.MacroF1(), ShouldEqual, 1)
		})

		Convey("When every prediction is wrong", func() {
			c, err := scoring.NewCategorical(buildSet(taxonomy.Gender, pair{"Male", "Female"}, pair{"Female", "Male"}), tax)
			So(err, ShouldBeNil)
			So(c.Accuracy(), ShouldEqual, 0)
			So(c.MacroF1(), ShouldEqual, 0)
		})

		Convey("When only one class ever occurs", func() {
			c, err := scoring.NewCategorical(buildSet(taxonomy.Gender, pair{"Male", "Male"}), tax)
			So(err, ShouldBeNil)

			Convey("Then the absent class still counts towards macro-F1", func() {
				So(c.MacroF1(), ShouldEqual, 0.5)
			})
		})
	})
}

func TestCategoricalErrors(t *testing.T) {
	Convey("Given invalid inputs", t, func() {
		Convey("When the set is empty", func() {
			empty, err := model.NewEvaluationSet("m", []taxonomy.Attribute{taxonomy.Gender}, nil)
			So(err, ShouldBeNil)
			_, err = scoring.NewCategorical(empty, taxonomy.Gender.Taxonomy())
			So(errors.Is(err, scoring.ErrEmptySet), ShouldBeTrue)
		})

		Convey("When a label is outside the taxonomy", func() {
			set := buildSet(taxonomy.Race, pair{"East Asian", "Asian"})
			_, err := scoring.NewCategorical(set, taxonomy.Race.Taxonomy())
			var oe *taxonomy.LabelOutOfTaxonomyError
			So(errors.As(err, &oe), ShouldBeTrue)
			So(oe.Label, ShouldEqual, "East Asian")
		})

		Convey("When the set does not evaluate the attribute", func() {
			set := buildSet(taxonomy.Race, pair{"Asian", "Asian"})
			_, err := scoring.NewCategorical(set, taxonomy.Gender.Taxonomy())
			So(errors.Is(err, scoring.ErrAttributeNotEvaluated), ShouldBeTrue)
		})
	})
}

func TestOrdinal(t *testing.T) {
	Convey("Given truth 20-29 predicted as 40-49", t, func() {
		o, err := scoring.NewOrdinal(buildSet(taxonomy.Age, pair{"20-29", "40-49"}), taxonomy.Age.Taxonomy())
		So(err, ShouldBeNil)

		Convey("Then the prediction is two bins off", func() {
			So(o.MeanBinDistance(), ShouldEqual, 2)
			w1, err := o.WithinK(1)
			So(err, ShouldBeNil)
			So(w1, ShouldEqual, 0)
			w2, err := o.WithinK(2)
			So(err, ShouldBeNil)
			So(w2, ShouldEqual, 1)
		})

		Convey("Then the categorical metrics are still available", func() {
			So(o.Accuracy(), ShouldEqual, 0)
		})

		Convey("Then a negative k is rejected", func() {
			_, err := o.WithinK(-1)
			So(errors.Is(err, scoring.ErrNegativeK), ShouldBeTrue)
		})
	})

	Convey("Given a mixed age set", t, func() {
		o, err := scoring.NewOrdinal(buildSet(taxonomy.Age,
			pair{"0-2", "0-2"}, pair{"3-9", "10-19"}, pair{"30-39", "60-69"}, pair{"70+", "50-59"},
		), taxonomy.Age.Taxonomy())
		So(err, ShouldBeNil)

		Convey("Then within-k accuracy never decreases with k", func() {
			prev := -1.0
			for k := 0; k <= 8; k++ {
				w, err := o.WithinK(k)
				So(err, ShouldBeNil)
				So(w, ShouldBeGreaterThanOrEqualTo, prev)
				prev = w
			}
			So(prev, ShouldEqual, 1)
		})

		Convey("Then within-0 equals accuracy", func() {
			w0, _ := o.WithinK(0)
			So(w0, ShouldEqual, o.Accuracy())
			So(o.Distances(), ShouldResemble, []int{0, 1, 3, 2})
			So(o.MeanBinDistance(), ShouldEqual, 1.5)
		})
	})

	Convey("Given exact age predictions", t, func() {
		o, err := scoring.NewOrdinal(buildSet(taxonomy.Age, pair{"3-9", "3-9"}, pair{"70+", "70+"}), taxonomy.Age.Taxonomy())
		So(err, ShouldBeNil)
		So(o.MeanBinDistance(), ShouldEqual, 0)
	})

	Convey("Given an unordered taxonomy", t, func() {
		_, err := scoring.NewOrdinal(buildSet(taxonomy.Gender, pair{"Male", "Male"}), taxonomy.Gender.Taxonomy())
		So(errors.Is(err, scoring.ErrNotOrdinal), ShouldBeTrue)
	})
}

func TestAgreement(t *testing.T) {
	rec := func(id int64, gender, age string) model.LabelRecord {
		return model.LabelRecord{SubjectID: id, Values: map[taxonomy.Attribute]string{
			taxonomy.Gender: gender, taxonomy.Age: age,
		}}
	}

	Convey("Given two models' predictions", t, func() {
		a := scoring.Predictions{Model: "DeepFace", Records: []model.LabelRecord{
			rec(1, "Male", "20-29"), rec(2, "Female", "30-39"), rec(3, "Male", "3-9"),
		}}
		b := scoring.Predictions{Model: "FaceLLM", Records: []model.LabelRecord{
			rec(2, "Female", "50-59"), rec(1, "Female", "20-29"), rec(9, "Male", "70+"),
		}}

		Convey("When compared on gender and age", func() {
			res, err := scoring.Agreement(a, b, []taxonomy.Attribute{taxonomy.Gender, taxonomy.Age})
			So(err, ShouldBeNil)

			Convey("Then only shared subjects count", func() {
				So(res.Shared, ShouldEqual, 2)
				So(res.Rates[taxonomy.Gender], ShouldEqual, 0.5)
				So(res.Rates[taxonomy.Age], ShouldEqual, 0.5)
				So(res.MeanAgeBinGap, ShouldNotBeNil)
				So(*res.MeanAgeBinGap, ShouldEqual, 1)
			})
		})

		Convey("When age is not compared", func() {
			res, err := scoring.Agreement(a, b, []taxonomy.Attribute{taxonomy.Gender})
			So(err, ShouldBeNil)
			So(res.MeanAgeBinGap, ShouldBeNil)
		})

		Convey("When nothing overlaps", func() {
			_, err := scoring.Agreement(a, scoring.Predictions{Model: "x"}, []taxonomy.Attribute{taxonomy.Gender})
			So(errors.Is(err, scoring.ErrEmptySet), ShouldBeTrue)
		})
	})
}
