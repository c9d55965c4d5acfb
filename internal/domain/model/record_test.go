package model_test

import (
	"errors"
	"testing"

	"github.com/okian/faceval/internal/domain/model"
	"github.com/okian/faceval/internal/domain/taxonomy"
	. "github.com/smartystreets/goconvey/convey"
)

func row(id int64, truth, pred string) model.Row {
	return model.Row{
		SubjectID: id,
		Truth:     map[taxonomy.Attribute]string{taxonomy.Gender: truth},
		Predicted: map[taxonomy.Attribute]string{taxonomy.Gender: pred},
	}
}

func TestParseSubjectID(t *testing.T) {
	Convey("Given subject identifiers", t, func() {
		Convey("Then bare integers and image paths are accepted", func() {
			for in, want := range map[string]int64{
				"123":              123,
				"train/123.jpg":    123,
				"val/000042.png":   42,
				`data\train\7.jpg`: 7,
			} {
				got, err := model.ParseSubjectID(in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Then non-numeric stems are rejected", func() {
			_, err := model.ParseSubjectID("train/face.jpg")
			So(errors.Is(err, model.ErrInvalidSubjectID), ShouldBeTrue)
		})
	})
}

func TestLabelRecordClone(t *testing.T) {
	Convey("Given a record with confidences", t, func() {
		rec := model.LabelRecord{
			SubjectID:   1,
			Values:      map[taxonomy.Attribute]string{taxonomy.Race: "White"},
			Confidences: map[string]float64{"race": 0.8},
		}

		Convey("When the clone is modified", func() {
			c := rec.Clone()
			c.Values[taxonomy.Race] = "Black"
			c.Confidences["race"] = 0.1

			Convey("Then the original is unchanged", func() {
				v, _ := rec.Value(taxonomy.Race)
				So(v, ShouldEqual, "White")
				conf, ok := rec.Confidence("race")
				So(ok, ShouldBeTrue)
				So(conf, ShouldEqual, 0.8)
			})
		})
	})
}

func TestNewEvaluationSet(t *testing.T) {
	attrs := []taxonomy.Attribute{taxonomy.Gender}

	Convey("Given unordered rows", t, func() {
		rows := []model.Row{row(3, "Male", "Male"), row(1, "Female", "Male"), row(2, "Male", "Female")}

		Convey("When an evaluation set is built", func() {
			set, err := model.NewEvaluationSet("DeepFace", attrs, rows)
			So(err, ShouldBeNil)

			Convey("Then rows are ordered by subject", func() {
				So(set.SubjectIDs(), ShouldResemble, []int64{1, 2, 3})
				So(set.Len(), ShouldEqual, 3)
				So(set.Model(), ShouldEqual, "DeepFace")
				So(set.Has(taxonomy.Gender), ShouldBeTrue)
				So(set.Has(taxonomy.Age), ShouldBeFalse)
			})

			Convey("Then labels come back as parallel slices", func() {
				truth, pred := set.Labels(taxonomy.Gender)
				So(truth, ShouldResemble, []string{"Female", "Male", "Male"})
				So(pred, ShouldResemble, []string{"Male", "Female", "Male"})
			})
		})

		Convey("When a subject repeats", func() {
			_, err := model.NewEvaluationSet("m", attrs, append(rows, row(1, "Male", "Male")))
			So(errors.Is(err, model.ErrDuplicateSubject), ShouldBeTrue)
		})

		Convey("When a predicted value is missing", func() {
			_, err := model.NewEvaluationSet("m", attrs, append(rows, row(9, "Male", "")))
			So(errors.Is(err, model.ErrMissingValue), ShouldBeTrue)
		})
	})
}
