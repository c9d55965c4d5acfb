package normalize_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/faceval/internal/adapters/normalize"
	"github.com/okian/faceval/internal/domain/harmonize"
	"github.com/okian/faceval/internal/domain/taxonomy"
	. "github.com/smartystreets/goconvey/convey"
)

const deepfaceJSONL = `{"image_path": "val/12.jpg", "model": "deepface", "status": "ok", "raw_output": [{"age": 31, "face_confidence": 0.91, "dominant_gender": "Man", "gender": {"Man": 98.5, "Woman": 1.5}, "dominant_race": "latino hispanic", "race": {"latino hispanic": 64.0, "white": 30.0}}]}
{"image_path": "val/13.jpg", "model": "deepface", "status": "error", "error": "Face could not be detected"}

{"image_path": "val/14.jpg", "model": "deepface", "status": "ok", "raw_output": [{"age": 29.5, "face_confidence": 1, "dominant_gender": "Woman", "gender": {"Man": 20, "Woman": 80}, "dominant_race": "middle eastern", "race": {"middle eastern": 51}}]}
`

const facellmJSONL = "{\"image_path\": \"val/7.jpg\", \"model\": \"FaceLLM-8B\", \"status\": \"ok\", \"raw_output\": \"```json\\n{\\\"age_range\\\": \\\"20-29\\\", \\\"gender\\\": \\\"Female\\\", \\\"ethnicity\\\": \\\"East Asian\\\", \\\"confidence\\\": {\\\"age\\\": 0.6, \\\"gender\\\": 0.95, \\\"ethnicity\\\": 0.7}}\\n```\"}\n" +
	"{\"image_path\": \"val/8.jpg\", \"model\": \"FaceLLM-8B\", \"status\": \"error\", \"stderr\": \"CUDA out of memory\"}\n" +
	"{\"image_path\": \"val/9.jpg\", \"model\": \"FaceLLM-8B\", \"status\": \"ok\", \"raw_output\": \"{\\\"age_range\\\": \\\"more than 70\\\", \\\"gender\\\": \\\"Male\\\", \\\"ethnicity\\\": \\\"Black\\\"}\"}\n"

func TestForFormat(t *testing.T) {
	Convey("Given format names", t, func() {
		Convey("Then known names resolve case-insensitively", func() {
			d, err := normalize.ForFormat(" DeepFace ")
			So(err, ShouldBeNil)
			So(d.Format(), ShouldEqual, "deepface")

			d, err = normalize.ForFormat("facellm")
			So(err, ShouldBeNil)
			So(d.Format(), ShouldEqual, "facellm")
		})

		Convey("Then unknown names fail", func() {
			_, err := normalize.ForFormat("csv")
			So(errors.Is(err, normalize.ErrUnknownFormat), ShouldBeTrue)
		})
	})
}

func TestReadDeepFace(t *testing.T) {
	Convey("Given DeepFace batch output", t, func() {
		ctx := context.Background()

		Convey("When it is normalized", func() {
			recs, stats, err := normalize.Read(ctx, strings.NewReader(deepfaceJSONL), normalize.DeepFace{})
			So(err, ShouldBeNil)

			Convey("Then failed inferences are skipped and counted", func() {
				So(stats, ShouldResemble, normalize.Stats{Lines: 3, Normalized: 2, Skipped: 1})
				So(len(recs), ShouldEqual, 2)
			})

			Convey("Then labels are canonical", func() {
				So(recs[0].SubjectID, ShouldEqual, 12)
				So(recs[0].Values[taxonomy.Gender], ShouldEqual, taxonomy.Male)
				So(recs[0].Values[taxonomy.Race], ShouldEqual, taxonomy.LatinoHispanic)
				So(recs[0].Values[taxonomy.Age], ShouldEqual, taxonomy.Age30to39)
				So(recs[1].Values[taxonomy.Race], ShouldEqual, taxonomy.MiddleEastern)
			})

			Convey("Then fractional ages round up into the next bin", func() {
				So(recs[1].Values[taxonomy.Age], ShouldEqual, taxonomy.Age30to39)
			})

			Convey("Then confidences keep the model's scale", func() {
				So(recs[0].Confidences[normalize.FaceConfidenceField], ShouldEqual, 0.91)
				So(recs[0].Confidences["gender"], ShouldEqual, 98.5)
				So(recs[0].Confidences["race"], ShouldEqual, 64.0)
			})
		})

		Convey("When it is normalized with a percent scale", func() {
			recs, _, err := normalize.Read(ctx, strings.NewReader(deepfaceJSONL), normalize.DeepFace{},
				normalize.WithConfidenceScale(map[string]float64{"gender": 100, "race": 100}))
			So(err, ShouldBeNil)
			So(recs[0].Confidences["gender"], ShouldAlmostEqual, 0.985, 1e-12)
			So(recs[1].Confidences["race"], ShouldAlmostEqual, 0.51, 1e-12)
			So(recs[1].Confidences[normalize.FaceConfidenceField], ShouldEqual, 1.0)
		})

		Convey("When the race is outside the taxonomy", func() {
			line := `{"image_path": "1.jpg", "status": "ok", "raw_output": [{"age": 40, "dominant_gender": "Man", "dominant_race": "martian"}]}`
			_, _, err := normalize.Read(ctx, strings.NewReader(line), normalize.DeepFace{})

			Convey("Then the read aborts with an unknown label error", func() {
				So(errors.Is(err, harmonize.ErrUnknownLabel), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "line 1")
			})
		})

		Convey("When the output holds no face", func() {
			line := `{"image_path": "1.jpg", "status": "ok", "raw_output": []}`
			_, _, err := normalize.Read(ctx, strings.NewReader(line), normalize.DeepFace{})
			So(errors.Is(err, normalize.ErrMalformedRecord), ShouldBeTrue)
		})

		Convey("When a single face is not wrapped in a list", func() {
			line := `{"image_path": "5.png", "status": "ok", "raw_output": {"age": 2, "dominant_gender": "Woman"}}`
			recs, _, err := normalize.Read(ctx, strings.NewReader(line), normalize.DeepFace{})
			So(err, ShouldBeNil)
			So(recs[0].Values[taxonomy.Age], ShouldEqual, taxonomy.Age0to2)
			So(recs[0].Values[taxonomy.Gender], ShouldEqual, taxonomy.Female)
		})
	})
}

func TestReadFaceLLM(t *testing.T) {
	Convey("Given FaceLLM batch output", t, func() {
		ctx := context.Background()

		Convey("When it is normalized", func() {
			recs, stats, err := normalize.Read(ctx, strings.NewReader(facellmJSONL), normalize.FaceLLM{})
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, normalize.Stats{Lines: 3, Normalized: 2, Skipped: 1})

			Convey("Then fenced answers are decoded", func() {
				So(recs[0].SubjectID, ShouldEqual, 7)
				So(recs[0].Values[taxonomy.Race], ShouldEqual, taxonomy.Asian)
				So(recs[0].Values[taxonomy.Age], ShouldEqual, taxonomy.Age20to29)
				So(recs[0].Values[taxonomy.Gender], ShouldEqual, taxonomy.Female)
			})

			Convey("Then ethnicity confidence is reported under race", func() {
				So(recs[0].Confidences, ShouldResemble, map[string]float64{"age": 0.6, "gender": 0.95, "race": 0.7})
			})

			Convey("Then answers without confidences carry none", func() {
				So(recs[1].Values[taxonomy.Age], ShouldEqual, taxonomy.Age70Plus)
				So(recs[1].Confidences, ShouldBeNil)
			})
		})

		Convey("When the answer is not JSON", func() {
			line := `{"image_path": "3.jpg", "status": "ok", "raw_output": "I cannot determine that."}`
			_, _, err := normalize.Read(ctx, strings.NewReader(line), normalize.FaceLLM{})
			So(errors.Is(err, normalize.ErrMalformedRecord), ShouldBeTrue)
		})

		Convey("When an answer has two unknown labels", func() {
			line := `{"image_path": "4.jpg", "status": "ok", "raw_output": {"age_range": "20-29", "gender": "Robot", "ethnicity": "Martian"}}`

			Convey("Then the same attribute is reported every time", func() {
				for i := 0; i < 20; i++ {
					_, _, err := normalize.Read(ctx, strings.NewReader(line), normalize.FaceLLM{})
					var unknown *harmonize.UnknownLabelError
					So(errors.As(err, &unknown), ShouldBeTrue)
					So(unknown.Attribute, ShouldEqual, taxonomy.Gender)
				}
			})
		})
	})
}

func TestReadErrors(t *testing.T) {
	Convey("Given broken input", t, func() {
		ctx := context.Background()

		Convey("When an envelope is not JSON", func() {
			_, _, err := normalize.Read(ctx, strings.NewReader("{not json}\n"), normalize.FaceLLM{})
			So(errors.Is(err, normalize.ErrMalformedRecord), ShouldBeTrue)
		})

		Convey("When the image path has no numeric id", func() {
			line := `{"image_path": "val/face.jpg", "status": "ok", "raw_output": "{}"}`
			_, _, err := normalize.Read(ctx, strings.NewReader(line), normalize.FaceLLM{})
			So(errors.Is(err, normalize.ErrMalformedRecord), ShouldBeTrue)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := normalize.Read(cctx, strings.NewReader(facellmJSONL), normalize.FaceLLM{})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
