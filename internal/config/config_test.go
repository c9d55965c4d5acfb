package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/faceval/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.MaxDropRatio, convey.ShouldEqual, 0.05)
			convey.So(cfg.CalibrationBins, convey.ShouldEqual, 10)
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()
		cfg.Models = []config.Model{{Name: "DeepFace", Predictions: "deepface.csv"}}
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"negative drop ratio", func(c *config.Config) { c.MaxDropRatio = -0.1 }},
			{"drop ratio above one", func(c *config.Config) { c.MaxDropRatio = 1.5 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"zero bins", func(c *config.Config) { c.CalibrationBins = 0 }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"unknown attribute", func(c *config.Config) { c.Attributes = []string{"emotion"} }},
			{"unnamed model", func(c *config.Config) { c.Models[0].Name = "" }},
			{"no predictions path", func(c *config.Config) { c.Models[0].Predictions = "" }},
			{"unknown format", func(c *config.Config) { c.Models[0].Format = "parquet" }},
			{"unknown bucketing", func(c *config.Config) { c.Models[0].Bucketing = "quantile" }},
			{"zero scale", func(c *config.Config) { c.Models[0].ConfidenceScale = map[string]float64{"race": 0} }},
			{"bad confidence field", func(c *config.Config) { c.Models[0].ConfidenceFields = map[string]string{"mood": "x"} }},
			{"duplicate model", func(c *config.Config) {
				c.Models = append(c.Models, config.Model{Name: "DeepFace", Predictions: "other.csv"})
			}},
		}
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}

func TestModel_Field(t *testing.T) {
	convey.Convey("Given a model with an age confidence override", t, func() {
		m := config.Model{ConfidenceFields: map[string]string{"age": "face"}}

		convey.Convey("Then the override is used for age only", func() {
			convey.So(m.Field("age"), convey.ShouldEqual, "face")
			convey.So(m.Field("gender"), convey.ShouldEqual, "gender")
		})
	})
}
