package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/eventmatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.BroadcastThreshold, convey.ShouldEqual, 0.1)
			convey.So(cfg.AnnealCoolingFactor, convey.ShouldEqual, 0.9)
			convey.So(cfg.AnnealSamplesPerLevel, convey.ShouldEqual, 100)
			convey.So(cfg.SMTPHost, convey.ShouldBeEmpty)
			convey.So(cfg.BreakerTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.DeliveryTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.RebuildInterval(), convey.ShouldEqual, 5*time.Minute)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with out-of-range values", t, func() {
		mutations := map[string]func(*config.Config){
			"empty addr":            func(c *config.Config) { c.Addr = "" },
			"empty database":        func(c *config.Config) { c.DatabasePath = "" },
			"zero queue":            func(c *config.Config) { c.QueueSize = 0 },
			"zero workers":          func(c *config.Config) { c.WorkerCount = 0 },
			"threshold of one":      func(c *config.Config) { c.BroadcastThreshold = 1 },
			"negative threshold":    func(c *config.Config) { c.BroadcastThreshold = -0.1 },
			"cooling of one":        func(c *config.Config) { c.AnnealCoolingFactor = 1 },
			"min above initial":     func(c *config.Config) { c.AnnealMinTemperature = 2 },
			"zero samples":          func(c *config.Config) { c.AnnealSamplesPerLevel = 0 },
			"smtp without sender":   func(c *config.Config) { c.SMTPHost = "smtp.example.com" },
			"smtp port overflow":    func(c *config.Config) { c.SMTPHost = "smtp.example.com"; c.SMTPFrom = "a@example.com"; c.SMTPPort = 70000 },
			"zero breaker timeout":  func(c *config.Config) { c.BreakerTimeoutSeconds = 0 },
			"zero delivery timeout": func(c *config.Config) { c.DeliveryTimeoutSeconds = 0 },
			"negative rebuild":      func(c *config.Config) { c.RebuildIntervalSeconds = -1 },
		}

		convey.Convey("Then each is rejected as invalid", func() {
			for name, mutate := range mutations {
				cfg := config.New(context.Background())
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(name, convey.ShouldNotBeEmpty)
			}
		})
	})
}
