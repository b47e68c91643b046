package env_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/jrwilson/substrate/internal/env"
	"github.com/jrwilson/substrate/protocol"
)

var _ = Describe("LoadConfig", func() {
	keys := []string{"RFB_WIDTH", "RFB_HEIGHT", "RFB_VERSION", "RFB_UPDATE_INTERVAL", "RFB_SOURCE"}

	AfterEach(func() {
		for _, key := range keys {
			Expect(os.Unsetenv(key)).To(Succeed())
		}
	})

	It("has defaults for everything", func() {
		config, err := env.LoadConfig(context.Background())
		Expect(err).To(Succeed())

		Expect(config.Width).To(Equal(240))
		Expect(config.Height).To(Equal(160))
		Expect(config.DesktopName).To(Equal("substrate"))
		Expect(config.UpdateInterval).To(Equal(time.Second))
		Expect(config.Source).To(Equal("noise"))
		Expect(config.LogLevel).To(Equal("info"))

		version, err := config.ProtocolVersion()
		Expect(err).To(Succeed())
		Expect(version).To(Equal(protocol.Version38))
	})

	It("reads the environment", func() {
		Expect(os.Setenv("RFB_WIDTH", "64")).To(Succeed())
		Expect(os.Setenv("RFB_VERSION", "3.3")).To(Succeed())
		Expect(os.Setenv("RFB_UPDATE_INTERVAL", "250ms")).To(Succeed())
		Expect(os.Setenv("RFB_SOURCE", "pattern")).To(Succeed())

		config, err := env.LoadConfig(context.Background())
		Expect(err).To(Succeed())

		Expect(config.Width).To(Equal(64))
		Expect(config.UpdateInterval).To(Equal(250 * time.Millisecond))
		Expect(config.Source).To(Equal("pattern"))

		version, err := config.ProtocolVersion()
		Expect(err).To(Succeed())
		Expect(version).To(Equal(protocol.Version33))
	})

	It("rejects an empty desktop", func() {
		Expect(os.Setenv("RFB_HEIGHT", "0")).To(Succeed())

		_, err := env.LoadConfig(context.Background())
		Expect(err).To(MatchError(ContainSubstring("Invalid desktop size")))
	})

	It("rejects an unsupported version", func() {
		Expect(os.Setenv("RFB_VERSION", "4.0")).To(Succeed())

		config, err := env.LoadConfig(context.Background())
		Expect(err).To(Succeed())

		_, err = config.ProtocolVersion()
		Expect(err).To(MatchError(protocol.ErrUnsupportedVersion))
	})
})

var _ = Describe("MakeLogger", func() {
	It("uses the requested level", func() {
		log, err := env.MakeLogger("debug")
		Expect(err).To(Succeed())
		Expect(log.Core().Enabled(zapcore.DebugLevel)).To(BeTrue())

		log, err = env.MakeLogger("warn")
		Expect(err).To(Succeed())
		Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
	})

	It("rejects unknown levels", func() {
		_, err := env.MakeLogger("chatty")
		Expect(err).To(HaveOccurred())
	})
})
