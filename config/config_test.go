package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/nutrition-proxy/config"
)

var managedEnv = []string{
	"GEMINI_API_KEY", "API_KEY", "PROVIDER_API_KEY", "PORT",
	"PROVIDER_MODEL", "SERVER_ENVIRONMENT", "RETRY_TEXT_ATTEMPTS",
}

var _ = Describe("Config", func() {
	var (
		tempDir     string
		originalDir string
	)

	BeforeEach(func() {
		var err error
		originalDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Chdir(tempDir)).To(Succeed())

		for _, key := range managedEnv {
			os.Unsetenv(key)
		}
	})

	AfterEach(func() {
		Expect(os.Chdir(originalDir)).To(Succeed())
		os.RemoveAll(tempDir)
		for _, key := range managedEnv {
			os.Unsetenv(key)
		}
	})

	writeFile := func(name, content string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		Context("with no config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Address).To(Equal(":3001"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvDev))
				Expect(cfg.Server.CORSOrigin).To(Equal("*"))
				Expect(cfg.Provider.Model).To(Equal("gemini-2.0-flash"))
				Expect(cfg.Provider.TimeoutDuration()).To(Equal(30 * time.Second))
				Expect(cfg.Retry.TextAttempts).To(Equal(5))
				Expect(cfg.Retry.ImageAttempts).To(Equal(3))
				Expect(cfg.Retry.InitialDelayDuration()).To(Equal(time.Second))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
			})

			It("should not require an API key", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Provider.APIKey).To(BeEmpty())
			})
		})

		Context("with valid config file", func() {
			BeforeEach(func() {
				writeFile("config.yaml", `
server:
  address: "127.0.0.1:8080"
  environment: "staging"

provider:
  model: "gemini-1.5-pro"
  timeout: "10s"

retry:
  text_attempts: 4
  initial_delay: "250ms"

logging:
  level: "debug"
`)
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.Address).To(Equal("127.0.0.1:8080"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvStaging))
				Expect(cfg.Provider.Model).To(Equal("gemini-1.5-pro"))
				Expect(cfg.Retry.TextAttempts).To(Equal(4))
				Expect(cfg.Retry.ImageAttempts).To(Equal(3))
				Expect(cfg.Retry.InitialDelayDuration()).To(Equal(250 * time.Millisecond))
			})

			It("should let the environment override the file", func() {
				os.Setenv("PROVIDER_MODEL", "gemini-2.5-flash")
				os.Setenv("RETRY_TEXT_ATTEMPTS", "2")

				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Provider.Model).To(Equal("gemini-2.5-flash"))
				Expect(cfg.Retry.TextAttempts).To(Equal(2))
			})
		})

		Context("with an explicit path", func() {
			It("should read that file", func() {
				path := writeFile("custom.yaml", "logging:\n  level: \"warn\"\n")

				cfg, err := config.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelWarn))
			})

			It("should fail when the file does not exist", func() {
				_, err := config.Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with environment variables", func() {
			It("should read the API key from GEMINI_API_KEY", func() {
				os.Setenv("GEMINI_API_KEY", "gemini-secret")

				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Provider.APIKey).To(Equal("gemini-secret"))
			})

			It("should fall back to API_KEY", func() {
				os.Setenv("API_KEY", "plain-secret")

				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Provider.APIKey).To(Equal("plain-secret"))
			})

			It("should listen on PORT", func() {
				os.Setenv("PORT", "8088")

				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":8088"))
			})
		})

		Context("with a .env file", func() {
			It("should load variables from it", func() {
				writeFile(".env", "GEMINI_API_KEY=from-dotenv\nPORT=4000\n")

				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Provider.APIKey).To(Equal("from-dotenv"))
				Expect(cfg.Server.Address).To(Equal(":4000"))
			})

			It("should not override variables already set", func() {
				writeFile(".env", "GEMINI_API_KEY=from-dotenv\n")
				os.Setenv("GEMINI_API_KEY", "from-env")

				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Provider.APIKey).To(Equal("from-env"))
			})
		})

		Context("with invalid values", func() {
			DescribeTable("should reject the configuration",
				func(content string) {
					writeFile("config.yaml", content)

					_, err := config.Load("")
					Expect(err).To(HaveOccurred())
				},
				Entry("unknown environment", "server:\n  environment: \"qa\"\n"),
				Entry("bad address", "server:\n  address: \"nope\"\n"),
				Entry("bad log level", "logging:\n  level: \"trace\"\n"),
				Entry("non-http base URL", "provider:\n  base_url: \"ftp://example.com\"\n"),
				Entry("empty model", "provider:\n  model: \"\"\n"),
				Entry("bad timeout", "provider:\n  timeout: \"soon\"\n"),
				Entry("zero attempts", "retry:\n  image_attempts: 0\n"),
				Entry("too many text attempts", "retry:\n  text_attempts: 11\n"),
				Entry("too many image attempts", "retry:\n  image_attempts: 35\n"),
				Entry("negative delay", "retry:\n  initial_delay: \"-1s\"\n"),
			)
		})
	})
})
