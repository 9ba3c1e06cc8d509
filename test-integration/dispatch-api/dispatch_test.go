package integration

import (
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/status"
	"github.com/involucelate/chef/test-integration/dispatch-api/helpers"
)

const handlersTable = `{
	"version": "1",
	"entries": [
		{"key": "package", "value": "generic-pkg"},
		{"key": "package", "value": "ubuntu-pkg", "platform": "ubuntu", "canonical": true},
		{"key": "package", "value": "ubuntu-legacy-pkg", "platform": "ubuntu", "platform_version": ["< 20.04"]},
		{"key": "service", "value": "systemd-service", "os": "linux"}
	]
}`

var _ = Describe("Dispatch API with a file source", Label("file"), func() {
	var (
		tempDir string
		server  *helpers.DispatchServer
	)

	ubuntuAttrs := json.RawMessage(`{
		"os": "linux",
		"platform": "ubuntu",
		"platform_version": "22.04"
	}`)

	BeforeEach(func() {
		tempDir = createTempDir("dispatch-file-")
		tablePath := writeTableFile(tempDir, "handlers.json", handlersTable)

		cfg := &config.Config{
			Tables: []config.TableConfig{{
				Name:       "handlers",
				File:       &config.FileConfig{Path: tablePath},
				SyncPolicy: &config.SyncPolicyConfig{Interval: "1h"},
			}},
		}

		server = helpers.StartDispatchServer(ctx, cfg, tempDir)

		Eventually(server.Ready, 10*time.Second, 100*time.Millisecond).Should(BeTrue(),
			"server should become ready after the startup sync")
	})

	AfterEach(func() {
		server.Stop()
		cleanupTempDir(tempDir)
	})

	Describe("resolve", func() {
		It("returns the most specific matching value", func() {
			var resolution map[string]any
			code, err := server.PostJSON("/api/v1/resolve", map[string]any{
				"key":        "package",
				"attributes": ubuntuAttrs,
			}, &resolution)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))

			// The version-gated entry does not match 22.04, so the
			// platform entry wins.
			Expect(resolution["value"]).To(Equal("ubuntu-pkg"))
			Expect(resolution["canonical"]).To(Equal(true))
		})

		It("falls back to the unfiltered value for other platforms", func() {
			var resolution map[string]any
			code, err := server.PostJSON("/api/v1/resolve", map[string]any{
				"key":        "package",
				"attributes": json.RawMessage(`{"os": "linux", "platform": "centos"}`),
			}, &resolution)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resolution["value"]).To(Equal("generic-pkg"))
		})

		It("reports a miss for unknown keys", func() {
			code, err := server.PostJSON("/api/v1/resolve", map[string]any{
				"key": "unknown",
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("candidates", func() {
		It("lists matching values in priority order", func() {
			var resp struct {
				Candidates []map[string]any `json:"candidates"`
				Total      int              `json:"total"`
			}
			code, err := server.PostJSON("/api/v1/candidates", map[string]any{
				"key":        "package",
				"attributes": ubuntuAttrs,
			}, &resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))

			Expect(resp.Total).To(Equal(2))
			Expect(resp.Candidates[0]["value"]).To(Equal("ubuntu-pkg"))
			Expect(resp.Candidates[1]["value"]).To(Equal("generic-pkg"))
		})

		It("filters on the canonical flag", func() {
			var resp struct {
				Candidates []map[string]any `json:"candidates"`
			}
			code, err := server.PostJSON("/api/v1/candidates", map[string]any{
				"key":        "package",
				"attributes": ubuntuAttrs,
				"canonical":  true,
			}, &resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))

			Expect(resp.Candidates).To(HaveLen(1))
			Expect(resp.Candidates[0]["value"]).To(Equal("ubuntu-pkg"))
		})

		It("lists everything when no attributes are supplied", func() {
			var resp struct {
				Total int `json:"total"`
			}
			code, err := server.PostJSON("/api/v1/candidates", map[string]any{
				"key": "package",
			}, &resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resp.Total).To(Equal(3))
		})
	})

	Describe("registrations", func() {
		It("registers a new entry ahead of an equally specific one", func() {
			code, err := server.PostJSON("/api/v1/registrations", map[string]any{
				"entry": map[string]any{
					"key":      "service",
					"value":    "openrc-service",
					"os":       "linux",
					"override": true,
				},
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusCreated))

			var resolution map[string]any
			code, err = server.PostJSON("/api/v1/resolve", map[string]any{
				"key":        "service",
				"attributes": json.RawMessage(`{"os": "linux"}`),
			}, &resolution)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resolution["value"]).To(Equal("openrc-service"))
		})

		It("reports a conflict advisory without blocking the registration", func() {
			var result map[string]any
			code, err := server.PostJSON("/api/v1/registrations", map[string]any{
				"entry": map[string]any{
					"key":   "service",
					"value": "upstart-service",
					"os":    "linux",
				},
			}, &result)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusConflict))
			Expect(result["conflict"]).NotTo(BeNil())

			// The registration still took effect, ahead of the old one.
			var resolution map[string]any
			code, err = server.PostJSON("/api/v1/resolve", map[string]any{
				"key":        "service",
				"attributes": json.RawMessage(`{"os": "linux"}`),
			}, &resolution)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resolution["value"]).To(Equal("upstart-service"))
		})
	})

	Describe("canonical deletion", func() {
		It("removes only canonical registrations with the given value", func() {
			var resp struct {
				Key       string `json:"key"`
				Remaining int    `json:"remaining"`
			}
			code, err := server.DeleteJSON("/api/v1/keys/package/canonical", map[string]any{
				"value": "ubuntu-pkg",
			}, &resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resp.Remaining).To(Equal(2))

			var resolution map[string]any
			code, err = server.PostJSON("/api/v1/resolve", map[string]any{
				"key":        "package",
				"attributes": ubuntuAttrs,
			}, &resolution)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resolution["value"]).To(Equal("generic-pkg"))
		})
	})

	Describe("keys", func() {
		It("lists registered keys in sorted order", func() {
			var resp struct {
				Keys []string `json:"keys"`
			}
			code, err := server.GetJSON("/api/v1/keys", &resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resp.Keys).To(Equal([]string{"package", "service"}))
		})
	})

	Describe("sync status", func() {
		It("exposes the persisted status of the startup sync", func() {
			var resp struct {
				Tables map[string]struct {
					Phase      string `json:"phase"`
					EntryCount int    `json:"entryCount"`
				} `json:"tables"`
			}
			code, err := server.GetJSON("/api/v1/status", &resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))

			Expect(resp.Tables).To(HaveKey("handlers"))
			Expect(resp.Tables["handlers"].Phase).To(Equal(string(status.SyncPhaseComplete)))
			Expect(resp.Tables["handlers"].EntryCount).To(Equal(4))
		})
	})
})
