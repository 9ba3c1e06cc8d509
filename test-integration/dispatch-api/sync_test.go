package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/test-integration/dispatch-api/helpers"
)

const syncTable = `{
	"version": "1",
	"entries": [
		{"key": "package", "value": "generic-pkg"},
		{"key": "service", "value": "systemd-service", "os": "linux"},
		{"key": "internal/bootstrap", "value": "bootstrap-v1"}
	]
}`

const syncTableUpdated = `{
	"version": "1",
	"entries": [
		{"key": "package", "value": "generic-pkg-v2"},
		{"key": "service", "value": "systemd-service", "os": "linux"},
		{"key": "internal/bootstrap", "value": "bootstrap-v1"}
	]
}`

// resolveValue fetches the current winning value for key, or "" when
// the lookup does not answer 200.
func resolveValue(server *helpers.DispatchServer, key string) string {
	var resolution map[string]any
	code, err := server.PostJSON("/api/v1/resolve", map[string]any{"key": key}, &resolution)
	if err != nil || code != http.StatusOK {
		return ""
	}
	value, _ := resolution["value"].(string)
	return value
}

var _ = Describe("Sync lifecycle", Label("sync"), func() {
	var (
		tempDir string
		server  *helpers.DispatchServer
	)

	AfterEach(func() {
		server.Stop()
		cleanupTempDir(tempDir)
	})

	Describe("key filtering", func() {
		BeforeEach(func() {
			tempDir = createTempDir("dispatch-sync-filter-")
			tablePath := writeTableFile(tempDir, "handlers.json", syncTable)

			cfg := &config.Config{
				Tables: []config.TableConfig{{
					Name:       "handlers",
					File:       &config.FileConfig{Path: tablePath},
					SyncPolicy: &config.SyncPolicyConfig{Interval: "1h"},
					Filter: &config.FilterConfig{
						Keys: &config.FilterCriteria{
							Exclude: []string{"internal/*"},
						},
					},
				}},
			}

			server = helpers.StartDispatchServer(ctx, cfg, tempDir)
			Eventually(server.Ready, 10*time.Second, 100*time.Millisecond).Should(BeTrue())
		})

		It("drops excluded keys during sync", func() {
			var resp struct {
				Keys []string `json:"keys"`
			}
			code, err := server.GetJSON("/api/v1/keys", &resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(resp.Keys).To(Equal([]string{"package", "service"}))

			code, err = server.PostJSON("/api/v1/resolve", map[string]any{
				"key": "internal/bootstrap",
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("manual re-sync", func() {
		var tablePath string

		BeforeEach(func() {
			tempDir = createTempDir("dispatch-sync-manual-")
			tablePath = writeTableFile(tempDir, "handlers.json", syncTable)

			cfg := &config.Config{
				Tables: []config.TableConfig{{
					Name:       "handlers",
					File:       &config.FileConfig{Path: tablePath},
					SyncPolicy: &config.SyncPolicyConfig{Interval: "1h"},
				}},
			}

			server = helpers.StartDispatchServer(ctx, cfg, tempDir)
			Eventually(server.Ready, 10*time.Second, 100*time.Millisecond).Should(BeTrue())
		})

		It("picks up source changes on demand", func() {
			Expect(resolveValue(server, "package")).To(Equal("generic-pkg"))

			writeTableFile(tempDir, "handlers.json", syncTableUpdated)
			Expect(server.TriggerSync("handlers")).To(Succeed())

			Eventually(func() string {
				return resolveValue(server, "package")
			}, 10*time.Second, 100*time.Millisecond).Should(Equal("generic-pkg-v2"))
		})

		It("leaves the table untouched when the source is unchanged", func() {
			Expect(server.TriggerSync("handlers")).To(Succeed())

			Consistently(func() string {
				return resolveValue(server, "package")
			}, 1*time.Second, 100*time.Millisecond).Should(Equal("generic-pkg"))
		})

		It("rejects triggers for unknown tables", func() {
			Expect(server.TriggerSync("no-such-table")).NotTo(Succeed())
		})

		It("can trigger a sync over the API", func() {
			code, err := server.PostJSON("/api/v1/tables/handlers/sync", map[string]any{}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusAccepted))
		})
	})
})
