// Package helpers provides test assembly and HTTP helpers for the
// dispatch API integration suite.
package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	"github.com/involucelate/chef/internal/api"
	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/service"
	"github.com/involucelate/chef/internal/service/inmemory"
	"github.com/involucelate/chef/internal/sources"
	"github.com/involucelate/chef/internal/status"
	pkgsync "github.com/involucelate/chef/internal/sync"
	"github.com/involucelate/chef/internal/sync/coordinator"
)

// DispatchServer assembles the real server components around an
// httptest server: in-memory dispatch service, source handlers, sync
// manager and coordinator, and the chi router.
type DispatchServer struct {
	Service service.DispatchService
	HTTP    *httptest.Server

	coordinator coordinator.Coordinator
	cancel      context.CancelFunc
	done        chan error
}

// StartDispatchServer builds and starts a server for the given
// configuration, with snapshots and sync status stored under dataDir.
func StartDispatchServer(ctx context.Context, cfg *config.Config, dataDir string) *DispatchServer {
	svcOpts := make([]inmemory.Option, 0, len(cfg.Tables))
	for i := range cfg.Tables {
		svcOpts = append(svcOpts, inmemory.WithExpectedTable(cfg.Tables[i].Name, cfg.Tables[i].GetType()))
	}
	svc := inmemory.New(svcOpts...)

	storageManager := sources.NewFileStorageManager(filepath.Join(dataDir, "tables"))
	statusPersistence := status.NewFileStatusPersistence(filepath.Join(dataDir, "status"))

	syncManager := pkgsync.NewDefaultSyncManager(
		sources.NewSourceHandlerFactory(),
		storageManager,
		svc,
	)
	syncCoordinator := coordinator.New(syncManager, statusPersistence, cfg)

	router := api.NewServer(svc,
		api.WithStatusReader(statusPersistence),
		api.WithSyncTrigger(syncCoordinator.TriggerSync),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s := &DispatchServer{
		Service:     svc,
		HTTP:        httptest.NewServer(router),
		coordinator: syncCoordinator,
		cancel:      cancel,
		done:        make(chan error, 1),
	}
	go func() {
		s.done <- syncCoordinator.Start(runCtx)
	}()
	return s
}

// Stop shuts the coordinator and the HTTP server down.
func (s *DispatchServer) Stop() {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
	}
	s.HTTP.Close()
}

// TriggerSync requests a manual sync for the named table.
func (s *DispatchServer) TriggerSync(table string) error {
	return s.coordinator.TriggerSync(table)
}

// Ready reports whether the readiness endpoint answers 200.
func (s *DispatchServer) Ready() bool {
	resp, err := http.Get(s.HTTP.URL + "/readiness")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// PostJSON posts body to path and decodes the response into out when
// out is non-nil. Error responses carry JSON bodies too (the register
// endpoint returns the conflict advisory alongside a 409), so the
// body is decoded regardless of status code. It returns the response
// status code.
func (s *DispatchServer) PostJSON(path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := http.Post(s.HTTP.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// GetJSON fetches path and decodes the response into out when out is
// non-nil. It returns the response status code.
func (s *DispatchServer) GetJSON(path string, out any) (int, error) {
	resp, err := http.Get(s.HTTP.URL + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// DeleteJSON issues a DELETE with a JSON body and decodes the response
// into out when out is non-nil. It returns the response status code.
func (s *DispatchServer) DeleteJSON(path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodDelete, s.HTTP.URL+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
