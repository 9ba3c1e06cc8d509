package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/involucelate/chef/internal/config"
	"github.com/involucelate/chef/internal/git"
)

const (
	// DefaultTableDataFile is the default file name for the table document in Git sources
	DefaultTableDataFile = "table.json"
)

// gitSourceHandler handles table documents stored in Git repositories
type gitSourceHandler struct {
	gitClient git.Client
	validator TableDataValidator
}

var _ SourceHandler = (*gitSourceHandler)(nil)

// NewGitSourceHandler creates a new Git source handler
func NewGitSourceHandler() SourceHandler {
	return &gitSourceHandler{
		gitClient: git.NewDefaultGitClient(),
		validator: NewTableDataValidator(),
	}
}

// Validate validates the Git source configuration
func (*gitSourceHandler) Validate(tblCfg *config.TableConfig) error {
	if tblCfg == nil {
		return fmt.Errorf("table configuration cannot be nil")
	}

	if tblCfg.Git == nil {
		return fmt.Errorf("git configuration is required")
	}

	gitSource := tblCfg.Git

	if gitSource.Repository == "" {
		return fmt.Errorf("git repository URL cannot be empty")
	}

	// Validate mutually exclusive branch/tag/commit
	specified := 0
	if gitSource.Branch != "" {
		specified++
	}
	if gitSource.Tag != "" {
		specified++
	}
	if gitSource.Commit != "" {
		specified++
	}

	if specified > 1 {
		return fmt.Errorf("only one of branch, tag, or commit may be specified")
	}

	return nil
}

// fetchTableData retrieves the raw table document from the Git repository
func (h *gitSourceHandler) fetchTableData(ctx context.Context, tblCfg *config.TableConfig) ([]byte, error) {
	// Validate table configuration
	if err := h.Validate(tblCfg); err != nil {
		return nil, fmt.Errorf("source validation failed: %w", err)
	}

	gitSource := tblCfg.Git
	// Prepare clone configuration
	cloneConfig := &git.CloneConfig{
		URL:    gitSource.Repository,
		Branch: gitSource.Branch,
		Tag:    gitSource.Tag,
		Commit: gitSource.Commit,
	}

	// Configure authentication if provided
	if gitSource.Username != "" {
		password, err := gitSource.GetPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to get git password: %w", err)
		}
		cloneConfig.Auth = &git.BasicAuth{
			Username: gitSource.Username,
			Password: password,
		}
	}

	// Clone the repository with timing
	startTime := time.Now()
	slog.Info("Starting git clone",
		"repository", cloneConfig.URL,
		"branch", cloneConfig.Branch,
		"tag", cloneConfig.Tag,
		"commit", cloneConfig.Commit)

	// Capture memory stats before operation
	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)
	repoInfo, err := h.gitClient.Clone(ctx, cloneConfig)
	cloneDuration := time.Since(startTime)

	if err != nil {
		slog.Error("Git clone failed",
			"error", err,
			"repository", cloneConfig.URL,
			"duration", cloneDuration.String())
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	slog.Info("Git clone completed",
		"repository", cloneConfig.URL,
		"duration", cloneDuration.String(),
		"branch", repoInfo.Branch,
		"commit_sha", repoInfo.CommitHash)

	// Ensure cleanup
	defer func() {
		if cleanupErr := h.gitClient.Cleanup(ctx, repoInfo); cleanupErr != nil {
			// Log error but don't fail the operation
			slog.Error("Failed to cleanup repository", "error", cleanupErr)
		}
		logMemoryStatsAfterOperation(&memBefore)
	}()

	// Get file content from repository
	filePath := gitSource.Path
	if filePath == "" {
		filePath = DefaultTableDataFile
	}

	tableData, err := h.gitClient.GetFileContent(repoInfo, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s from repository: %w", filePath, err)
	}

	return tableData, nil
}

// FetchTable retrieves the table document from the Git repository
func (h *gitSourceHandler) FetchTable(ctx context.Context, tblCfg *config.TableConfig) (*FetchResult, error) {
	tableData, err := h.fetchTableData(ctx, tblCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch table data: %w", err)
	}

	// Validate and parse the table document
	format := resolveFormat(tblCfg)
	doc, err := h.validator.ValidateData(tableData, format)
	if err != nil {
		return nil, fmt.Errorf("table document validation failed: %w", err)
	}

	// Calculate hash using the SHA256 hash of the raw document
	hash := fmt.Sprintf("%x", sha256.Sum256(tableData))

	// Create and return fetch result with pre-calculated hash
	return NewFetchResult(doc, hash, format), nil
}

// CurrentHash returns the current hash of the source data after fetching the table document
func (h *gitSourceHandler) CurrentHash(ctx context.Context, tblCfg *config.TableConfig) (string, error) {
	tableData, err := h.fetchTableData(ctx, tblCfg)
	if err != nil {
		return "", fmt.Errorf("failed to fetch table data: %w", err)
	}

	// Compute and return hash of the data
	hash := fmt.Sprintf("%x", sha256.Sum256(tableData))
	return hash, nil
}

// logMemoryStatsAfterOperation logs the memory stats after an operation
func logMemoryStatsAfterOperation(memBefore *runtime.MemStats) {
	// Log memory stats after cleanup and GC
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	// Calculate delta in MB with proper signed arithmetic
	allocAfterMB := memAfter.Alloc / (1024 * 1024)
	allocBeforeMB := memBefore.Alloc / (1024 * 1024)
	var deltaMB int64
	if allocAfterMB >= allocBeforeMB {
		// #nosec G115 -- Memory delta in MB will never exceed int64 max
		deltaMB = int64(allocAfterMB - allocBeforeMB)
	} else {
		// #nosec G115 -- Memory delta in MB will never exceed int64 max
		deltaMB = -int64(allocBeforeMB - allocAfterMB)
	}

	slog.Debug("Memory stats after git operation",
		"alloc_mb", allocAfterMB,
		"delta_mb", deltaMB,
		"sys_mb", memAfter.Sys/(1024*1024),
		"heap_alloc_mb", memAfter.HeapAlloc/(1024*1024),
		"heap_released_mb", memAfter.HeapReleased/(1024*1024))
}
