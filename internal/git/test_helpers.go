package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestRepoConfig contains configuration for creating a test repository
type TestRepoConfig struct {
	Files  map[string]string // Map of filename to content
	Author *object.Signature // Author for commits (uses default if nil)
}

func defaultAuthor(author *object.Signature) *object.Signature {
	if author != nil {
		return author
	}
	return &object.Signature{
		Name:  "Test Author",
		Email: "test@example.com",
	}
}

// commitFiles writes the given files into the worktree and commits them
func commitFiles(t *testing.T, repoDir string, workTree *git.Worktree, cfg TestRepoConfig, message string) plumbing.Hash {
	t.Helper()

	for filename, content := range cfg.Files {
		filePath := filepath.Join(repoDir, filename)

		// Create parent directory if needed
		dir := filepath.Dir(filePath)
		if dir != repoDir {
			if err := os.MkdirAll(dir, 0755); err != nil {
				t.Fatalf("Failed to create directory %s: %v", dir, err)
			}
		}

		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", filename, err)
		}

		if _, err := workTree.Add(filename); err != nil {
			t.Fatalf("Failed to add file %s: %v", filename, err)
		}
	}

	hash, err := workTree.Commit(message, &git.CommitOptions{
		Author: defaultAuthor(cfg.Author),
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return hash
}

func initTestRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()

	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}
	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	return repoDir, workTree
}

// CreateTestRepo creates a temporary Git repository with the specified files
// committed on the default branch. The repository lives under t.TempDir.
func CreateTestRepo(t *testing.T, config TestRepoConfig) string {
	t.Helper()

	repoDir, workTree := initTestRepo(t)
	commitFiles(t, repoDir, workTree, config, "Initial commit")
	return repoDir
}

// CreateTestRepoWithCommits creates a test repository with one commit per
// config entry and returns the repository path and commit hashes.
func CreateTestRepoWithCommits(t *testing.T, commits []TestRepoConfig) (string, []plumbing.Hash) {
	t.Helper()

	repoDir, workTree := initTestRepo(t)

	hashes := make([]plumbing.Hash, 0, len(commits))
	for i, cfg := range commits {
		hashes = append(hashes, commitFiles(t, repoDir, workTree, cfg, "Commit "+string(rune('A'+i))))
	}
	return repoDir, hashes
}

// CreateTestRepoWithBranches creates a test repository with an initial commit
// on the default branch plus one extra branch per entry in branches.
func CreateTestRepoWithBranches(t *testing.T, mainCommit TestRepoConfig, branches map[string]TestRepoConfig) string {
	t.Helper()

	repoDir, workTree := initTestRepo(t)
	commitFiles(t, repoDir, workTree, mainCommit, "Initial commit")

	for branchName, branchConfig := range branches {
		branchRef := plumbing.NewBranchReferenceName(branchName)
		err := workTree.Checkout(&git.CheckoutOptions{
			Branch: branchRef,
			Create: true,
		})
		if err != nil {
			t.Fatalf("Failed to create and checkout branch %s: %v", branchName, err)
		}

		commitFiles(t, repoDir, workTree, branchConfig, "Add "+branchName)
	}

	return repoDir
}
