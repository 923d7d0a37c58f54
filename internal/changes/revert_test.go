package changes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevertRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "A0")
	writeFile(t, root, "dir/b.txt", "B0")
	svc, _ := newTestService(t, root, PolicyContinue)

	_, err := svc.ApplyChanges(plan(
		change("a.txt", "A1"),
		change("dir/b.txt", "B1"),
		change("created.txt", "C1"),
	))
	require.NoError(t, err)

	result, err := svc.RevertChanges(All())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Reverted)
	assert.Equal(t, 0, result.Failed)

	assert.Equal(t, "A0", readFile(t, root, "a.txt"))
	assert.Equal(t, "B0", readFile(t, root, "dir/b.txt"))
	_, err = os.Stat(filepath.Join(root, "created.txt"))
	assert.True(t, os.IsNotExist(err), "file created by the change should be deleted")
	assert.Equal(t, 0, svc.BackupCount())
}

func TestRevertPreservesMode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "run.sh", "#!/bin/sh\n")
	require.NoError(t, os.Chmod(filepath.Join(root, "run.sh"), 0755))
	svc, _ := newTestService(t, root, PolicyContinue)

	_, err := svc.ApplyChanges(plan(change("run.sh", "#!/bin/sh\necho hi\n")))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "run.sh")))

	_, err = svc.RevertChanges(All())
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestRevertLastN(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "A0")
	writeFile(t, root, "b.txt", "B0")
	svc, _ := newTestService(t, root, PolicyContinue)

	_, err := svc.ApplyChanges(plan(change("a.txt", "A1")))
	require.NoError(t, err)
	_, err = svc.ApplyChanges(plan(change("b.txt", "B1")))
	require.NoError(t, err)

	result, err := svc.RevertChanges(LastN(1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reverted)
	assert.Equal(t, "A1", readFile(t, root, "a.txt"))
	assert.Equal(t, "B0", readFile(t, root, "b.txt"))
	assert.Equal(t, 1, svc.BackupCount())

	result, err = svc.RevertChanges(LastN(0))
	require.NoError(t, err)
	assert.Equal(t, RevertResult{}, result)
}

func TestRevertForFileWithoutBackups(t *testing.T) {
	svc, out := newTestService(t, t.TempDir(), PolicyContinue)

	result, err := svc.RevertChanges(ForFile("nonexistent.ts"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Reverted)
	assert.Equal(t, 0, result.Failed)
	assert.Contains(t, out.String(), "Nothing to revert")
}

func TestRevertFailureKeepsEntry(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dir/a.txt", "A0")
	writeFile(t, root, "b.txt", "B0")
	svc, _ := newTestService(t, root, PolicyContinue)

	_, err := svc.ApplyChanges(plan(change("dir/a.txt", "A1"), change("b.txt", "B1")))
	require.NoError(t, err)

	// Replace the parent directory with a file so the restore cannot write.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "dir")))
	writeFile(t, root, "dir", "blocker")

	result, err := svc.RevertChanges(All())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reverted)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "B0", readFile(t, root, "b.txt"))

	var failed Outcome
	for _, o := range result.Outcomes {
		if !o.Success {
			failed = o
		}
	}
	assert.Equal(t, "dir/a.txt", failed.FilePath)
	assert.Equal(t, KindRevertFailed, failed.Kind)

	// The failed entry stays available for a retry.
	require.Equal(t, 1, svc.BackupCount())
	assert.Equal(t, "dir/a.txt", svc.Backups(1)[0].FilePath)

	require.NoError(t, os.Remove(filepath.Join(root, "dir")))
	result, err = svc.RevertChanges(ForFile("dir/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reverted)
	assert.Equal(t, "A0", readFile(t, root, "dir/a.txt"))
}

func TestRevertAfterRestart(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "A0")

	first, _ := newTestService(t, root, PolicyContinue)
	_, err := first.ApplyChanges(plan(change("a.txt", "A1"), change("fresh.txt", "F1")))
	require.NoError(t, err)

	second, _ := newTestService(t, root, PolicyContinue)
	require.Equal(t, 2, second.BackupCount())

	result, err := second.RevertChanges(LastN(2))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reverted)
	assert.Equal(t, "A0", readFile(t, root, "a.txt"))
	_, err = os.Stat(filepath.Join(root, "fresh.txt"))
	assert.True(t, os.IsNotExist(err))

	third, _ := newTestService(t, root, PolicyContinue)
	assert.Equal(t, 0, third.BackupCount(), "reverted entries are gone from disk too")
}

func TestRevertRequiresInitialize(t *testing.T) {
	svc, err := NewService(Config{Root: t.TempDir()})
	require.NoError(t, err)

	_, err = svc.RevertChanges(All())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "all", All().String())
	assert.Equal(t, "last 3", LastN(3).String())
	assert.Equal(t, "file a.txt", ForFile("a.txt").String())
}
