package changes

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func newTestService(t *testing.T, root string, policy FailurePolicy) (*Service, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	svc, err := NewService(Config{Root: root, FailurePolicy: policy, Output: &out})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize())
	return svc, &out
}

func plan(changes ...ChangeDescriptor) Parsed {
	return Parsed{Plan: GeneratedChanges{Changes: changes, Summary: "test plan"}}
}

func change(path, content string) ChangeDescriptor {
	return ChangeDescriptor{FilePath: path, Content: content}
}

func TestApplyBacksUpBeforeWrite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "OLD")
	svc, out := newTestService(t, root, PolicyContinue)

	summary, err := svc.ApplyChanges(plan(change("src/a.ts", "NEW")))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)
	assert.Equal(t, "NEW", readFile(t, root, "src/a.ts"))

	require.Equal(t, 1, svc.BackupCount())
	entry := svc.Backups(1)[0]
	assert.Equal(t, "src/a.ts", entry.FilePath)
	assert.Equal(t, "OLD", entry.OriginalContent)
	assert.Equal(t, entry.ID, summary.Outcomes[0].BackupID)
	assert.Contains(t, out.String(), "✓ Applied: src/a.ts")
}

func TestApplyCreatesNewFileWithAbsentBackup(t *testing.T) {
	root := t.TempDir()
	svc, _ := newTestService(t, root, PolicyContinue)

	summary, err := svc.ApplyChanges(plan(change("pkg/new/file.go", "package new\n")))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, "package new\n", readFile(t, root, "pkg/new/file.go"))

	entry := svc.Backups(1)[0]
	assert.True(t, entry.Absent)
}

func TestApplyRejectsUnsafePaths(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	require.NoError(t, os.MkdirAll(root, 0755))
	svc, out := newTestService(t, root, PolicyContinue)

	summary, err := svc.ApplyChanges(plan(
		change("../../etc/passwd", "pwned"),
		change("../sibling.txt", "pwned"),
		change("/tmp/abs.txt", "pwned"),
		change(".iter8_backups/fake.json", "{}"),
	))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, 4, summary.FailureCount)
	for _, o := range summary.Outcomes {
		assert.Equal(t, KindUnsafePath, o.Kind, o.FilePath)
		assert.Empty(t, o.BackupID)
	}
	assert.Equal(t, 0, svc.BackupCount())

	_, err = os.Stat(filepath.Join(parent, "sibling.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, ".iter8_backups", "fake.json"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, out.String(), "✗ Rejected")
}

func TestApplyPartialFailureIsolation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "A0")
	writeFile(t, root, "c.txt", "C0")
	// A regular file where a directory is expected makes the write fail.
	writeFile(t, root, "blocker", "not a directory")
	svc, _ := newTestService(t, root, PolicyContinue)

	summary, err := svc.ApplyChanges(plan(
		change("a.txt", "A1"),
		change("blocker/b.txt", "B1"),
		change("c.txt", "C1"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, "blocker/b.txt", summary.Failed()[0].FilePath)
	assert.Equal(t, KindWriteFailed, summary.Failed()[0].Kind)
	assert.NotEmpty(t, summary.Failed()[0].Error)

	assert.Equal(t, "A1", readFile(t, root, "a.txt"))
	assert.Equal(t, "C1", readFile(t, root, "c.txt"))
	assert.False(t, summary.RolledBack)
}

func TestApplySameFileInOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.txt", "V0")
	svc, _ := newTestService(t, root, PolicyContinue)

	_, err := svc.ApplyChanges(plan(change("x.txt", "V1"), change("x.txt", "V2")))
	require.NoError(t, err)
	assert.Equal(t, "V2", readFile(t, root, "x.txt"))

	backups := svc.Backups(2)
	require.Len(t, backups, 2)
	assert.Equal(t, "V1", backups[0].OriginalContent, "second backup sees the first write")
	assert.Equal(t, "V0", backups[1].OriginalContent)

	// Reverting both restores the state before the call.
	result, err := svc.RevertChanges(ForFile("x.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reverted)
	assert.Equal(t, "V0", readFile(t, root, "x.txt"))
}

func TestApplyEmptyPlan(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir(), PolicyContinue)

	summary, err := svc.ApplyChanges(plan())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)
	assert.Empty(t, summary.Outcomes)
}

func TestApplyAllOrNothingRollsBack(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "A0")
	writeFile(t, root, "blocker", "file")
	svc, out := newTestService(t, root, PolicyAllOrNothing)

	summary, err := svc.ApplyChanges(plan(
		change("a.txt", "A1"),
		change("new.txt", "N1"),
		change("blocker/b.txt", "B1"),
		change("c.txt", "C1"),
	))
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 4)
	assert.True(t, summary.Outcomes[0].Success)
	assert.True(t, summary.Outcomes[1].Success)
	assert.Equal(t, KindWriteFailed, summary.Outcomes[2].Kind)
	assert.Equal(t, KindSkipped, summary.Outcomes[3].Kind)
	assert.True(t, summary.RolledBack)

	assert.Equal(t, "A0", readFile(t, root, "a.txt"))
	_, err = os.Stat(filepath.Join(root, "new.txt"))
	assert.True(t, os.IsNotExist(err), "created file should be removed by rollback")
	_, err = os.Stat(filepath.Join(root, "c.txt"))
	assert.True(t, os.IsNotExist(err), "skipped descriptor must not be written")
	assert.Equal(t, 0, svc.BackupCount())
	assert.Contains(t, out.String(), "Rolling back 2 change(s)")
}

func TestApplySummaryBackedUp(t *testing.T) {
	summary := ApplySummary{
		Outcomes: []Outcome{
			{FilePath: "a.txt", Success: true, BackupID: "1"},
			{FilePath: "b.txt", Success: true, Warning: "permission denied"},
			{FilePath: "c.txt", Kind: KindWriteFailed, BackupID: "3"},
			{FilePath: "../d.txt", Kind: KindUnsafePath},
		},
		SuccessCount: 2,
		FailureCount: 2,
	}
	assert.Equal(t, 2, summary.BackedUp())
	assert.Equal(t, 0, ApplySummary{}.BackedUp())
}

func TestApplyRequiresInitialize(t *testing.T) {
	svc, err := NewService(Config{Root: t.TempDir()})
	require.NoError(t, err)

	_, err = svc.ApplyChanges(plan(change("a.txt", "x")))
	assert.ErrorIs(t, err, ErrNotInitialized)
}
