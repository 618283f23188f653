package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("published %d", 42)
	assert.Contains(t, out.String(), "published 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would post %s", "diff")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would post diff")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would post %s", "diff")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStatusColor(t *testing.T) {
	assert.NotEmpty(t, StatusColor("pending"))
	assert.NotEmpty(t, StatusColor("submitted"))
	assert.NotEmpty(t, StatusColor("discarded"))
	assert.Equal(t, "unknown", StatusColor("unknown"))
}

func TestProgressRendersPercentage(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Progress("Loading client.go", 0.5)
	assert.Contains(t, errOut.String(), "[ 50%]")
	assert.Contains(t, errOut.String(), "Loading client.go")
}

func TestProgressClampsFraction(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Progress("over", 1.5)
	assert.Contains(t, errOut.String(), "[100%]")

	errOut.Reset()
	u.Progress("under", -0.5)
	assert.Contains(t, errOut.String(), "[  0%]")
}

func TestProgressDoneClearsLine(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Progress("working", 0.3)
	u.ProgressDone()
	assert.True(t, strings.HasSuffix(errOut.String(), "\r\x1b[2K"))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"ID", "Summary"})
	require.NotNil(t, table)

	table.Append([]string{"42", "fix crash"})
	table.Append([]string{"43", "add paging"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.Contains(t, result, "42")
	assert.Contains(t, result, "fix crash")
	assert.Contains(t, result, "add paging")
}
