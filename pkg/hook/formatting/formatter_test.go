package formatting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/shaneholloman/prek/pkg/hook"
)

func newTestPrinter(verbose bool, quiet int) (*Printer, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	return &Printer{Out: &buf, Verbose: verbose, Quiet: quiet}, &buf
}

func TestStatusLineFixedWidth(t *testing.T) {
	p, buf := newTestPrinter(false, 0)
	p.StatusLine(hook.Result{HookID: "check-yaml", HookName: "check yaml", Status: hook.Passed})

	line := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Len(t, line, statusLineWidth)
	assert.True(t, strings.HasPrefix(line, "check yaml..."))
	assert.True(t, strings.HasSuffix(line, "Passed"))
}

func TestStatusLineFailureBody(t *testing.T) {
	p, buf := newTestPrinter(false, 0)
	p.StatusLine(hook.Result{
		HookID: "flake8",
		Status: hook.Failed,
		Output: []byte("a.py:1:1: E501 line too long\n"),
	})

	out := buf.String()
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "- hook id: flake8")
	assert.Contains(t, out, "E501")
}

func TestStatusLineModifiedShowsFailed(t *testing.T) {
	p, buf := newTestPrinter(false, 0)
	p.StatusLine(hook.Result{HookID: "fixer", Status: hook.Passed, ModifiedFiles: true})

	out := buf.String()
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "files were modified by this hook")
}

func TestQuietLevels(t *testing.T) {
	// Quiet 1: successes suppressed, failures shown.
	p, buf := newTestPrinter(false, 1)
	p.StatusLine(hook.Result{HookID: "ok", Status: hook.Passed})
	assert.Empty(t, buf.String())
	p.StatusLine(hook.Result{HookID: "bad", Status: hook.Failed})
	assert.Contains(t, buf.String(), "Failed")

	// Quiet 2: nothing at all.
	p, buf = newTestPrinter(false, 2)
	p.StatusLine(hook.Result{HookID: "bad", Status: hook.Failed})
	assert.Empty(t, buf.String())
}

func TestVerboseShowsSuccessBodies(t *testing.T) {
	p, buf := newTestPrinter(true, 0)
	p.StatusLine(hook.Result{
		HookID:   "ok",
		Status:   hook.Passed,
		Output:   []byte("all clean\n"),
		Duration: 1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "all clean")
	assert.Contains(t, out, "duration: 1.50s")
}

func TestSummaryOnlyOnFailure(t *testing.T) {
	p, buf := newTestPrinter(false, 0)
	p.Summary(&hook.Summary{Results: []hook.Result{{HookID: "ok", Status: hook.Passed}}})
	assert.Empty(t, buf.String())

	p.Summary(&hook.Summary{Results: []hook.Result{
		{HookID: "ok", Status: hook.Passed},
		{HookID: "bad", Status: hook.Failed},
	}})
	assert.Contains(t, buf.String(), "1 hook(s) did not pass")
	assert.Contains(t, buf.String(), "bad: Failed")
}
