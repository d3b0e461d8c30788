//go:build windows

package hook

// maxCommandLength on Windows honors the tighter of the two documented
// budgets: CreateProcess allows 32767 UTF-16 units, but the cmd.exe
// processor caps a line at 8191, and hooks routinely re-invoke through
// cmd shims. The conservative reduction applies.
func maxCommandLength() int {
	return 8191 - 512
}
