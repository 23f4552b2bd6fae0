package op_service

import "strings"

// FormatVersion renders version-commit-date-meta, leaving out empty parts.
// The commit is shortened to 8 characters.
func FormatVersion(version string, gitCommit string, gitDate string, meta string) string {
	parts := []string{version}
	if gitCommit != "" {
		parts = append(parts, gitCommit[:min(8, len(gitCommit))])
	}
	if gitDate != "" {
		parts = append(parts, gitDate)
	}
	if meta != "" {
		parts = append(parts, meta)
	}
	return strings.Join(parts, "-")
}
