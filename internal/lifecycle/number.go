package lifecycle

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var ordinanceFilePattern = regexp.MustCompile(`O\.(\d+)-(\d{4})`)

// NumberFromFilenames returns the first "O.<n>-<yyyy>" token found in the
// attachment names.
func NumberFromFilenames(names []string) (string, bool) {
	for _, name := range names {
		m := ordinanceFilePattern.FindStringSubmatch(filepath.Base(name))
		if m == nil {
			continue
		}
		return fmt.Sprintf("O.%s-%s", m[1], m[2]), true
	}
	return "", false
}

// OrdinanceNumber picks the classifier's hint first and falls back to the
// attachment filenames.
func OrdinanceNumber(extracted map[string]any, attachments []string) *string {
	if v, ok := extracted["ordinance_number"]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			s = strings.TrimSpace(s)
			return &s
		}
	}
	if n, ok := NumberFromFilenames(attachments); ok {
		return &n
	}
	return nil
}
