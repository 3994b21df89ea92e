package pipeline

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

const maxGuideChars = 8000

// LoadClassificationGuide reads the optional guide appended to the classifier
// prompt. A missing file is skipped.
func LoadClassificationGuide(path string, log *zap.Logger) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if log != nil {
			log.Info("classification guide skipped", zap.String("path", path), zap.Error(err))
		}
		return ""
	}
	text := strings.TrimSpace(string(data))
	if len(text) > maxGuideChars {
		text = cutAtRune(text, maxGuideChars) + "\n...(truncated)"
	}
	return text
}
