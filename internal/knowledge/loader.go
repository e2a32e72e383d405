package knowledge

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

// DefaultExtensions 可识别的材料文件扩展名
var DefaultExtensions = []string{".txt", ".md"}

// Document 从材料目录读取的源文档
type Document struct {
	Name string
	Path string
	Text string
}

// LoadDocuments 递归读取目录下的文本材料；单个文件失败只记录告警
func LoadDocuments(dir string, extensions []string) ([]Document, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			return nil
		}
		if d.IsDir() || !hasExtension(d.Name(), extensions) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Failed to read material", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !utf8.Valid(raw) {
			logger.Warn("Material is not valid UTF-8, skipped", zap.String("path", path))
			return nil
		}

		text := string(raw)
		if strings.TrimSpace(text) == "" {
			return nil
		}

		docs = append(docs, Document{
			Name: d.Name(),
			Path: path,
			Text: text,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func hasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
