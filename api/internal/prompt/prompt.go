package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed medicine.system.txt
var MedicineSystem string

// Load returns the system prompt from path, or the embedded default when
// path is empty.
func Load(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return strings.TrimSpace(MedicineSystem), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return s, nil
}

// MedicineUser wraps OCR text into the per-call user message.
func MedicineUser(ocrText string) string {
	return "OCR Text:\n" + ocrText + "\n\nReturn only the cleaned medicine data."
}
