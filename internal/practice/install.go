package practice

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const installIDFile = "install_id"

// InstallID returns the stable per-device installation id, generating and
// persisting one under dir on first use. Storage failures fall open to an
// ephemeral id so the practice loop keeps working.
func InstallID(dir string) string {
	path := filepath.Join(dir, installIDFile)

	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}

	id := uuid.New().String()
	if err := os.MkdirAll(dir, 0o755); err == nil {
		os.WriteFile(path, []byte(id), 0o644)
	}
	return id
}
