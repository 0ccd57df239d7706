package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Paths centralizes filesystem path resolution. All application paths
// are resolved relative to the executable directory so the binary can
// be run from anywhere.
type Paths struct {
	ExecutableDir string
	DataDir       string
	UploadsDir    string
	ReportsDir    string
	LogsDir       string
}

var (
	pathsInstance *Paths
	pathsOnce     sync.Once
	pathsErr      error
)

// GetPaths returns the singleton Paths instance.
func GetPaths() (*Paths, error) {
	pathsOnce.Do(func() {
		pathsInstance, pathsErr = newPaths()
	})
	return pathsInstance, pathsErr
}

func newPaths() (*Paths, error) {
	exeDir, err := executableDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine executable directory: %w", err)
	}

	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       filepath.Join(exeDir, DefaultDataDir),
		UploadsDir:    filepath.Join(exeDir, DefaultUploadsDir),
		ReportsDir:    filepath.Join(exeDir, DefaultReportsDir),
		LogsDir:       filepath.Join(exeDir, DefaultLogsDir),
	}, nil
}

// executableDir resolves the directory containing the running binary.
// Tests (go run / go test) fall back to the working directory.
func executableDir() (string, error) {
	if override := os.Getenv("SITEPULSE_EXECUTABLE_DIR"); override != "" {
		return override, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return os.Getwd()
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return filepath.Dir(exe), nil
	}

	dir := filepath.Dir(exe)
	base := filepath.Base(dir)
	// go test and go run build into temp dirs
	if base == "exe" || filepath.Base(filepath.Dir(dir)) == "go-build" {
		return os.Getwd()
	}
	return dir, nil
}

// EnsureDirectories creates all required directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.UploadsDir, p.ReportsDir, p.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetUploadPath returns the full path for an uploaded file.
func (p *Paths) GetUploadPath(filename string) string {
	return filepath.Join(p.UploadsDir, filename)
}

// GetReportPath returns the full path for a generated report artifact.
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the full path for a log file.
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// LogPathResolution logs all resolved paths at startup for debugging.
func (p *Paths) LogPathResolution() {
	slog.Info("resolved application paths",
		slog.String("executable_dir", p.ExecutableDir),
		slog.String("data_dir", p.DataDir),
		slog.String("uploads_dir", p.UploadsDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir))
}
