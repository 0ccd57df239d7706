// Package drivesync mirrors generated reports into a shared Google
// Drive folder so stakeholders without platform accounts can read them.
// The mirror is optional and disabled unless credentials are configured.
package drivesync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"sitepulse/internal/config"
	"sitepulse/internal/export"
)

// Syncer uploads report artifacts to a Drive folder.
type Syncer struct {
	service  *drive.Service
	folderID string
	logger   *slog.Logger
	enabled  bool
}

// New creates a Syncer from configuration. When the mirror is disabled
// the returned Syncer is a no-op and never touches the network.
func New(ctx context.Context, cfg config.DriveConfig, logger *slog.Logger) (*Syncer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return &Syncer{logger: logger}, nil
	}

	service, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Syncer{
		service:  service,
		folderID: cfg.FolderID,
		logger:   logger,
		enabled:  true,
	}, nil
}

// Enabled reports whether uploads will actually be performed.
func (s *Syncer) Enabled() bool {
	return s.enabled
}

// Upload pushes a generated report to the configured folder and returns
// the Drive file ID. Disabled syncers return an empty ID and no error so
// report generation never fails because mirroring is off.
func (s *Syncer) Upload(ctx context.Context, result *export.Result) (string, error) {
	if !s.enabled {
		return "", nil
	}

	meta := &drive.File{
		Name:     result.Filename,
		MimeType: result.MimeType,
	}
	if s.folderID != "" {
		meta.Parents = []string{s.folderID}
	}

	file, err := s.service.Files.Create(meta).
		Media(bytes.NewReader(result.Data)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload %s: %w", result.Filename, err)
	}

	s.logger.InfoContext(ctx, "report mirrored to drive",
		slog.String("filename", result.Filename),
		slog.String("file_id", file.Id))
	return file.Id, nil
}
