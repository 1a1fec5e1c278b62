package email

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"paperfeeder/internal/ports"
)

// FileDeliverer writes the digest to a local HTML file instead of sending
// it. Used for dry runs.
type FileDeliverer struct {
	Path   string
	Logger *slog.Logger
}

var _ ports.Deliverer = (*FileDeliverer)(nil)

// Deliver writes the body to the configured path.
func (d *FileDeliverer) Deliver(_ context.Context, subject, htmlBody string) error {
	path := d.Path
	if path == "" {
		path = "digest.html"
	}
	if err := os.WriteFile(path, []byte(htmlBody), 0o644); err != nil {
		return fmt.Errorf("write digest file: %w", err)
	}
	if d.Logger != nil {
		d.Logger.Info("digest written to file", "path", path, "subject", subject)
	}
	return nil
}
