package images

import (
	"context"
	"os"
	"time"

	"github.com/projecteru2/pullwatch/utils"
)

// GCStaleTemp removes entries of tempDir older than utils.StaleTempAge.
// Pulls stage their downloads there and clean up on return, so anything
// old was left by a killed process.
func GCStaleTemp(ctx context.Context, tempDir string) []error {
	cutoff := time.Now().Add(-utils.StaleTempAge)
	return utils.RemoveMatching(ctx, tempDir, func(e os.DirEntry) bool {
		info, err := e.Info()
		return err == nil && info.ModTime().Before(cutoff)
	})
}
