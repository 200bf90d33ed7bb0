package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Default chunk size for export streaming.
const exportBatchSize = 500

// Export streams every row of datasetID the caller may export, invoking fn
// per row. All gating happens before the first row is read:
//
//   - the format must appear in a download-eligible grant
//     (ErrUnsupportedFormat otherwise),
//   - at least one download-eligible channel must touch the dataset
//     (ErrDatasetNotCovered otherwise).
//
// Rows are then filtered by the download-mode FilterSet, so "visible on the
// map" never leaks into an export. Iteration stops promptly when ctx is
// cancelled.
func (s *Service) Export(ctx context.Context, id Identity, datasetID int64, format string, fn func(Building) error) error {
	scope := Scope{Unrestricted: true}
	if !id.IsAdmin() {
		fs, err := s.DownloadFilters(ctx, id.UserID)
		if err != nil {
			return err
		}
		if !fs.AllowsFormat(format) {
			return fmt.Errorf("format %q: %w", format, ErrUnsupportedFormat)
		}
		if fs.Empty() || !fs.CoversDataset(datasetID) {
			return fmt.Errorf("dataset %d: %w", datasetID, ErrDatasetNotCovered)
		}
		scope = Scope{Filters: fs}
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    id.UserID,
		"dataset_id": datasetID,
		"format":     format,
	}).Debug("starting export stream")

	start := time.Now()
	if err := s.buildings.Stream(ctx, datasetID, scope, exportBatchSize, fn); err != nil {
		return fmt.Errorf("export dataset %d: %w", datasetID, err)
	}
	s.log.WithField("elapsed", time.Since(start)).Debug("export stream finished")
	return nil
}

// DownloadableFormats lists the formats the caller may export, for UI
// display, sorted for stable output.
func (s *Service) DownloadableFormats(ctx context.Context, userID uuid.UUID) ([]string, error) {
	fs, err := s.DownloadFilters(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(fs.Formats))
	for f := range fs.Formats {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}
