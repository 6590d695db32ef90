package application

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"
)

// ReconcileReport lists where the images directory and the index disagree.
type ReconcileReport struct {
	// OrphanFiles are on disk but not indexed: acquisitions that were never
	// registered, or a discard interrupted after the index was updated.
	OrphanFiles []string
	// MissingFiles are indexed but absent from disk.
	MissingFiles []string
}

func (r ReconcileReport) Clean() bool {
	return len(r.OrphanFiles) == 0 && len(r.MissingFiles) == 0
}

// Reconcile compares the images directory with the index. With apply set,
// orphan files are removed and index entries without a file are discarded.
// It treats every unindexed file as abandoned, so it must only run while no
// acquisition is pending, i.e. at startup.
func (s *LifecycleService) Reconcile(ctx context.Context, apply bool) (ReconcileReport, error) {
	onDisk, err := s.files.List()
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("failed to list image files: %w", err)
	}

	indexed, err := s.index.ListImages(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("failed to list indexed images: %w", err)
	}

	diskSet := mapset.NewThreadUnsafeSet(onDisk...)
	indexSet := mapset.NewThreadUnsafeSet(indexed...)

	report := ReconcileReport{
		OrphanFiles:  diskSet.Difference(indexSet).ToSlice(),
		MissingFiles: indexSet.Difference(diskSet).ToSlice(),
	}
	slices.Sort(report.OrphanFiles)
	slices.Sort(report.MissingFiles)

	if report.Clean() {
		return report, nil
	}

	log.Warn().
		Strs("orphanFiles", report.OrphanFiles).
		Strs("missingFiles", report.MissingFiles).
		Bool("apply", apply).
		Msg("Images directory and index disagree")

	if !apply {
		return report, nil
	}

	for _, name := range report.OrphanFiles {
		if err := s.files.Remove(name); err != nil {
			return report, fmt.Errorf("failed to remove orphan file %s: %w", name, err)
		}
	}

	for _, id := range report.MissingFiles {
		if err := s.Discard(ctx, id); err != nil {
			return report, err
		}
	}

	return report, nil
}
