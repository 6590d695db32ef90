package application

import (
	"context"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/ciel/gallery/domain"
)

// LifecycleService keeps the images directory and the tag index in step.
//
// An identifier moves through three states: ACQUIRED (file on disk, not
// indexed), REGISTERED (file on disk and indexed) and GONE (neither). Acquire
// produces ACQUIRED, Register promotes to REGISTERED, Retag keeps REGISTERED,
// and Discard ends in GONE from either live state.
type LifecycleService struct {
	index     domain.TagIndex
	tx        domain.Transactor
	files     domain.ImageFiles
	fetcher   domain.Fetcher
	confirmer domain.DeleteConfirmer
	newID     func() string

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// NewLifecycleService wires the service. A nil confirmer approves every
// deletion.
func NewLifecycleService(
	index domain.TagIndex,
	tx domain.Transactor,
	files domain.ImageFiles,
	fetcher domain.Fetcher,
	confirmer domain.DeleteConfirmer,
) *LifecycleService {
	if confirmer == nil {
		confirmer = AlwaysConfirm
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LifecycleService{
		index:     index,
		tx:        tx,
		files:     files,
		fetcher:   fetcher,
		confirmer: confirmer,
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		wg:        &sync.WaitGroup{},
	}
}

// Close cancels in-flight background acquisitions and waits for them to
// clean up.
func (s *LifecycleService) Close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

// Register makes an acquired file visible to queries under the given tags.
func (s *LifecycleService) Register(ctx context.Context, id string, tags []string) error {
	tagSet, err := domain.NewTagSet(tags...)
	if err != nil {
		return err
	}

	exists, err := s.files.Exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ConstraintError("register", id, fmt.Errorf("image file has not been acquired"))
	}

	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.index.AddImage(txCtx, id); err != nil {
			return err
		}
		return s.attach(txCtx, id, tagSet.Names())
	})
	if err != nil {
		return fmt.Errorf("failed to register image %s: %w", id, err)
	}

	log.Info().Str("id", id).Strs("tags", tagSet.Names()).Msg("Registered image")
	return nil
}

// Retag adds and removes tags on a registered image, then deletes every
// removed tag left without images. Additions are applied before removals.
func (s *LifecycleService) Retag(ctx context.Context, id string, added, removed []string) error {
	addSet, err := domain.NewTagSet(added...)
	if err != nil {
		return err
	}
	removeSet, err := domain.NewTagSet(removed...)
	if err != nil {
		return err
	}

	var orphaned []string
	err = s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		exists, err := s.index.ImageExists(txCtx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ConstraintError("retag", id, fmt.Errorf("image is not registered"))
		}

		if err := s.attach(txCtx, id, addSet.Names()); err != nil {
			return err
		}

		for _, tag := range removeSet.Names() {
			if err := s.index.DeleteAssociation(txCtx, id, tag); err != nil {
				return err
			}
		}

		orphaned, err = s.collectOrphans(txCtx, removeSet.Names())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to retag image %s: %w", id, err)
	}

	log.Info().
		Str("id", id).
		Strs("added", addSet.Names()).
		Strs("removed", removeSet.Names()).
		Strs("droppedTags", orphaned).
		Msg("Retagged image")
	return nil
}

// Discard removes an image from the index, drops the tags it leaves
// orphaned and deletes its file. If the file cannot be removed the index
// changes are rolled back. Discarding an acquired but unregistered image only
// removes the file. An identifier that is neither indexed nor on disk is gone
// and cannot be discarded again.
func (s *LifecycleService) Discard(ctx context.Context, id string) error {
	var orphaned []string
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requireLive(txCtx, "discard", id); err != nil {
			return err
		}

		tags, err := s.index.TagsOf(txCtx, id)
		if err != nil {
			return err
		}

		if err := s.index.DeleteImage(txCtx, id); err != nil {
			return err
		}

		if orphaned, err = s.collectOrphans(txCtx, tags); err != nil {
			return err
		}

		return s.files.Remove(id)
	})
	if err != nil {
		return fmt.Errorf("failed to discard image %s: %w", id, err)
	}

	log.Info().Str("id", id).Strs("droppedTags", orphaned).Msg("Discarded image")
	return nil
}

// DeleteImages discards each id in order. Every id is checked before the
// first discard, so an unknown or malformed id changes nothing. Unless force
// is set the configured confirmer is asked first; a refusal changes nothing.
// committed reports whether every id was discarded. A failure while
// discarding stops the run and leaves the ids before it discarded.
func (s *LifecycleService) DeleteImages(ctx context.Context, ids []string, force bool) (bool, error) {
	ids = distinct(ids)
	if len(ids) == 0 {
		return false, nil
	}

	for _, id := range ids {
		if err := s.requireLive(ctx, "delete", id); err != nil {
			return false, err
		}
	}

	if !force {
		ok, err := s.confirmer.ConfirmDelete(ctx, ids)
		if err != nil {
			return false, fmt.Errorf("failed to confirm deletion: %w", err)
		}
		if !ok {
			log.Info().Strs("ids", ids).Msg("Deletion declined")
			return false, nil
		}
	}

	for i, id := range ids {
		if err := s.Discard(ctx, id); err != nil {
			if i > 0 {
				log.Warn().Strs("discarded", ids[:i]).Str("failed", id).Msg("Deletion stopped part way")
			}
			return false, err
		}
	}

	return true, nil
}

// distinct drops repeated ids, keeping the first occurrence of each.
func distinct(ids []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen.Add(id) {
			out = append(out, id)
		}
	}
	return out
}

// requireLive fails with ErrConstraint unless id is a valid file name that is
// indexed or present on disk.
func (s *LifecycleService) requireLive(ctx context.Context, op, id string) error {
	onDisk, err := s.files.Exists(id)
	if err != nil {
		return err
	}
	if onDisk {
		return nil
	}

	indexed, err := s.index.ImageExists(ctx, id)
	if err != nil {
		return err
	}
	if !indexed {
		return domain.ConstraintError(op, id, fmt.Errorf("image does not exist"))
	}
	return nil
}

// OpenImage resolves the on-disk path of a registered image.
func (s *LifecycleService) OpenImage(ctx context.Context, id string) (string, error) {
	registered, err := s.index.ImageExists(ctx, id)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", domain.ConstraintError("open", id, fmt.Errorf("image is not registered"))
	}

	exists, err := s.files.Exists(id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", domain.IOError("open", id, fmt.Errorf("image file is missing"))
	}

	return s.files.Path(id)
}

// attach creates any unknown tags and associates them with id.
func (s *LifecycleService) attach(ctx context.Context, id string, tags []string) error {
	for _, tag := range tags {
		if err := s.index.AddTag(ctx, tag); err != nil {
			return err
		}
		if err := s.index.AddAssociation(ctx, id, tag); err != nil {
			return err
		}
	}
	return nil
}

// collectOrphans deletes every tag in tags that no longer has an image. It
// runs after the association removals, inside the same transaction, so the
// emptiness check never sees data read before the removal.
func (s *LifecycleService) collectOrphans(ctx context.Context, tags []string) ([]string, error) {
	orphaned := make([]string, 0)
	for _, tag := range tags {
		images, err := s.index.ImagesWithTag(ctx, tag)
		if err != nil {
			return nil, err
		}
		if len(images) > 0 {
			continue
		}

		if err := s.index.DeleteTag(ctx, tag); err != nil {
			return nil, err
		}
		orphaned = append(orphaned, tag)
	}
	return orphaned, nil
}
