package application

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/ciel/gallery/domain"
)

// SearchService resolves tag queries against the index. It holds no state of
// its own; every call reads the store as it is at call time.
type SearchService struct {
	index domain.TagIndex
}

func NewSearchService(index domain.TagIndex) *SearchService {
	return &SearchService{
		index: index,
	}
}

// Search returns the images carrying every required tag and none of the
// excluded ones, sorted. Unknown tags behave as tags with no images, so an
// unknown required tag yields nothing and an unknown excluded tag filters
// nothing. A tag that is both required and excluded yields nothing.
func (s *SearchService) Search(ctx context.Context, required, excluded domain.TagSet) ([]string, error) {
	if required.IsEmpty() && excluded.IsEmpty() {
		return s.index.ListImages(ctx)
	}

	if required.Intersects(excluded) {
		log.Debug().
			Strs("required", required.Names()).
			Strs("excluded", excluded.Names()).
			Msg("Contradictory search")
		return []string{}, nil
	}

	matches, err := s.index.ImagesWithAllTags(ctx, required.Names())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve required tags: %w", err)
	}

	candidates := mapset.NewThreadUnsafeSet(matches...)
	for _, tag := range excluded.Names() {
		if candidates.Cardinality() == 0 {
			break
		}

		tagged, err := s.index.ImagesWithTag(ctx, tag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve excluded tag %s: %w", tag, err)
		}
		for _, image := range tagged {
			candidates.Remove(image)
		}
	}

	result := candidates.ToSlice()
	slices.Sort(result)
	return result, nil
}

func (s *SearchService) TagExists(ctx context.Context, name string) (bool, error) {
	return s.index.TagExists(ctx, name)
}

func (s *SearchService) ListTags(ctx context.Context) ([]string, error) {
	return s.index.ListTags(ctx)
}

func (s *SearchService) ListImages(ctx context.Context) ([]string, error) {
	return s.index.ListImages(ctx)
}

func (s *SearchService) ImageTags(ctx context.Context, id string) ([]string, error) {
	return s.index.TagsOf(ctx, id)
}
