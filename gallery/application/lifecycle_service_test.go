package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/ciel/gallery/domain"
	"github.com/dfryer1193/ciel/gallery/persistence"
)

func TestLifecycleService_Register(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	env.register(t, "a.png", " cat ", "outdoor", "cat")

	tags, err := env.search.ImageTags(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "outdoor"}, tags)

	all, err := env.search.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "outdoor"}, all)

	env.assertIndexInvariants(t)
}

func TestLifecycleService_Register_WithoutTags(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	env.register(t, "a.png")

	images, err := env.search.ListImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, images)

	tags, err := env.search.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestLifecycleService_Register_RequiresAcquiredFile(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	err := env.lifecycle.Register(ctx, "never-acquired.png", []string{"cat"})
	assert.ErrorIs(t, err, domain.ErrConstraint)

	images, err := env.search.ListImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, images)

	tags, err := env.search.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestLifecycleService_Register_RejectsInvalidTag(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.placeFile(t, "a.png")

	err := env.lifecycle.Register(context.Background(), "a.png", []string{"cat", "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidTag)

	images, err := env.search.ListImages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestLifecycleService_Register_DiscardedIDFails(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	env.register(t, "a.png", "cat")
	require.NoError(t, env.lifecycle.Discard(ctx, "a.png"))

	err := env.lifecycle.Register(ctx, "a.png", []string{"cat"})
	assert.ErrorIs(t, err, domain.ErrConstraint)
}

func TestLifecycleService_Retag(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	env.register(t, "a.png", "cat", "outdoor")
	env.register(t, "b.png", "outdoor")

	require.NoError(t, env.lifecycle.Retag(ctx, "a.png", []string{"kitten"}, []string{"cat", "outdoor", "never-had"}))

	tags, err := env.search.ImageTags(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"kitten"}, tags)

	all, err := env.search.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kitten", "outdoor"}, all, "cat is orphaned, outdoor still tags b.png")

	env.assertIndexInvariants(t)
}

func TestLifecycleService_Retag_AddThenRemoveSameTag(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	env.register(t, "a.png", "cat")

	require.NoError(t, env.lifecycle.Retag(ctx, "a.png", []string{"dog"}, []string{"dog"}))

	tags, err := env.search.ImageTags(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, tags)

	exists, err := env.search.TagExists(ctx, "dog")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLifecycleService_Retag_UnregisteredImage(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	env.placeFile(t, "acquired.png")

	err := env.lifecycle.Retag(ctx, "acquired.png", []string{"cat"}, nil)
	assert.ErrorIs(t, err, domain.ErrConstraint)

	tags, err := env.search.ListTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestLifecycleService_Discard(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	env.register(t, "i.png", "a", "b")
	env.register(t, "j.png", "b")

	require.NoError(t, env.lifecycle.Discard(ctx, "i.png"))

	tags, err := env.search.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tags)

	images, err := env.index.ImagesWithTag(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"j.png"}, images)

	assert.Equal(t, []string{"j.png"}, env.dirEntries(t))
	env.assertIndexInvariants(t)
}

func TestLifecycleService_Discard_AcquiredOnly(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.placeFile(t, "pending.png")

	require.NoError(t, env.lifecycle.Discard(context.Background(), "pending.png"))
	assert.Empty(t, env.dirEntries(t))
}

func TestLifecycleService_Discard_RejectsPathNames(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	err := env.lifecycle.Discard(context.Background(), "../index.db")
	assert.ErrorIs(t, err, domain.ErrConstraint)
}

func TestLifecycleService_Discard_GoneID(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	env.register(t, "a.png", "cat")

	require.NoError(t, env.lifecycle.Discard(ctx, "a.png"))

	err := env.lifecycle.Discard(ctx, "a.png")
	assert.ErrorIs(t, err, domain.ErrConstraint)

	err = env.lifecycle.Discard(ctx, "never-existed.png")
	assert.ErrorIs(t, err, domain.ErrConstraint)
}

func TestLifecycleService_Discard_IndexedWithoutFile(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	env.register(t, "a.png", "cat")
	require.NoError(t, env.files.Remove("a.png"))

	require.NoError(t, env.lifecycle.Discard(ctx, "a.png"))

	images, err := env.search.ListImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, images)
	env.assertIndexInvariants(t)
}

// stuckFiles refuses to remove anything.
type stuckFiles struct {
	*persistence.LocalImageFiles
}

func (f stuckFiles) Remove(name string) error {
	return domain.IOError("remove image file", name, errors.New("read-only file system"))
}

func TestLifecycleService_Discard_RollsBackWhenFileStays(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	env.register(t, "a.png", "cat")

	stuck := *env.lifecycle
	stuck.files = stuckFiles{env.files}

	err := stuck.Discard(ctx, "a.png")
	assert.ErrorIs(t, err, domain.ErrIO)

	images, err := env.search.ListImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, images)

	tags, err := env.search.ImageTags(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, tags)

	assert.Equal(t, []string{"a.png"}, env.dirEntries(t))
}

func TestLifecycleService_DeleteImages(t *testing.T) {
	decline := ConfirmFunc(func(context.Context, []string) (bool, error) { return false, nil })
	broken := ConfirmFunc(func(context.Context, []string) (bool, error) { return false, errors.New("no terminal") })

	tests := []struct {
		name          string
		confirmer     domain.DeleteConfirmer
		ids           []string
		force         bool
		wantCommitted bool
		wantErr       bool
		wantLeft      []string
	}{
		{"default confirmer approves", nil, []string{"a.png", "b.png"}, false, true, false, []string{"c.png"}},
		{"declined changes nothing", decline, []string{"a.png"}, false, false, false, []string{"a.png", "b.png", "c.png"}},
		{"force skips confirmation", decline, []string{"a.png"}, true, true, false, []string{"b.png", "c.png"}},
		{"confirmer failure", broken, []string{"a.png"}, false, false, true, []string{"a.png", "b.png", "c.png"}},
		{"empty request", nil, nil, true, false, false, []string{"a.png", "b.png", "c.png"}},
		{"malformed id changes nothing", nil, []string{"a.png", "../x", "b.png"}, true, false, true, []string{"a.png", "b.png", "c.png"}},
		{"unknown id changes nothing", nil, []string{"a.png", "nope.png"}, true, false, true, []string{"a.png", "b.png", "c.png"}},
		{"unknown id is not confirmed", decline, []string{"nope.png"}, false, false, true, []string{"a.png", "b.png", "c.png"}},
		{"repeated id counts once", nil, []string{"a.png", "a.png"}, true, true, false, []string{"b.png", "c.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.confirmer)
			ctx := context.Background()
			env.register(t, "a.png", "cat")
			env.register(t, "b.png", "cat", "dog")
			env.register(t, "c.png", "dog")

			committed, err := env.lifecycle.DeleteImages(ctx, tt.ids, tt.force)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCommitted, committed)

			images, err := env.search.ListImages(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeft, images)
			assert.Equal(t, tt.wantLeft, env.dirEntries(t))
			env.assertIndexInvariants(t)
		})
	}
}

// selectiveStuckFiles refuses to remove one file.
type selectiveStuckFiles struct {
	*persistence.LocalImageFiles
	stuck string
}

func (f selectiveStuckFiles) Remove(name string) error {
	if name == f.stuck {
		return domain.IOError("remove image file", name, errors.New("permission denied"))
	}
	return f.LocalImageFiles.Remove(name)
}

func TestLifecycleService_DeleteImages_StopsAtDiscardFailure(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	env.register(t, "a.png", "cat")
	env.register(t, "b.png", "dog")

	stuck := *env.lifecycle
	stuck.files = selectiveStuckFiles{LocalImageFiles: env.files, stuck: "b.png"}

	committed, err := stuck.DeleteImages(ctx, []string{"a.png", "b.png"}, true)
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.False(t, committed)

	images, err := env.search.ListImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.png"}, images, "ids before the failure stay discarded")
	assert.Equal(t, []string{"b.png"}, env.dirEntries(t))
	env.assertIndexInvariants(t)
}

func TestLifecycleService_OpenImage(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	env.register(t, "a.png", "cat")
	env.placeFile(t, "pending.png")

	path, err := env.lifecycle.OpenImage(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.imagesDir, "a.png"), path)

	_, err = env.lifecycle.OpenImage(ctx, "pending.png")
	assert.ErrorIs(t, err, domain.ErrConstraint)

	require.NoError(t, env.files.Remove("a.png"))
	_, err = env.lifecycle.OpenImage(ctx, "a.png")
	assert.ErrorIs(t, err, domain.ErrIO)
}

// The cascade walk-through: two images share a tag, discarding one keeps the
// shared tag and drops the exclusive one.
func TestLifecycleService_Walkthrough(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	first, err := env.lifecycle.Acquire(ctx, domain.BytesSource(pngOfSize(128)))
	require.NoError(t, err)
	second, err := env.lifecycle.Acquire(ctx, domain.BytesSource(gifHeader))
	require.NoError(t, err)

	images, err := env.search.ListImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, images, "acquired images are not visible")

	require.NoError(t, env.lifecycle.Register(ctx, first, []string{"cat", "outdoor"}))
	require.NoError(t, env.lifecycle.Register(ctx, second, []string{"cat"}))

	got, err := env.search.Search(ctx, domain.MustTagSet("cat"), domain.MustTagSet("outdoor"))
	require.NoError(t, err)
	assert.Equal(t, []string{second}, got)

	require.NoError(t, env.lifecycle.Discard(ctx, first))

	tags, err := env.search.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, tags)

	got, err = env.search.Search(ctx, domain.MustTagSet("cat"), domain.TagSet{})
	require.NoError(t, err)
	assert.Equal(t, []string{second}, got)

	assert.Equal(t, []string{second}, env.dirEntries(t))
	env.assertIndexInvariants(t)
}

func TestLifecycleService_RandomOperationsKeepInvariants(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	vocabulary := []string{"cat", "dog", "outdoor", "night", "red"}
	pickTags := func() []string {
		var tags []string
		for _, tag := range vocabulary {
			if rng.IntN(3) == 0 {
				tags = append(tags, tag)
			}
		}
		return tags
	}

	var live []string
	for step := range 200 {
		switch op := rng.IntN(4); {
		case op == 0 || len(live) == 0:
			id := fmt.Sprintf("%03d.png", step)
			env.register(t, id, pickTags()...)
			live = append(live, id)
		case op == 1 || op == 2:
			id := live[rng.IntN(len(live))]
			require.NoError(t, env.lifecycle.Retag(ctx, id, pickTags(), pickTags()))
		default:
			i := rng.IntN(len(live))
			require.NoError(t, env.lifecycle.Discard(ctx, live[i]))
			live = append(live[:i], live[i+1:]...)
		}

		env.assertIndexInvariants(t)
	}

	images, err := env.search.ListImages(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, live, images)
	assert.ElementsMatch(t, live, env.dirEntries(t))
}
