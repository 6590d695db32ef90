package domain

import "context"

// TagIndex is the durable record of images, tags and their associations.
// Every method is atomic on its own and joins a transaction already carried
// by ctx.
type TagIndex interface {
	AddImage(ctx context.Context, id string) error
	// DeleteImage removes the image and all of its associations.
	DeleteImage(ctx context.Context, id string) error
	ListImages(ctx context.Context) ([]string, error)
	ImageExists(ctx context.Context, id string) (bool, error)

	AddTag(ctx context.Context, name string) error
	// DeleteTag removes the tag and all of its associations.
	DeleteTag(ctx context.Context, name string) error
	ListTags(ctx context.Context) ([]string, error)
	TagExists(ctx context.Context, name string) (bool, error)

	// AddAssociation fails with ErrConstraint if the image or the tag is unknown.
	AddAssociation(ctx context.Context, image, tag string) error
	DeleteAssociation(ctx context.Context, image, tag string) error
	TagsOf(ctx context.Context, image string) ([]string, error)
	ImagesWithTag(ctx context.Context, tag string) ([]string, error)
	// ImagesWithAllTags returns every image when tags is empty.
	ImagesWithAllTags(ctx context.Context, tags []string) ([]string, error)
	Associations(ctx context.Context) ([]Association, error)
}

// Transactor composes several TagIndex calls into one atomic unit.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
