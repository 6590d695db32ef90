package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dfryer1193/ciel/gallery/domain"
	"github.com/dfryer1193/ciel/shared/db"
)

var _ domain.TagIndex = (*SQLiteTagIndex)(nil)

// SQLiteTagIndex implements domain.TagIndex over the image, tag and
// image_tag tables.
type SQLiteTagIndex struct {
	db *sql.DB
}

// NewTagIndex creates a new SQLiteTagIndex from a standard sql.DB
func NewTagIndex(sqlDB *sql.DB) *SQLiteTagIndex {
	return &SQLiteTagIndex{
		db: sqlDB,
	}
}

const (
	addImageQuery    = `INSERT INTO image (name) VALUES (?) ON CONFLICT(name) DO NOTHING`
	deleteImageQuery = `DELETE FROM image WHERE name = ?`
	listImagesQuery  = `SELECT name FROM image ORDER BY name`
	existImageQuery  = `SELECT EXISTS(SELECT 1 FROM image WHERE name = ?)`

	addTagQuery    = `INSERT INTO tag (name) VALUES (?) ON CONFLICT(name) DO NOTHING`
	deleteTagQuery = `DELETE FROM tag WHERE name = ?`
	listTagsQuery  = `SELECT name FROM tag ORDER BY name`
	existTagQuery  = `SELECT EXISTS(SELECT 1 FROM tag WHERE name = ?)`

	addImageTagQuery           = `INSERT INTO image_tag (image, tag) VALUES (?, ?) ON CONFLICT(image, tag) DO NOTHING`
	deleteImageTagQuery        = `DELETE FROM image_tag WHERE image = ? AND tag = ?`
	deleteImageTagsByImage     = `DELETE FROM image_tag WHERE image = ?`
	deleteImageTagsByTag       = `DELETE FROM image_tag WHERE tag = ?`
	tagsOfImageQuery           = `SELECT tag FROM image_tag WHERE image = ? ORDER BY tag`
	imagesWithTagQuery         = `SELECT image FROM image_tag WHERE tag = ? ORDER BY image`
	listAssociationsQuery      = `SELECT image, tag FROM image_tag ORDER BY image, tag`
	imagesWithAllTagsQueryTmpl = `
		SELECT image
		FROM image_tag
		WHERE tag IN (%s)
		GROUP BY image
		HAVING COUNT(DISTINCT tag) = ?
		ORDER BY image
	`
)

// AddImage inserts an image; an existing image is left untouched.
func (r *SQLiteTagIndex) AddImage(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("image id cannot be empty")
	}

	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, addImageQuery, id)
	if err != nil {
		return fmt.Errorf("failed to add image %s: %w", id, err)
	}
	return nil
}

// DeleteImage removes the image's associations and then the image itself.
func (r *SQLiteTagIndex) DeleteImage(ctx context.Context, id string) error {
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		if _, err := executor.ExecContext(txCtx, deleteImageTagsByImage, id); err != nil {
			return fmt.Errorf("failed to delete associations of image %s: %w", id, err)
		}

		if _, err := executor.ExecContext(txCtx, deleteImageQuery, id); err != nil {
			return fmt.Errorf("failed to delete image %s: %w", id, err)
		}

		return nil
	})
}

func (r *SQLiteTagIndex) ListImages(ctx context.Context) ([]string, error) {
	images, err := r.queryNames(ctx, listImagesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

func (r *SQLiteTagIndex) ImageExists(ctx context.Context, id string) (bool, error) {
	exists, err := r.queryExists(ctx, existImageQuery, id)
	if err != nil {
		return false, fmt.Errorf("failed to check image %s: %w", id, err)
	}
	return exists, nil
}

// AddTag inserts a tag; an existing tag is left untouched.
func (r *SQLiteTagIndex) AddTag(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("tag name cannot be empty")
	}

	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, addTagQuery, name)
	if err != nil {
		return fmt.Errorf("failed to add tag %s: %w", name, err)
	}
	return nil
}

// DeleteTag removes the tag's associations and then the tag itself.
func (r *SQLiteTagIndex) DeleteTag(ctx context.Context, name string) error {
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		if _, err := executor.ExecContext(txCtx, deleteImageTagsByTag, name); err != nil {
			return fmt.Errorf("failed to delete associations of tag %s: %w", name, err)
		}

		if _, err := executor.ExecContext(txCtx, deleteTagQuery, name); err != nil {
			return fmt.Errorf("failed to delete tag %s: %w", name, err)
		}

		return nil
	})
}

func (r *SQLiteTagIndex) ListTags(ctx context.Context) ([]string, error) {
	tags, err := r.queryNames(ctx, listTagsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (r *SQLiteTagIndex) TagExists(ctx context.Context, name string) (bool, error) {
	exists, err := r.queryExists(ctx, existTagQuery, name)
	if err != nil {
		return false, fmt.Errorf("failed to check tag %s: %w", name, err)
	}
	return exists, nil
}

// AddAssociation links an existing image to an existing tag. Neither end is
// created implicitly.
func (r *SQLiteTagIndex) AddAssociation(ctx context.Context, image, tag string) error {
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		imageExists, err := r.queryExists(txCtx, existImageQuery, image)
		if err != nil {
			return fmt.Errorf("failed to check image %s: %w", image, err)
		}
		if !imageExists {
			return domain.ConstraintError("associate", image+"/"+tag, fmt.Errorf("image %s does not exist", image))
		}

		tagExists, err := r.queryExists(txCtx, existTagQuery, tag)
		if err != nil {
			return fmt.Errorf("failed to check tag %s: %w", tag, err)
		}
		if !tagExists {
			return domain.ConstraintError("associate", image+"/"+tag, fmt.Errorf("tag %s does not exist", tag))
		}

		_, err = db.GetExecutor(txCtx, r.db).ExecContext(txCtx, addImageTagQuery, image, tag)
		if err != nil {
			return fmt.Errorf("failed to associate %s with %s: %w", image, tag, err)
		}
		return nil
	})
}

func (r *SQLiteTagIndex) DeleteAssociation(ctx context.Context, image, tag string) error {
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, deleteImageTagQuery, image, tag)
	if err != nil {
		return fmt.Errorf("failed to dissociate %s from %s: %w", image, tag, err)
	}
	return nil
}

func (r *SQLiteTagIndex) TagsOf(ctx context.Context, image string) ([]string, error) {
	tags, err := r.queryNames(ctx, tagsOfImageQuery, image)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags of %s: %w", image, err)
	}
	return tags, nil
}

func (r *SQLiteTagIndex) ImagesWithTag(ctx context.Context, tag string) ([]string, error) {
	images, err := r.queryNames(ctx, imagesWithTagQuery, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to list images tagged %s: %w", tag, err)
	}
	return images, nil
}

// ImagesWithAllTags returns the images associated with every tag in tags.
// Duplicate names count once.
func (r *SQLiteTagIndex) ImagesWithAllTags(ctx context.Context, tags []string) ([]string, error) {
	distinct := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}

	if len(distinct) == 0 {
		return r.ListImages(ctx)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(distinct)), ",")
	query := fmt.Sprintf(imagesWithAllTagsQueryTmpl, placeholders)

	args := make([]any, 0, len(distinct)+1)
	for _, t := range distinct {
		args = append(args, t)
	}
	args = append(args, len(distinct))

	images, err := r.queryNames(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images tagged with all of %v: %w", distinct, err)
	}
	return images, nil
}

func (r *SQLiteTagIndex) Associations(ctx context.Context) ([]domain.Association, error) {
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, listAssociationsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}
	defer rows.Close()

	assocs := make([]domain.Association, 0)
	for rows.Next() {
		var row imageTagRow
		if err := rows.Scan(&row.Image, &row.Tag); err != nil {
			return nil, fmt.Errorf("failed to scan association row: %w", err)
		}
		assocs = append(assocs, row.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating association rows: %w", err)
	}

	return assocs, nil
}

// queryNames runs a single-column query and collects the values.
func (r *SQLiteTagIndex) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}

func (r *SQLiteTagIndex) queryExists(ctx context.Context, query string, arg string) (bool, error) {
	var exists bool
	if err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// imageTagRow is a private struct used to scan association rows
type imageTagRow struct {
	Image string `db:"image"`
	Tag   string `db:"tag"`
}

func (row *imageTagRow) toDomain() domain.Association {
	return domain.Association{
		Image: row.Image,
		Tag:   row.Tag,
	}
}
