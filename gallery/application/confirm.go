package application

import (
	"context"

	"github.com/dfryer1193/ciel/gallery/domain"
)

// ConfirmFunc adapts a function to domain.DeleteConfirmer.
type ConfirmFunc func(ctx context.Context, ids []string) (bool, error)

func (f ConfirmFunc) ConfirmDelete(ctx context.Context, ids []string) (bool, error) {
	return f(ctx, ids)
}

// AlwaysConfirm approves every deletion. Used when no interactive
// presentation layer is attached.
var AlwaysConfirm domain.DeleteConfirmer = ConfirmFunc(func(context.Context, []string) (bool, error) {
	return true, nil
})
