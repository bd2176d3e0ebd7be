package service

import (
	"errors"

	"github.com/fjod/go_cart/storefront/internal/repository"
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress for this session")
	ErrInvalidProduct     = errors.New("product needs a name and a non-negative price")

	ErrProductNotFound  = repository.ErrProductNotFound
	ErrCategoryNotFound = repository.ErrCategoryNotFound
	ErrOrderNotFound    = repository.ErrOrderNotFound
	ErrNegativeStock    = repository.ErrNegativeStock
	ErrDuplicate        = repository.ErrDuplicate
)
