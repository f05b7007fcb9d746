package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound signals a missing product.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrCategoryNotFound signals a missing category.
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)

	// ErrValidation signals invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrCycle signals that a parent assignment would make the category tree cyclic.
	ErrCycle = fmt.Errorf("category hierarchy cycle: %w", ErrValidation)
	// ErrDuplicateContent signals a category whose semantic hash is already taken.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrTransientDependency signals a dependency failure worth retrying.
	ErrTransientDependency = errors.New("transient dependency failure")
	// ErrPermanentDependency signals a dependency failure that retrying will not fix.
	ErrPermanentDependency = errors.New("permanent dependency failure")
	// ErrCircuitOpen signals that calls are short-circuited by an open breaker.
	ErrCircuitOpen = fmt.Errorf("circuit breaker open: %w", ErrPermanentDependency)
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = fmt.Errorf("vector dimension mismatch: %w", ErrPermanentDependency)

	// ErrNoEligibleCategories signals that policy and exclusions left nothing to rank.
	ErrNoEligibleCategories = errors.New("no eligible categories")
	// ErrNoEligibleMatches signals that no search hit fell inside the eligible set.
	ErrNoEligibleMatches = errors.New("no eligible matches")
	// ErrIndexNotInitialized signals a vector index used before reset or load.
	ErrIndexNotInitialized = errors.New("vector index not initialized")
)

// Transient marks err as retryable while keeping it inspectable with errors.Is/As.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrTransientDependency, err: err}
}

// Permanent marks err as non-retryable while keeping it inspectable with errors.Is/As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrPermanentDependency, err: err}
}

// IsTransient reports whether err is classified as a retryable dependency failure.
// Permanent wins when both classes are present in the chain.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientDependency) && !errors.Is(err, ErrPermanentDependency)
}

type classifiedError struct {
	class error
	err   error
}

func (e *classifiedError) Error() string { return e.class.Error() + ": " + e.err.Error() }

func (e *classifiedError) Unwrap() []error { return []error{e.class, e.err} }
