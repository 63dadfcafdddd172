package checkout

import "errors"

var (
	// ErrEmptySelection rejects a checkout whose selection is empty after
	// de-duplication.
	ErrEmptySelection = errors.New("selection must contain at least one photo")

	// ErrInvalidContact rejects a checkout without a usable client e-mail.
	ErrInvalidContact = errors.New("a valid client e-mail is required")

	// ErrSelectionLocked means another in-flight checkout holds at least one
	// of the selected photos.
	ErrSelectionLocked = errors.New("one or more photos are locked by another checkout")
)
