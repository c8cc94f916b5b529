package step

import "errors"

// Domain errors for the step package.
var (
	// ErrDuplicateDiscriminator is returned when two factories share a discriminator.
	ErrDuplicateDiscriminator = errors.New("step: duplicate discriminator")

	// ErrEmptyDiscriminator is returned when a factory has no discriminator.
	ErrEmptyDiscriminator = errors.New("step: empty discriminator")

	// ErrUnknownStep is returned when marshalling a step whose type is not registered.
	ErrUnknownStep = errors.New("step: unknown step type")

	// ErrWrongType is returned by a factory asked to encode another step type.
	ErrWrongType = errors.New("step: wrong step type for factory")

	// ErrMissingClass is returned when a step object carries no class field.
	ErrMissingClass = errors.New("step: missing class")

	// ErrInvalidID is returned when a step object has no parsable uuid.
	ErrInvalidID = errors.New("step: invalid uuid")
)
