package template

import "errors"

var (
	// ErrTemplateNotFound indicates no active template matches the
	// (code, channel, language) key.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrRepositoryRequired indicates the engine was created without a repository.
	ErrRepositoryRequired = errors.New("repository is required")
)
