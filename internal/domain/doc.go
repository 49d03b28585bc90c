// Package domain contains the core business entities of the story service:
// quiz answers, stories, scenes and their lifecycle statuses. It holds the
// validation rules for each, independent of any specific infrastructure or
// delivery mechanism.
package domain
