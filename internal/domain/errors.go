package domain

import "errors"

var (
	// ErrQuizNotFound indicates the referenced quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUnknownPoll indicates a response event referenced a poll with no mapping.
	ErrUnknownPoll = errors.New("unknown poll")
	// ErrInvalidQuiz indicates a hub question failed intake validation.
	ErrInvalidQuiz = errors.New("quiz missing question or options")
	// ErrGroupNotFound indicates the referenced group was never subscribed.
	ErrGroupNotFound = errors.New("group not found")
)
