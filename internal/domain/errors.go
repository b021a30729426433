package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers missing or short names and malformed questions.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned for unknown or deleted game codes.
	ErrNotFound = errors.New("game not found")
	// ErrNameTaken indicates a case-insensitive player name collision.
	ErrNameTaken = errors.New("player name already taken")
	// ErrIllegalTransition is returned when an operation is not allowed in the game's current status.
	ErrIllegalTransition = errors.New("illegal game transition")
	// ErrStoreUnavailable wraps get/set failures against the shared store.
	ErrStoreUnavailable = errors.New("shared store unavailable")
	// ErrConflict is returned when an optimistic write lost against a concurrent writer.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrNoSession indicates a session operation before a game was created, resumed or joined.
	ErrNoSession = errors.New("no active game session")
	// ErrPlayerNotFound indicates the acting player is no longer part of the game.
	ErrPlayerNotFound = errors.New("player not found in game")
)

var (
	// ErrNoQuestions is returned by StartGame on a game without questions.
	ErrNoQuestions = fmt.Errorf("%w: game has no questions", ErrIllegalTransition)
	// ErrNoPlayers is returned by StartGame on a game without players.
	ErrNoPlayers = fmt.Errorf("%w: game has no players", ErrIllegalTransition)
	// ErrGameFinished is returned when joining a finished game.
	ErrGameFinished = fmt.Errorf("%w: game already finished", ErrIllegalTransition)
)
