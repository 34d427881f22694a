package model

import "errors"

var (
	ErrParticipantDoesNotExist = errors.New("participant do not exist")
	ErrVoteClosed              = errors.New("vote is closed")
	ErrVoteOpen                = errors.New("vote is still open")
	ErrNothingToRemove         = errors.New("no plus ones to remove")
	ErrEmptyTitle              = errors.New("title is empty")
	ErrNoPlayers               = errors.New("no players going")
	ErrNotEnoughPlayers        = errors.New("only one player going")
	ErrInvalidTeamCount        = errors.New("invalid team count")
	ErrNotAdmin                = errors.New("user is not an admin")
	ErrUnknownAction           = errors.New("unknown action")
)

// Describe returns the user facing text for errors raised by the event
// model and the coordinator. Unknown errors yield an empty string.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrVoteClosed):
		return "Vote is closed, participation is unavailable."
	case errors.Is(err, ErrVoteOpen):
		return "Please close the vote before shuffling teams."
	case errors.Is(err, ErrNothingToRemove):
		return "Cannot decrease, as you have no additional participants."
	case errors.Is(err, ErrEmptyTitle):
		return "Please enter the new title as text."
	case errors.Is(err, ErrNoPlayers):
		return "No players marked as 'Going' to shuffle."
	case errors.Is(err, ErrNotEnoughPlayers):
		return "Cannot form teams with only one player."
	case errors.Is(err, ErrInvalidTeamCount):
		return "Invalid number of teams selected. Please try again."
	case errors.Is(err, ErrNotAdmin):
		return "Only event admins can do that."
	case errors.Is(err, ErrParticipantDoesNotExist):
		return "Press a button to join the event first."
	case errors.Is(err, ErrUnknownAction):
		return "Unknown action."
	}
	return ""
}
