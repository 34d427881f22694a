package service

import (
	"context"
	"fmt"

	"RosterBot/model"
	"RosterBot/teams"
)

// touch registers the author, invalidates any shuffle outcome and abandons
// a pending team count prompt. Every action outside the shuffle flow starts
// here.
func (s *Service) touch(req *Request) {
	req.Event.UpsertParticipant(req.User.ID, req.User.Name, req.User.Username)
	req.Session.ClearShuffle()
	s.resetFlow(req, model.StateAwaitingTeamCount)
}

// commit saves the request and returns actionErr, unless saving failed.
func (s *Service) commit(ctx context.Context, req *Request, actionErr error) error {
	if err := s.Save(ctx, req); err != nil {
		return err
	}
	return actionErr
}

// StartNewEvent wipes the event and the chat session and waits for the
// author to send a title.
func (s *Service) StartNewEvent(ctx context.Context, req *Request) error {
	if err := s.authorize(req); err != nil {
		return err
	}
	s.resetFlow(req)
	if err := s.repo.Reset(ctx, req.ChatID); err != nil {
		return fmt.Errorf("reset chat %d: %w", req.ChatID, err)
	}
	req.Event.Reset(s.now())
	req.Session = &model.ChatSession{}
	if err := s.Save(ctx, req); err != nil {
		return err
	}
	s.setFlow(req.ChatID, model.ChatFlow{State: model.StateAwaitingTitle, TitleAuthor: req.User.ID})
	s.log.Info().Int64("chat_id", req.ChatID).Int64("user_id", int64(req.User.ID)).Msg("new event started")
	return nil
}

// PromptTitle waits for the author's next text message to become the title.
func (s *Service) PromptTitle(_ context.Context, req *Request) error {
	if err := s.authorize(req); err != nil {
		return err
	}
	s.resetFlow(req)
	s.setFlow(req.ChatID, model.ChatFlow{State: model.StateAwaitingTitle, TitleAuthor: req.User.ID})
	return nil
}

// AwaitingTitle reports whether the next text from user in chat is a title.
func (s *Service) AwaitingTitle(chatID int64, user model.UserID) bool {
	f := s.Flow(chatID)
	return f.State == model.StateAwaitingTitle && f.TitleAuthor == user
}

// SetTitle stores text as the event title. On ErrEmptyTitle the chat keeps
// waiting for a title.
func (s *Service) SetTitle(ctx context.Context, req *Request, text string) error {
	if err := req.Event.SetTitle(text); err != nil {
		return err
	}
	s.resetFlow(req, model.StateAwaitingTitle)
	s.log.Info().Int64("chat_id", req.ChatID).Str("title", req.Event.TitleText()).Msg("event title updated")
	return s.Save(ctx, req)
}

// Cancel abandons a pending title prompt. It reports whether there was one.
func (s *Service) Cancel(req *Request) bool {
	if !s.AwaitingTitle(req.ChatID, req.User.ID) {
		return false
	}
	s.resetFlow(req, model.StateAwaitingTitle)
	return true
}

// participate runs a participation change. Participation is frozen while the
// vote is closed, and a rejected change leaves teams and state untouched.
func (s *Service) participate(ctx context.Context, req *Request, change func() error) error {
	if !req.Event.IsOpen() {
		s.resetFlow(req, model.StateAwaitingTeamCount)
		return model.ErrVoteClosed
	}
	s.touch(req)
	return s.commit(ctx, req, change())
}

func (s *Service) SetStatus(ctx context.Context, req *Request, status model.ParticipantStatus) error {
	return s.participate(ctx, req, func() error {
		return req.Event.SetParticipantStatus(req.User.ID, status)
	})
}

func (s *Service) AddPlusOne(ctx context.Context, req *Request) error {
	return s.participate(ctx, req, func() error {
		return req.Event.AddPlusOne(req.User.ID, req.User.Name, req.User.Username)
	})
}

// RemovePlusOne drops the author's latest guest. ErrNothingToRemove is
// reported when they have none.
func (s *Service) RemovePlusOne(ctx context.Context, req *Request) error {
	return s.participate(ctx, req, func() error {
		return req.Event.RemovePlusOne(req.User.ID)
	})
}

func (s *Service) ResetParticipant(ctx context.Context, req *Request) error {
	return s.participate(ctx, req, func() error {
		req.Event.ResetParticipant(req.User.ID)
		return nil
	})
}

func (s *Service) AdminClose(ctx context.Context, req *Request) error {
	if err := s.authorize(req); err != nil {
		return err
	}
	s.touch(req)
	req.Event.Close()
	return s.commit(ctx, req, nil)
}

func (s *Service) AdminOpen(ctx context.Context, req *Request) error {
	if err := s.authorize(req); err != nil {
		return err
	}
	s.touch(req)
	req.Event.Open()
	return s.commit(ctx, req, nil)
}

// BeginShuffle snapshots the going players and returns the team counts to
// offer. With fewer than two players the shuffle error is recorded instead.
func (s *Service) BeginShuffle(ctx context.Context, req *Request) ([]int, error) {
	if err := s.authorize(req); err != nil {
		return nil, err
	}
	s.resetFlow(req)
	if req.Event.IsOpen() {
		return nil, model.ErrVoteOpen
	}

	players := req.Event.EligibleForShuffle()
	var poolErr error
	switch len(players) {
	case 0:
		poolErr = model.ErrNoPlayers
	case 1:
		poolErr = model.ErrNotEnoughPlayers
	}
	if poolErr != nil {
		req.Session.SetShuffleError(model.Describe(poolErr))
		return nil, s.commit(ctx, req, poolErr)
	}

	s.setFlow(req.ChatID, model.ChatFlow{State: model.StateAwaitingTeamCount, Players: players})
	return teams.CountOptions(len(players)), nil
}

// ChooseTeamCount finishes the shuffle flow. The count is checked again
// against the snapshot taken by BeginShuffle.
func (s *Service) ChooseTeamCount(ctx context.Context, req *Request, teamCount int) error {
	if err := s.authorize(req); err != nil {
		return err
	}
	players := s.Flow(req.ChatID).Players
	s.resetFlow(req, model.StateAwaitingTeamCount)

	if !teams.ValidCount(teamCount, len(players)) {
		req.Session.SetShuffleError(model.Describe(model.ErrInvalidTeamCount))
		return s.commit(ctx, req, model.ErrInvalidTeamCount)
	}

	req.Session.SetShuffleResult(s.shuffle(players, teamCount))
	s.log.Info().Int64("chat_id", req.ChatID).Int("players", len(players)).Int("teams", teamCount).Msg("teams shuffled")
	return s.commit(ctx, req, nil)
}
