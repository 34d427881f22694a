package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"RosterBot/model"
)

// Keys shared with earlier deployments of the bot; per chat keys are
// suffixed with ":<chat id>".
const (
	EventDataKey     = "event_data"
	MainMessageIDKey = "main_message_id"
	MainChatIDKey    = "main_chat_id"
	ShuffledTeamsKey = "shuffled_teams"
	ShuffleErrorKey  = "shuffle_error"
)

func chatKey(name string, chatID int64) string {
	return name + ":" + strconv.FormatInt(chatID, 10)
}

// StateRepository maps the event and chat sessions onto a Store.
type StateRepository struct {
	store Store
	now   func() time.Time
}

func NewStateRepository(store Store) *StateRepository {
	return &StateRepository{store: store, now: time.Now}
}

// LoadEvent returns the stored event, or a fresh open event when none was
// saved yet.
func (r *StateRepository) LoadEvent(ctx context.Context) (*model.EventState, error) {
	raw, found, err := r.store.Get(ctx, EventDataKey)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if !found || raw == "" {
		return model.NewEventState(r.now()), nil
	}
	var event model.EventState
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	event.Normalize()
	return &event, nil
}

// LoadSession reads the per chat state. Missing keys yield empty fields.
func (r *StateRepository) LoadSession(ctx context.Context, chatID int64) (*model.ChatSession, error) {
	session := &model.ChatSession{}

	messageID, err := r.getInt(ctx, chatKey(MainMessageIDKey, chatID))
	if err != nil {
		return nil, err
	}
	mainChatID, err := r.getInt(ctx, chatKey(MainChatIDKey, chatID))
	if err != nil {
		return nil, err
	}
	if messageID != 0 && mainChatID != 0 {
		session.MainMessage = &model.MessageRef{MessageID: int(messageID), ChatID: mainChatID}
	}

	raw, found, err := r.store.Get(ctx, chatKey(ShuffledTeamsKey, chatID))
	if err != nil {
		return nil, fmt.Errorf("load shuffled teams: %w", err)
	}
	if found && raw != "" {
		var teams [][]string
		if err := json.Unmarshal([]byte(raw), &teams); err != nil {
			return nil, fmt.Errorf("decode shuffled teams: %w", err)
		}
		if len(teams) > 0 {
			session.ShuffleResult = teams
		}
	}

	shuffleErr, found, err := r.store.Get(ctx, chatKey(ShuffleErrorKey, chatID))
	if err != nil {
		return nil, fmt.Errorf("load shuffle error: %w", err)
	}
	// "None" was written by the first version of the bot for a cleared error.
	if found && shuffleErr != "None" && session.ShuffleResult == nil {
		session.ShuffleError = shuffleErr
	}

	return session, nil
}

func (r *StateRepository) getInt(ctx context.Context, key string) (int64, error) {
	raw, found, err := r.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", key, err)
	}
	if !found || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return n, nil
}

// Save writes the event, then the chat session when the session already has
// a main message to scope it. Empty session fields delete their keys.
func (r *StateRepository) Save(ctx context.Context, event *model.EventState, session *model.ChatSession) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.store.Set(ctx, EventDataKey, string(payload)); err != nil {
		return fmt.Errorf("save event: %w", err)
	}

	if session == nil || session.MainMessage == nil {
		return nil
	}
	chatID := session.MainMessage.ChatID

	if err := r.store.Set(ctx, chatKey(MainMessageIDKey, chatID), strconv.Itoa(session.MainMessage.MessageID)); err != nil {
		return fmt.Errorf("save main message id: %w", err)
	}
	if err := r.store.Set(ctx, chatKey(MainChatIDKey, chatID), strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("save main chat id: %w", err)
	}

	if len(session.ShuffleResult) > 0 {
		teams, err := json.Marshal(session.ShuffleResult)
		if err != nil {
			return fmt.Errorf("encode shuffled teams: %w", err)
		}
		if err := r.store.Set(ctx, chatKey(ShuffledTeamsKey, chatID), string(teams)); err != nil {
			return fmt.Errorf("save shuffled teams: %w", err)
		}
	} else if err := r.store.Delete(ctx, chatKey(ShuffledTeamsKey, chatID)); err != nil {
		return fmt.Errorf("clear shuffled teams: %w", err)
	}

	if session.ShuffleError != "" {
		if err := r.store.Set(ctx, chatKey(ShuffleErrorKey, chatID), session.ShuffleError); err != nil {
			return fmt.Errorf("save shuffle error: %w", err)
		}
	} else if err := r.store.Delete(ctx, chatKey(ShuffleErrorKey, chatID)); err != nil {
		return fmt.Errorf("clear shuffle error: %w", err)
	}

	return nil
}

// Reset deletes the event and every key of the chat.
func (r *StateRepository) Reset(ctx context.Context, chatID int64) error {
	keys := []string{
		EventDataKey,
		chatKey(MainMessageIDKey, chatID),
		chatKey(MainChatIDKey, chatID),
		chatKey(ShuffledTeamsKey, chatID),
		chatKey(ShuffleErrorKey, chatID),
	}
	for _, key := range keys {
		if err := r.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	return nil
}
