package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"RosterBot/model"
	"RosterBot/service"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

const (
	textApology     = "Something went wrong. Please try again."
	textEnterTitle  = "Please enter the event title:"
	textPromptTitle = "Please enter the new event title in the chat."
	textCancelled   = "Operation cancelled."
	textHelp        = "I collect sign-ups for a match.\n" +
		"Use /start to begin a new event, then set your status with the buttons.\n" +
		"Admins can close the vote and shuffle the players going into teams.\n" +
		"Use /cancel to abort entering a title."
)

// Messenger is the part of the Telegram Bot API the handler uses.
// *bot.Bot implements it.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type EventBotHandler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewEventBotHandler(svc *service.Service, log zerolog.Logger) *EventBotHandler {
	return &EventBotHandler{svc: svc, log: log}
}

// Handler is registered as the bot's default handler.
func (h *EventBotHandler) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.Handle(ctx, b, update)
}

func (h *EventBotHandler) Handle(ctx context.Context, m Messenger, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, m, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, m, update.Message)
	}
}

func userFrom(u models.User) service.User {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return service.User{ID: model.UserID(u.ID), Name: name, Username: u.Username}
}

// command returns the bot command of text, without any @botname suffix.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	return cmd
}

func (h *EventBotHandler) handleMessage(ctx context.Context, m Messenger, msg *models.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	user := userFrom(*msg.From)
	logger := h.log.With().Int64("chat_id", chatID).Int64("user_id", int64(user.ID)).Logger()

	cmd := command(msg.Text)
	if cmd == "" && !h.svc.AwaitingTitle(chatID, user.ID) {
		return
	}
	logger.Debug().Str("command", cmd).Msg("message received")

	if cmd == "/help" {
		h.reply(ctx, m, chatID, textHelp)
		return
	}
	if cmd != "" && cmd != "/start" && cmd != "/cancel" {
		return
	}

	req, err := h.svc.Load(ctx, chatID, user)
	if err != nil {
		h.fail(ctx, m, chatID, "", err)
		return
	}

	switch cmd {
	case "/start":
		err = h.svc.StartNewEvent(ctx, req)
		if err == nil {
			h.dropStale(ctx, m, req)
			h.reply(ctx, m, chatID, textEnterTitle)
			return
		}
	case "/cancel":
		if h.svc.Cancel(req) {
			h.reply(ctx, m, chatID, textCancelled)
		}
		return
	default:
		err = h.svc.SetTitle(ctx, req, msg.Text)
		if err == nil {
			h.reply(ctx, m, chatID, "Event title updated to: "+req.Event.TitleText())
			if err := h.showMain(ctx, m, req); err != nil {
				h.fail(ctx, m, chatID, "", err)
			}
			return
		}
	}

	if notice := model.Describe(err); notice != "" {
		h.reply(ctx, m, chatID, notice)
		return
	}
	h.fail(ctx, m, chatID, "", err)
}

func callbackChatID(cq *models.CallbackQuery) (int64, bool) {
	switch {
	case cq.Message.Message != nil:
		return cq.Message.Message.Chat.ID, true
	case cq.Message.InaccessibleMessage != nil:
		return cq.Message.InaccessibleMessage.Chat.ID, true
	}
	return 0, false
}

func (h *EventBotHandler) handleCallback(ctx context.Context, m Messenger, cq *models.CallbackQuery) {
	chatID, ok := callbackChatID(cq)
	if !ok {
		h.answer(ctx, m, cq.ID, "")
		return
	}
	user := userFrom(cq.From)
	logger := h.log.With().Int64("chat_id", chatID).Int64("user_id", int64(user.ID)).Str("action", cq.Data).Logger()
	logger.Info().Msg("button pressed")

	req, err := h.svc.Load(ctx, chatID, user)
	if err != nil {
		h.fail(ctx, m, chatID, cq.ID, err)
		return
	}

	notice, render, err := h.dispatch(ctx, m, req, cq.Data)
	h.dropStale(ctx, m, req)
	if err != nil {
		if notice = model.Describe(err); notice == "" {
			h.fail(ctx, m, chatID, cq.ID, err)
			return
		}
		logger.Debug().Err(err).Msg("action rejected")
	}

	if render {
		if err := h.showMain(ctx, m, req); err != nil {
			h.fail(ctx, m, chatID, cq.ID, err)
			return
		}
	}
	h.answer(ctx, m, cq.ID, notice)
}

// dispatch runs the action behind a button. It returns the toast to show and
// whether the main message needs refreshing.
func (h *EventBotHandler) dispatch(ctx context.Context, m Messenger, req *service.Request, data string) (string, bool, error) {
	switch {
	case strings.HasPrefix(data, cbStatusPrefix):
		status, ok := model.ParseParticipantStatus(strings.TrimPrefix(data, cbStatusPrefix))
		if !ok {
			return "", false, model.ErrUnknownAction
		}
		return "", true, h.svc.SetStatus(ctx, req, status)

	case data == cbAddPlusOne:
		return "", true, h.svc.AddPlusOne(ctx, req)

	case data == cbRemovePlusOne:
		return "", true, h.svc.RemovePlusOne(ctx, req)

	case data == cbResetStatus:
		return "", true, h.svc.ResetParticipant(ctx, req)

	case data == cbClose:
		return "Vote closed!", true, h.svc.AdminClose(ctx, req)

	case data == cbOpen:
		return "Vote opened!", true, h.svc.AdminOpen(ctx, req)

	case data == cbSetTitle:
		if err := h.svc.PromptTitle(ctx, req); err != nil {
			return "", false, err
		}
		h.reply(ctx, m, req.ChatID, textPromptTitle)
		return "Enter new title.", false, nil

	case data == cbNewEvent:
		if err := h.svc.StartNewEvent(ctx, req); err != nil {
			return "", false, err
		}
		h.reply(ctx, m, req.ChatID, textEnterTitle)
		return "", false, nil

	case data == cbShuffle:
		options, err := h.svc.BeginShuffle(ctx, req)
		if errors.Is(err, model.ErrNotAdmin) {
			return "", false, err
		}
		if err != nil {
			return "", true, err
		}
		return "", false, h.promptTeamCount(ctx, m, req, options)

	case strings.HasPrefix(data, cbTeamsPrefix):
		n, _ := strconv.Atoi(strings.TrimPrefix(data, cbTeamsPrefix))
		if err := h.svc.ChooseTeamCount(ctx, req, n); err != nil {
			return "", !errors.Is(err, model.ErrNotAdmin), err
		}
		return fmt.Sprintf("Teams shuffled into %d teams!", n), true, nil
	}
	return "", false, model.ErrUnknownAction
}

func (h *EventBotHandler) promptTeamCount(ctx context.Context, m Messenger, req *service.Request, options []int) error {
	flow := h.svc.Flow(req.ChatID)
	players := flow.PoolSize()
	sent, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      req.ChatID,
		Text:        fmt.Sprintf("There are %d players available. Please select the number of teams:", players),
		ReplyMarkup: TeamCountKeyboard(options),
	})
	if err != nil {
		return fmt.Errorf("send team count prompt: %w", err)
	}
	h.svc.SetPrompt(req.ChatID, model.MessageRef{MessageID: sent.ID, ChatID: sent.Chat.ID})
	return nil
}

func isNotModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

// showMain edits the chat's status message in place, or sends a new one when
// there is none or the edit fails, and records which message is live.
func (h *EventBotHandler) showMain(ctx context.Context, m Messenger, req *service.Request) error {
	text := RenderMainMessage(req.Event, req.Session)
	markup := MainKeyboard(req.Event)

	if ref := req.Session.MainMessage; ref != nil && ref.ChatID == req.ChatID {
		_, err := m.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      ref.ChatID,
			MessageID:   ref.MessageID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: markup,
		})
		if err == nil || isNotModified(err) {
			return h.svc.RecordMainMessage(ctx, req, *ref)
		}
		h.log.Warn().Err(err).Int64("chat_id", ref.ChatID).Int("message_id", ref.MessageID).Msg("failed to update main message, sending a new one")
	}

	sent, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      req.ChatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("send main message: %w", err)
	}
	h.log.Info().Int64("chat_id", req.ChatID).Int("message_id", sent.ID).Msg("new main message sent")
	return h.svc.RecordMainMessage(ctx, req, model.MessageRef{MessageID: sent.ID, ChatID: sent.Chat.ID})
}

func (h *EventBotHandler) dropStale(ctx context.Context, m Messenger, req *service.Request) {
	for _, ref := range req.Stale {
		if _, err := m.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: ref.ChatID, MessageID: ref.MessageID}); err != nil {
			h.log.Warn().Err(err).Int64("chat_id", ref.ChatID).Int("message_id", ref.MessageID).Msg("failed to delete prompt")
		}
	}
	req.Stale = nil
}

func (h *EventBotHandler) reply(ctx context.Context, m Messenger, chatID int64, text string) {
	if _, err := m.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("error sending message")
	}
}

func (h *EventBotHandler) answer(ctx context.Context, m Messenger, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if _, err := m.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID, Text: text}); err != nil {
		h.log.Warn().Err(err).Msg("error answering callback")
	}
}

// fail logs an unexpected error and apologises to the user.
func (h *EventBotHandler) fail(ctx context.Context, m Messenger, chatID int64, callbackID string, err error) {
	h.log.Error().Err(err).Int64("chat_id", chatID).Msg("exception while handling an update")
	if callbackID != "" {
		h.answer(ctx, m, callbackID, textApology)
		return
	}
	h.reply(ctx, m, chatID, textApology)
}
