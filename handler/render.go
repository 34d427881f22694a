package handler

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"RosterBot/model"

	"github.com/go-telegram/bot/models"
)

// Callback data carried by the inline buttons.
const (
	cbStatusPrefix  = "set_status_"
	cbAddPlusOne    = "add_plus_one"
	cbRemovePlusOne = "remove_plus_one"
	cbResetStatus   = "reset_my_status"
	cbClose         = "admin_close_collection"
	cbOpen          = "admin_open_collection"
	cbSetTitle      = "admin_set_title"
	cbShuffle       = "admin_shuffle_teams"
	cbNewEvent      = "admin_new_event"
	cbTeamsPrefix   = "select_teams_"
)

const defaultTitle = "Event Title (Not Set)"

var teamMarkers = []string{"🔵", "🔴", "🟡", "🟢", "🟣", "⚪"}

func userLink(id model.UserID, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, html.EscapeString(name))
}

func entryLine(en model.Entry) string {
	if en.Guest {
		return "➕ (+1 from " + userLink(en.UserID, en.Name) + ")"
	}
	return "✅ " + userLink(en.UserID, en.Name)
}

// RenderMainMessage builds the HTML text of the chat's status message.
func RenderMainMessage(event *model.EventState, session *model.ChatSession) string {
	var sb strings.Builder
	roster := event.Roster()

	title := event.TitleText()
	if title == "" {
		title = defaultTitle
	}
	fmt.Fprintf(&sb, "<b>%s</b>\n\n", html.EscapeString(title))

	sb.WriteString("🟢 Going:\n")
	if len(roster.Going) == 0 {
		sb.WriteString("  (Nobody yet)\n")
	}
	for _, en := range roster.Going {
		sb.WriteString(entryLine(en) + "\n")
	}

	if len(roster.Maybe) > 0 {
		sb.WriteString("\n🟡 Thinking:\n")
		for _, en := range roster.Maybe {
			sb.WriteString("❓ " + userLink(en.UserID, en.Name) + "\n")
		}
	}
	if len(roster.NotGoing) > 0 {
		sb.WriteString("\n🔴 Not Going:\n")
		for _, en := range roster.NotGoing {
			sb.WriteString("❌ " + userLink(en.UserID, en.Name) + "\n")
		}
	}

	sb.WriteString("\n" + strings.Repeat("=", 20) + "\n")
	fmt.Fprintf(&sb, "👥 Total Going: %d\n", roster.GoingTotal)
	if !event.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "📅 Created: %s\n", event.CreatedAt.Format("02 January 2006"))
	}
	sb.WriteString("\n")

	switch {
	case len(session.ShuffleResult) > 0:
		sb.WriteString("--- TEAM COMPOSITIONS ---\n")
		for i, team := range session.ShuffleResult {
			fmt.Fprintf(&sb, "%s Team %d:\n", teamMarkers[i%len(teamMarkers)], i+1)
			if len(team) == 0 {
				sb.WriteString("  (Empty)\n")
			}
			for _, player := range team {
				sb.WriteString("- " + html.EscapeString(player) + "\n")
			}
		}
		sb.WriteString("------------------------\n")
	case session.ShuffleError != "":
		sb.WriteString("❗️ " + html.EscapeString(session.ShuffleError) + "\n")
	}

	return sb.String()
}

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

// MainKeyboard lays out the buttons that are valid for the event status.
func MainKeyboard(event *model.EventState) *models.InlineKeyboardMarkup {
	controls := event.Controls()
	var rows [][]models.InlineKeyboardButton

	if controls.Participation {
		rows = append(rows,
			[]models.InlineKeyboardButton{
				button("✅ Going", cbStatusPrefix+string(model.StatusGoing)),
				button("❌ Not Going", cbStatusPrefix+string(model.StatusNotGoing)),
				button("🤔 Thinking", cbStatusPrefix+string(model.StatusMaybe)),
			},
			[]models.InlineKeyboardButton{
				button("➕ (+1)", cbAddPlusOne),
				button("➖ (-1)", cbRemovePlusOne),
				button("🔄 Reset", cbResetStatus),
			},
		)
	}

	var admin []models.InlineKeyboardButton
	if controls.Close {
		admin = append(admin, button("⛔ Close Vote", cbClose))
	}
	if controls.Open {
		admin = append(admin, button("▶️ Open Vote", cbOpen))
	}
	if controls.Shuffle {
		admin = append(admin, button("🔀 Shuffle", cbShuffle))
	}
	if controls.EditTitle {
		admin = append(admin, button("✏️ Edit Title", cbSetTitle))
	}
	rows = append(rows, admin)

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// TeamCountKeyboard offers the team counts, three per row.
func TeamCountKeyboard(options []int) *models.InlineKeyboardMarkup {
	const perRow = 3
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, n := range options {
		row = append(row, button(strconv.Itoa(n), cbTeamsPrefix+strconv.Itoa(n)))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
