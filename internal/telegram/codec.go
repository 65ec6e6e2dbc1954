package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/matchbot/internal/chat"
)

// Decode converts a Bot API update into a chat.Update. Only private-chat
// messages and callback queries are accepted.
func Decode(u tgbotapi.Update) (chat.Update, bool) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.From == nil {
			return chat.Update{}, false
		}
		out := sender(q.From)
		out.Kind = chat.KindCallback
		out.CallbackID = q.ID
		out.CallbackData = q.Data
		return out, true

	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
			return chat.Update{}, false
		}
		out := sender(m.From)
		if len(m.Photo) > 0 {
			out.Kind = chat.KindPhoto
			out.PhotoID = largest(m.Photo).FileID
			out.Text = m.Caption
			return out, true
		}
		if m.Text == "" {
			return chat.Update{}, false
		}
		out.Kind = chat.KindText
		out.Text = m.Text
		return out, true
	}
	return chat.Update{}, false
}

func sender(u *tgbotapi.User) chat.Update {
	return chat.Update{
		SenderID:    u.ID,
		Username:    u.UserName,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}

func largest(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

// Render builds the Bot API request for r: a photo with caption when
// PhotoID is set, a text message otherwise.
func Render(r chat.Reply) tgbotapi.Chattable {
	markup := replyMarkup(r)
	if r.PhotoID != "" {
		p := tgbotapi.NewPhoto(r.ChatID, tgbotapi.FileID(r.PhotoID))
		p.Caption = r.Text
		p.ParseMode = string(r.ParseMode)
		if markup != nil {
			p.ReplyMarkup = markup
		}
		return p
	}

	m := tgbotapi.NewMessage(r.ChatID, r.Text)
	m.ParseMode = string(r.ParseMode)
	m.DisableWebPagePreview = true
	if markup != nil {
		m.ReplyMarkup = markup
	}
	return m
}

// replyMarkup picks the one markup a message can carry; inline buttons win
// over a reply keyboard.
func replyMarkup(r chat.Reply) any {
	if len(r.Inline) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(r.Inline))
		for _, row := range r.Inline {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				if b.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				} else {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
				}
			}
			rows = append(rows, buttons)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if r.Keyboard == nil {
		return nil
	}
	if r.Keyboard.Remove {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	rows := make([][]tgbotapi.KeyboardButton, 0, len(r.Keyboard.Rows))
	for _, row := range r.Keyboard.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}
