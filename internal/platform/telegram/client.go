package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "tipjar-backend/internal/common/errors"
)

// Button is one inline keyboard button: a visible label and the callback
// payload delivered back when it is pressed.
type Button struct {
	Label string
	Data  string
}

// Client handles all communication with the Telegram Bot API.
type Client struct {
	api *tgbotapi.BotAPI
}

func NewClient(token string, debug bool) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, apperrors.NewTelegramAPIError("connect", err)
	}
	api.Debug = debug

	return &Client{api: api}, nil
}

// Username returns the bot's own username, without the leading @.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendText sends a plain text message.
func (c *Client) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.api.Send(msg); err != nil {
		return apperrors.NewTelegramAPIError("sendMessage", err)
	}
	return nil
}

// SendKeyboard sends a text message with a persistent reply keyboard.
func (c *Client) SendKeyboard(chatID int64, text string, rows [][]string) error {
	keyboard := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboard = append(keyboard, buttons)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	markup := tgbotapi.NewReplyKeyboard(keyboard...)
	markup.OneTimeKeyboard = false
	markup.ResizeKeyboard = true
	msg.ReplyMarkup = markup

	if _, err := c.api.Send(msg); err != nil {
		return apperrors.NewTelegramAPIError("sendMessage", err)
	}
	return nil
}

// SendInline sends a text message with an inline keyboard attached.
func (c *Client) SendInline(chatID int64, text string, rows [][]Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = inlineMarkup(rows)

	if _, err := c.api.Send(msg); err != nil {
		return apperrors.NewTelegramAPIError("sendMessage", err)
	}
	return nil
}

// EditMessage replaces the text (and inline keyboard, when rows is not nil)
// of a previously sent message.
func (c *Client) EditMessage(chatID int64, messageID int, text string, rows [][]Button) error {
	var edit tgbotapi.Chattable
	if rows != nil {
		markup := inlineMarkup(rows)
		msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
		edit = msg
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}

	if _, err := c.api.Send(edit); err != nil {
		return apperrors.NewTelegramAPIError("editMessageText", err)
	}
	return nil
}

// MemberStatus returns the member status ("creator", "administrator",
// "member", ...) of a user within a chat.
func (c *Client) MemberStatus(chatID, userID int64) (string, error) {
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return "", apperrors.NewTelegramAPIError("getChatMember", err)
	}
	return member.Status, nil
}

func inlineMarkup(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}
