package telegram

import (
	"fmt"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nikkes174/VPNBot/internal/consts"
)

// pageURL builds a site link carrying the user identity, since the pages
// have no session of their own.
func (b *Bot) pageURL(path string, userID int64, username string) string {
	return fmt.Sprintf("%s%s?user_id=%d&username=%s", b.config.BaseURL, path, userID, url.QueryEscape(username))
}

// startKeyboard is the onboarding menu shown after /start. The main button
// opens the trial page, the rest are info links plus the referral-link
// callback.
func (b *Bot) startKeyboard(userID int64, username string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(consts.ButtonStart, b.pageURL("/trial", userID, username)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(consts.ButtonInstruction, consts.InstructionURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(consts.ButtonDiscounts, consts.DiscountsURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonReferralLink, consts.CallbackReferralLink),
		),
	)
}

// adminKeyboard is the /admin_panel menu.
func (b *Bot) adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonBroadcast, consts.CallbackBroadcast),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonDirect, consts.CallbackDirect),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonSweep, consts.CallbackSweep),
		),
	)
}

// payKeyboard leads an expiring user to the payment page.
func (b *Bot) payKeyboard(userID int64, username string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(consts.ButtonBuy, b.pageURL("/payment", userID, username)),
		),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(consts.ButtonBack, consts.CallbackBackToMenu),
		),
	)
}
