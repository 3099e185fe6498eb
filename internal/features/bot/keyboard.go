package bot

import (
	"tipjar-backend/internal/i18n"
	"tipjar-backend/internal/platform/telegram"
)

// button resolves one inline button; the dotted key doubles as the callback
// payload, exactly what the callback router splits back apart.
func button(catalog *i18n.Catalog, lang, key string) telegram.Button {
	return telegram.Button{
		Label: catalog.String(lang, key, nil),
		Data:  key,
	}
}

// replyMenu is the persistent 2x2 main menu.
func replyMenu(catalog *i18n.Catalog, lang string) [][]string {
	return [][]string{
		{
			catalog.String(lang, "buttons.menu.balance", nil),
			catalog.String(lang, "buttons.menu.deposit", nil),
		},
		{
			catalog.String(lang, "buttons.menu.withdraw", nil),
			catalog.String(lang, "buttons.menu.help", nil),
		},
	}
}

// confirmButtons is the confirm/decline pair for a flow section.
func confirmButtons(catalog *i18n.Catalog, lang, section string) [][]telegram.Button {
	return [][]telegram.Button{{
		button(catalog, lang, "buttons."+section+".confirm"),
		button(catalog, lang, "buttons."+section+".decline"),
	}}
}

func disclaimerButtons(catalog *i18n.Catalog, lang string) [][]telegram.Button {
	return [][]telegram.Button{
		{button(catalog, lang, "buttons.disclaimer.accept")},
		{button(catalog, lang, "buttons.disclaimer.decline")},
	}
}

func helpButtons(catalog *i18n.Catalog, lang string) [][]telegram.Button {
	return [][]telegram.Button{
		{button(catalog, lang, "buttons.help.get_started")},
		{button(catalog, lang, "buttons.help.disclaimer")},
		{button(catalog, lang, "buttons.help.how_to_deposit")},
		{button(catalog, lang, "buttons.help.how_to_withdrawal")},
		{button(catalog, lang, "buttons.help.how_to_check_balance")},
		{button(catalog, lang, "buttons.help.about_us")},
	}
}

func returnButton(catalog *i18n.Catalog, lang, section string) [][]telegram.Button {
	return [][]telegram.Button{{
		button(catalog, lang, "buttons."+section+".return"),
	}}
}
