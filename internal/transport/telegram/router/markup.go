package router

import (
	tele "gopkg.in/telebot.v4"

	"castbot/internal/services/schedule"
	kit "castbot/internal/transport"
	"castbot/pkg/tgui"
)

// markupFor renders a dialog view's button grid as send options carrying an
// inline keyboard. Views without buttons render as plain text (nil options).
func markupFor(v schedule.View) *kit.SendOptions {
	if len(v.Rows) == 0 {
		return nil
	}
	kb := tgui.NewInline()
	for _, row := range v.Rows {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgui.Btn(b.Label, tgui.Data(callbackScope, string(b.Action), b.Payload)))
		}
		kb.Row(btns...)
	}
	return &kit.SendOptions{ReplyMarkupAdapter: kb.Markup()}
}
