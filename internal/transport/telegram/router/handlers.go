package router

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"ticketbot/internal/search"
	kit "ticketbot/internal/transport"
	logx "ticketbot/pkg/logx"
)

func (r *Router) reply(ctx context.Context, chatID int64, text string, keys [][]string, removeKeys bool) error {
	return r.notify.Notify(ctx, kit.Notification{
		Target: kit.ChatTarget{ChatID: chatID},
		Text:   text,
		Options: &kit.SendOptions{
			ParseMode:  "HTML",
			ReplyKeys:  keys,
			RemoveKeys: removeKeys,
		},
	})
}

func (r *Router) example() string {
	return search.ExampleLine(r.reg.Config().Location)
}

func kbCancel() [][]string { return [][]string{{search.ButtonCancel}} }

func (r *Router) handleStart(ctx context.Context, req *Request) error {
	r.log.Info("user started bot",
		logx.Int64("user_id", req.Msg.FromID),
		logx.String("username", req.Msg.FromUsername),
		logx.Int64("chat_id", req.Msg.ChatID))
	text := "🚂 <b>Поиск железнодорожных билетов</b>\n\n" +
		"📝 <b>Введите данные в формате:</b>\n" +
		"<code>Откуда  Куда  Дата  Время</code>\n\n" +
		"📅 <b>Дата:</b> ГГГГ-ММ-ДД\n" +
		"⏰ <b>Время:</b> ЧЧ:ММ (24-часовой формат)\n\n" +
		"🔹 <b>Пример:</b>\n" +
		"<code>" + r.example() + "</code>\n\n"
	return r.reply(ctx, req.Msg.ChatID, text, nil, false)
}

func (r *Router) handleActive(ctx context.Context, req *Request) error {
	active := r.reg.Active(req.Msg.FromID)
	if len(active) == 0 {
		return r.reply(ctx, req.Msg.ChatID, "У вас нет активных поисков.", nil, false)
	}
	var b strings.Builder
	b.WriteString("🔍 <b>Активные поиски:</b>\n\n")
	for _, a := range active {
		fmt.Fprintf(&b, "• %s %s %s\n", a.Route(), a.Date, a.Time)
	}
	return r.reply(ctx, req.Msg.ChatID, b.String(), nil, false)
}

func (r *Router) handleCancel(ctx context.Context, req *Request) error {
	n := r.reg.CancelAll(ctx, req.Msg.FromID)
	r.log.Debug("user cancelled searches",
		logx.Int64("user_id", req.Msg.FromID),
		logx.Int("count", n))
	text := fmt.Sprintf("❌ <b>Отменено %d поиск(а)</b>\n\n", n) +
		"Чтобы начать новый поиск, введите:\n" +
		"<code>Откуда Куда Дата Время</code>\n\n" +
		"🔹 <b>Пример:</b>\n" +
		"<code>" + r.example() + "</code>\n\n" +
		"Или нажмите /start для справки"
	return r.reply(ctx, req.Msg.ChatID, text, nil, true)
}

func (r *Router) handleMore(ctx context.Context, req *Request) error {
	text := "📝 <b>Введите данные в формате:</b>\n" +
		"<code>Откуда  Куда  Дата  Время</code>\n\n" +
		"📅 <b>Дата:</b> ГГГГ-ММ-ДД\n" +
		"⏰ <b>Время:</b> ЧЧ:ММ (24-часовой формат)\n\n" +
		"🔹 <b>Пример:</b>\n" +
		"<code>" + r.example() + "</code>\n\n"
	return r.reply(ctx, req.Msg.ChatID, text, nil, false)
}

func (r *Router) handleSubmit(ctx context.Context, req *Request) error {
	sr, err := search.ParseRequest(req.Msg.Text)
	if err != nil {
		return r.rejectInput(ctx, req, err)
	}
	now := time.Now().In(r.reg.Config().Location)
	if err := search.ValidateTiming(sr, now); err != nil {
		return r.rejectInput(ctx, req, err)
	}

	sr.ChatID = req.Msg.ChatID
	sr.UserID = req.Msg.FromID
	sr.Username = req.Msg.FromUsername

	_, err = r.reg.Submit(ctx, sr)
	switch {
	case errors.Is(err, search.ErrLimitExceeded):
		text := fmt.Sprintf("⚠️ <b>Достигнут лимит активных поисков (%d)</b>\n\n", r.reg.Config().MaxPerUser) +
			"Отмените текущие поиски кнопкой <b>Отмена</b> или дождитесь их завершения."
		return r.reply(ctx, req.Msg.ChatID, text, kbCancel(), false)
	case errors.Is(err, search.ErrShuttingDown):
		return r.reply(ctx, req.Msg.ChatID, "⚠️ Бот останавливается. Попробуйте снова через минуту.", nil, true)
	case err != nil:
		return err
	}
	// The worker's initial check replies with either a confirmation or a
	// concrete error, so nothing to say here.
	return nil
}

func (r *Router) rejectInput(ctx context.Context, req *Request, err error) error {
	var ierr *search.InputError
	if !errors.As(err, &ierr) {
		return err
	}
	r.log.Debug("input rejected",
		logx.Int64("user_id", req.Msg.FromID),
		logx.String("reason", ierr.Reason))

	var text string
	switch ierr.Kind {
	case search.BadShape:
		text = "❌ <b>Ошибка ввода данных</b>\n\n" +
			"Вы ввели неверное количество параметров:\n" +
			"<code>" + html.EscapeString(req.Msg.Text) + "</code>\n\n" +
			"📝 <b>Требуемый формат:</b>\n" +
			"<code>Откуда  Куда  Дата  Время</code>\n\n" +
			"🔹 <b>Пример правильного ввода:</b>\n" +
			"<code>" + r.example() + "</code>\n\n" +
			"📅 Дата в формате: <b>ГГГГ-ММ-ДД</b>\n" +
			"⏰ Время в формате: <b>ЧЧ:ММ</b>"
	case search.BadSyntax:
		text = "❌ <b>Неверный формат даты или времени</b>\n\n" +
			"📝 <b>Попробуйте снова:</b>\n" +
			"<code>" + r.example() + "</code>"
	default: // PastDeparture
		text = "❌ <b>Ошибка при поиске маршрута</b>\n\n" +
			"⚡ <b>Возможные причины:</b>\n" +
			"• Неправильно указано время\n" +
			"• Время указано в прошлом\n" +
			"📝 <b>Попробуйте снова:</b>\n" +
			"<code>" + r.example() + "</code>"
	}
	return r.reply(ctx, req.Msg.ChatID, text, kbCancel(), false)
}
