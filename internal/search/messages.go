package search

import (
	"fmt"
	"time"

	kit "ticketbot/internal/transport"
)

// Reply-keyboard button labels. The router matches incoming text against
// these, so they live here rather than in the transport layer.
const (
	ButtonCancel = "Отмена"
	ButtonMore   = "Ещё один билет"
)

// ExampleRoute seeds the "try again like this" hints in user messages.
const ExampleRoute = "Минск Брест"

// ExampleLine renders a complete example request with today's date.
func ExampleLine(loc *time.Location) string {
	return fmt.Sprintf("%s %s 07:44", ExampleRoute, time.Now().In(loc).Format(DateLayout))
}

func kbCancel() [][]string     { return [][]string{{ButtonCancel}} }
func kbCancelMore() [][]string { return [][]string{{ButtonCancel, ButtonMore}} }

func htmlOpts(keys [][]string) *kit.SendOptions {
	return &kit.SendOptions{ParseMode: "HTML", ReplyKeys: keys}
}

func msgRouteError(detail, example string) string {
	return "❌ <b>Ошибка при поиске маршрута</b>\n\n" +
		"⚡ <b>Возможные причины:</b>\n" +
		"• Неправильно указаны станции\n" +
		"• Нет соединения между станциями\n" +
		"• Дата указана в прошлом\n\n" +
		"🔍 <b>Подробности ошибки:</b>\n" +
		detail + "\n\n" +
		"📝 <b>Попробуйте снова:</b>\n" +
		"<code>" + example + "</code>"
}

func msgTrainNotFound(req Request, example string) string {
	return "🚫 <b>Поезд не найден</b>\n\n" +
		fmt.Sprintf("Время <b>%s</b> не найдено для указанного маршрута.\n\n", req.Time) +
		"ℹ <b>Проверьте:</b>\n" +
		"• Неправильно указаны станции\n" +
		"• Доступность рейсов на выбранное время\n" +
		"• Формат времени (ЧЧ:ММ, 24-часовой)\n\n" +
		"🔹 <b>Пример запроса:</b>\n" +
		"<code>" + example + "</code>"
}

func msgServerUnavailable(req Request) string {
	return fmt.Sprintf("❌ Не удалось проверить билеты %s на %s %s. Сервер не отвечает.\n\nПопробуйте снова",
		req.Route(), req.Date, req.Time)
}

func msgConfirmed(req Request) string {
	return "🔍 <b>Начинаю поиск билетов</b>\n\n" +
		fmt.Sprintf("🚂 <b>Маршрут:</b> %s\n", req.Route()) +
		fmt.Sprintf("📅 <b>Дата:</b> %s\n", req.Date) +
		fmt.Sprintf("⏰ <b>Время:</b> %s\n\n", req.Time) +
		"Я сообщу вам сразу, как только билеты появятся в продаже.\n\n" +
		"❌ Для отмены поиска нажмите <b>Отмена</b>\n" +
		"➕ Для добавления нового поиска нажмите <b>Ещё один билет</b>"
}

func msgFound(req Request) string {
	return fmt.Sprintf("✅ Билет появился в продаже! %s %s %s", req.Route(), req.Date, req.Time)
}

func msgParamsWrong(req Request) string {
	return fmt.Sprintf("❌ Ошибка при проверке билетов %s. Неверно указаны станции или время.\n\nПопробуйте снова",
		req.Route())
}

func msgShutdown() string {
	return "⚠️ Бот перезапускается. Активные поиски остановлены — запустите их заново после перезапуска."
}
