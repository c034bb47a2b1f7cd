package app

import (
	"context"
	"fmt"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

// Telegram message texts for reservation lifecycle events. Delivery is
// best-effort; every helper here swallows lookup errors and sends nothing
// rather than failing the transaction that triggered it.

const meetingTimeLayout = "02.01.2006 15:04"

func directionText(d domain.Direction) string {
	if d == domain.DirectionBuy {
		return "Покупка"
	}
	return "Продажа"
}

func (s *ReservationService) notifyRequested(ctx context.Context, offer domain.Offer, res domain.Reservation) {
	name := s.requesterName(ctx, res.Requester)
	contact := ""
	if res.Requester.Anonymous() {
		contact = fmt.Sprintf("\n📞 Телефон: %s", res.Requester.Phone)
	}

	ownerMsg := fmt.Sprintf(`🔔 Ваше объявление зарезервировано!

Пользователь %s хочет связаться по объявлению:%s
📝 Тип: %s
💰 Сумма: %.2f USDT
💱 Курс: %.2f ₽
📍 Офис: %s
⏰ Время встречи: %s

Пожалуйста, приходите в офис в указанное время.`,
		name, contact, directionText(offer.Direction), offer.Amount, offer.Rate,
		res.MeetingOffice, res.SlotTime.Format(meetingTimeLayout))

	if owner, err := s.users.GetUser(ctx, offer.OwnerID); err == nil {
		s.notifier.Notify(ctx, owner.TelegramID, ownerMsg)
	} else {
		s.log.WithError(err).WithField("offer_id", offer.ID).Warn("owner lookup for notification failed")
	}

	adminMsg := fmt.Sprintf(`📅 Новая встреча!

👤 Клиент: %s
📝 Тип: %s
💰 Сумма: %.2f USDT
💱 Курс: %.2f ₽
📍 Офис: %s
⏰ Время встречи: %s
💵 Итого: %.2f ₽`,
		name, directionText(offer.Direction), offer.Amount, offer.Rate,
		res.MeetingOffice, res.SlotTime.Format(meetingTimeLayout), offer.Total())
	s.notifier.NotifyAdmins(ctx, adminMsg)
}

func (s *ReservationService) notifyResolved(ctx context.Context, offer domain.Offer, res domain.Reservation) {
	tid := s.requesterTelegramID(ctx, res.Requester)
	if tid == 0 {
		return
	}

	if res.Status == domain.ReservationStatusConfirmed {
		s.notifier.Notify(ctx, tid, fmt.Sprintf(`✅ Ваша заявка подтверждена!

📝 Тип: %s
💰 Сумма: %.2f USDT
💱 Курс: %.2f ₽
⏰ Время: %s

Ждём вас!`,
			directionText(offer.Direction), offer.Amount, offer.Rate,
			res.SlotTime.Format(meetingTimeLayout)))
		return
	}

	s.notifier.Notify(ctx, tid, `❌ Ваша заявка отклонена

Попробуйте выбрать другое время.`)
}

func (s *ReservationService) notifyExpired(ctx context.Context, res domain.Reservation) {
	tid := s.requesterTelegramID(ctx, res.Requester)
	if tid == 0 {
		return
	}
	s.notifier.Notify(ctx, tid, `⏱️ Время ожидания подтверждения истекло

Владелец объявления не подтвердил вашу заявку вовремя. Попробуйте выбрать другое время.`)
}

func (s *ReservationService) requesterName(ctx context.Context, r domain.Requester) string {
	if r.Anonymous() {
		return r.Name
	}
	u, err := s.users.GetUser(ctx, r.UserID)
	if err != nil {
		return "Пользователь"
	}
	return u.DisplayName()
}

// requesterTelegramID returns 0 for anonymous requesters and for registered
// users who never attached Telegram.
func (s *ReservationService) requesterTelegramID(ctx context.Context, r domain.Requester) int64 {
	if r.Anonymous() {
		return 0
	}
	u, err := s.users.GetUser(ctx, r.UserID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", r.UserID).Warn("requester lookup for notification failed")
		return 0
	}
	return u.TelegramID
}
