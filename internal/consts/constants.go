package consts

import "time"

// Tariff names
const (
	TariffSolo = "solo"
	TariffLong = "long"
	TariffPair = "pair"
)

// Tariff describes a pricing/duration plan
type Tariff struct {
	Price float64
	Days  int
	Label string
}

// Tariffs holds every plan the bot sells
var Tariffs = map[string]Tariff{
	TariffSolo: {Price: 120, Days: 30, Label: "Обычная подписка — 1 месяц / 120₽"},
	TariffLong: {Price: 500, Days: 180, Label: "Подписка на 6 месяцев / 500₽"},
	TariffPair: {Price: 200, Days: 30, Label: "Парная подписка — 2 подключения / 200₽"},
}

// Referral discount thresholds, in referral count
const (
	DiscountFreeThreshold    = 21 // 100% off
	DiscountQuarterThreshold = 10 // 25% off
	DiscountTenthThreshold   = 5  // 10% off
)

// Subscription lifecycle parameters
const (
	TrialDays          = 3
	TrialCooldownDays  = 180
	ReferralBonusDays  = 5
	PaymentPollTries   = 10
	PaymentPollTimeout = 30 * time.Second
)

// Panel port range for new inbounds
const (
	PortRangeLow    = 50102
	PortRangeHigh   = 52999
	PortPickRetries = 20
)

// Button Labels
const (
	ButtonStart        = "🔥НАЧАТЬ🔥"
	ButtonInstruction  = "⁉️ИНСТРУКЦИЯ ПО ПОДКЛЮЧЕНИЮ⁉️"
	ButtonDiscounts    = "⚡️Система скидок⚡️"
	ButtonReferralLink = "🔗Реферальная ссылка🔗"
	ButtonBuy          = "🖤ПРИОБРЕСТИ ПОДПИСКУ🖤"
	ButtonBroadcast    = "💬Сообщение всем пользователям"
	ButtonDirect       = "❗️Сообщение пользователю"
	ButtonSweep        = "🔍Проверка подписок"
	ButtonBack         = "Назад 🔙️"
)

// Callback data keys for the inline keyboards
const (
	CallbackBroadcast    = "send_all"
	CallbackDirect       = "send_user"
	CallbackSweep        = "to_check"
	CallbackReferralLink = "our_reff_link"
	CallbackBackToMenu   = "back_to_menu"
)

// User-facing messages
const (
	MsgWelcome = "🔥 Добро пожаловать в BlackGate 🔥\n" +
		"Забудьте про блокировки. Теперь всё работает — всегда и везде.\n" +
		"Что умеет BlackGate:\n" +
		" 💳  Все банки открываются как часы\n" +
		" 📺  YouTube и стримы — без тормозов, рекламы и ограничений\n" +
		" 🧾  Госуслуги? Без проблем\n" +
		" 😮  Никаких ручных включений — работает фоном 24/7\n" +
		" ❗️ Неважно где вы — интернет всегда как дома"

	MsgSubExpiresToday   = "Здравствуйте, сегодня заканчивается подписка на VPN🖤"
	MsgTrialExpiresToday = "⚠️ Сегодня заканчивается пробный период. Чтобы продолжить пользоваться VPN, оплатите подписку."
	MsgPaymentTimeout    = "⏳ Оплата не завершена."
	MsgPairFailed        = "❌ Не удалось создать парную подписку."
	MsgRenewFailed       = "❌ Не удалось продлить VPN-доступ."
	MsgCreateFailed      = "❌ Не удалось создать подключение."
	MsgNotAdmin          = "У вас нет прав на использование этой команды."
	MsgNoSubscription    = "😔 У вас нет активной подписки."
	MsgRefLinkInactive   = "⚠️ Реферальная ссылка доступна только при активной подписке.\n"

	SupportHandle = "@BlackGateSupp"
)

// Static info pages linked from the start keyboard
const (
	InstructionURL = "https://telegra.ph/Instrukciya-po-podklyucheniyu-BlackGate-VPN-01-01"
	DiscountsURL   = "https://telegra.ph/Sistema-skidok-BlackGate-VPN-01-01"
)

// Date layouts accepted by the subscription store, first one is canonical
var DateLayouts = []string{"02.01.2006", "2006-01-02", "02/01/2006"}
