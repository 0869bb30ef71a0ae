// Package chatbot is the site's scripted assistant: a static keyword
// decision table that answers with canned text and follow-up actions.
package chatbot

import (
	"fmt"
	"strings"
)

// ActionKind is what a suggested follow-up does on the site.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionCall     ActionKind = "call"
	ActionLink     ActionKind = "link"
)

// Topic names the group that produced a reply.
type Topic string

const (
	TopicSiteMap    Topic = "sitemap"
	TopicNavigate   Topic = "navigate"
	TopicBooking    Topic = "booking"
	TopicPricing    Topic = "pricing"
	TopicStaff      Topic = "staff"
	TopicPromotions Topic = "promotions"
	TopicReviews    Topic = "reviews"
	TopicContacts   Topic = "contacts"
	TopicHours      Topic = "hours"
	TopicEmergency  Topic = "emergency"
	TopicHelp       Topic = "help"
	TopicHome       Topic = "home"
	TopicFallback   Topic = "fallback"
	TopicWelcome    Topic = "welcome"
)

// Action is a suggested follow-up button.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Label  string     `json:"label"`
	Target string     `json:"target"`
}

// Reply is the bot's answer to one message.
type Reply struct {
	Topic   Topic    `json:"topic"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// Route is a navigation target on the site.
type Route struct {
	Path     string
	Label    string
	Keywords []string
}

// Routes are the pages the bot can send visitors to.
var Routes = []Route{
	{"/services", "Услуги", []string{"услуг", "лечени"}},
	{"/prices", "Цены", []string{"цен", "прайс", "стоимост"}},
	{"/doctors", "Врачи", []string{"врач", "доктор", "команд"}},
	{"/blog", "Блог", []string{"блог", "стать"}},
	{"/marketplace", "Магазин", []string{"магазин", "товар", "маркет"}},
	{"/loyalty", "Программа лояльности", []string{"лояльност", "подписк", "абонемент"}},
	{"/contacts", "Контакты", []string{"контакт"}},
	{"/portfolio", "Наши работы", []string{"портфолио", "работ", "до и после"}},
	{"/promotions", "Акции", []string{"акци"}},
	{"/faq", "Вопросы и ответы", []string{"faq", "вопрос"}},
	{"/reviews", "Отзывы", []string{"отзыв"}},
}

var navigationVerbs = []string{"перейти", "перейди", "открой", "открыть", "покажи", "показать", "страниц", "раздел"}

// Config holds clinic-specific contact details used in replies.
type Config struct {
	Phone   string
	ChatURL string
	Hours   string
}

type rule struct {
	topic    Topic
	keywords []string
	reply    func(b *Bot, msg string) Reply
}

// Bot answers messages from its decision table.
type Bot struct {
	cfg   Config
	rules []rule
}

// NewBot builds the decision table for cfg.
func NewBot(cfg Config) *Bot {
	if cfg.Hours == "" {
		cfg.Hours = "Пн–Пт с 9:00 до 20:00, Сб–Вс выходной"
	}
	b := &Bot{cfg: cfg}
	// Promotions are matched first so a mention of them wins over any other topic.
	b.rules = []rule{
		{TopicPromotions, []string{"акци", "скидк", "промокод", "спецпредложен"}, (*Bot).promotions},
		{TopicSiteMap, []string{"карта сайта", "карту сайта", "разделы сайта", "что есть на сайте", "все разделы"}, (*Bot).siteMap},
		{TopicNavigate, navigationVerbs, (*Bot).navigate},
		{TopicBooking, []string{"запис", "приём", "прием", "консультац", "визит"}, (*Bot).booking},
		{TopicPricing, []string{"цен", "стоимост", "сколько стоит", "прайс", "стоит"}, (*Bot).pricing},
		{TopicStaff, []string{"врач", "доктор", "специалист", "стоматолог", "хирург", "ортодонт"}, (*Bot).staff},
		{TopicReviews, []string{"отзыв", "мнени", "рекомендац"}, (*Bot).reviews},
		{TopicContacts, []string{"контакт", "адрес", "телефон", "где вы", "как добраться", "как доехать"}, (*Bot).contacts},
		{TopicHours, []string{"часы работы", "время работы", "режим работы", "график", "во сколько", "работаете", "открыты"}, (*Bot).hours},
		{TopicEmergency, []string{"болит", "боль", "срочно", "острая", "экстренн", "флюс", "опух", "кровоточ"}, (*Bot).emergency},
		{TopicHelp, []string{"помощ", "помоги", "что ты умеешь", "help", "привет", "здравствуй", "добрый день"}, (*Bot).help},
		{TopicHome, []string{"главн", "домой", "в начало"}, (*Bot).home},
	}
	return b
}

// Respond matches msg against the table; the first matching group wins.
func (b *Bot) Respond(msg string) Reply {
	text := strings.ToLower(strings.TrimSpace(msg))
	if text == "" {
		return b.fallback()
	}
	for _, r := range b.rules {
		if containsAny(text, r.keywords) {
			reply := r.reply(b, text)
			if reply.Topic != "" {
				return reply
			}
		}
	}
	return b.fallback()
}

// Welcome is the first message of a new conversation.
func (b *Bot) Welcome() Reply {
	return Reply{
		Topic:   TopicWelcome,
		Text:    "Здравствуйте! Я виртуальный помощник клиники. Помогу записаться на приём, узнать цены или найти нужный раздел сайта.",
		Actions: b.helpActions(),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func navigateTo(path, label string) Action {
	return Action{Kind: ActionNavigate, Label: label, Target: path}
}

func (b *Bot) callAction() Action {
	return Action{Kind: ActionCall, Label: "Позвонить", Target: "tel:" + b.cfg.Phone}
}

func (b *Bot) chatAction() (Action, bool) {
	if b.cfg.ChatURL == "" {
		return Action{}, false
	}
	return Action{Kind: ActionLink, Label: "Написать администратору", Target: b.cfg.ChatURL}, true
}

func (b *Bot) helpActions() []Action {
	actions := []Action{
		navigateTo("/appointment", "Записаться на приём"),
		navigateTo("/prices", "Цены"),
		navigateTo("/doctors", "Врачи"),
		b.callAction(),
	}
	if a, ok := b.chatAction(); ok {
		actions = append(actions, a)
	}
	return actions
}

func (b *Bot) siteMap(string) Reply {
	actions := make([]Action, 0, len(Routes))
	for _, r := range Routes {
		actions = append(actions, navigateTo(r.Path, r.Label))
	}
	return Reply{Topic: TopicSiteMap, Text: "Вот все разделы нашего сайта:", Actions: actions}
}

// navigate only answers when a known page is named; otherwise later groups get a chance.
func (b *Bot) navigate(msg string) Reply {
	for _, r := range Routes {
		if containsAny(msg, r.Keywords) {
			return Reply{
				Topic:   TopicNavigate,
				Text:    fmt.Sprintf("Открываю раздел «%s».", r.Label),
				Actions: []Action{navigateTo(r.Path, r.Label)},
			}
		}
	}
	return Reply{}
}

func (b *Bot) booking(string) Reply {
	return Reply{
		Topic:   TopicBooking,
		Text:    "Записаться можно онлайн: выберите услугу, удобные дату и время, и администратор перезвонит для подтверждения. Или позвоните нам.",
		Actions: []Action{navigateTo("/appointment", "Записаться онлайн"), b.callAction()},
	}
}

func (b *Bot) pricing(string) Reply {
	return Reply{
		Topic:   TopicPricing,
		Text:    "Актуальные цены на все услуги собраны в прайс-листе. Точная стоимость лечения определяется на консультации.",
		Actions: []Action{navigateTo("/prices", "Открыть прайс"), navigateTo("/appointment", "Записаться на консультацию")},
	}
}

func (b *Bot) staff(string) Reply {
	return Reply{
		Topic:   TopicStaff,
		Text:    "В клинике работают терапевты, хирурги, ортопеды и ортодонты. Познакомьтесь с нашими врачами.",
		Actions: []Action{navigateTo("/doctors", "Наши врачи"), navigateTo("/appointment", "Записаться к врачу")},
	}
}

func (b *Bot) promotions(string) Reply {
	return Reply{
		Topic:   TopicPromotions,
		Text:    "Сейчас в клинике действуют специальные предложения. Все актуальные акции и промокоды на странице акций.",
		Actions: []Action{navigateTo("/promotions", "Смотреть акции"), navigateTo("/appointment", "Записаться")},
	}
}

func (b *Bot) reviews(string) Reply {
	return Reply{
		Topic:   TopicReviews,
		Text:    "Почитайте, что говорят о нас пациенты, или оставьте свой отзыв.",
		Actions: []Action{navigateTo("/reviews", "Отзывы")},
	}
}

func (b *Bot) contacts(string) Reply {
	return Reply{
		Topic:   TopicContacts,
		Text:    fmt.Sprintf("Наш телефон: %s. Адрес и схема проезда на странице контактов.", b.cfg.Phone),
		Actions: []Action{navigateTo("/contacts", "Контакты"), b.callAction()},
	}
}

func (b *Bot) hours(string) Reply {
	return Reply{
		Topic:   TopicHours,
		Text:    "Мы работаем " + b.cfg.Hours + ".",
		Actions: []Action{navigateTo("/appointment", "Записаться"), b.callAction()},
	}
}

func (b *Bot) emergency(string) Reply {
	actions := []Action{b.callAction()}
	if a, ok := b.chatAction(); ok {
		actions = append(actions, a)
	}
	return Reply{
		Topic:   TopicEmergency,
		Text:    "Если у вас острая боль, позвоните нам: постараемся принять вас в тот же день.",
		Actions: actions,
	}
}

func (b *Bot) help(string) Reply {
	return Reply{
		Topic:   TopicHelp,
		Text:    "Я могу помочь записаться на приём, подсказать цены, рассказать о врачах, акциях и показать контакты клиники.",
		Actions: b.helpActions(),
	}
}

func (b *Bot) home(string) Reply {
	return Reply{Topic: TopicHome, Text: "Возвращаю на главную страницу.", Actions: []Action{navigateTo("/", "Главная")}}
}

func (b *Bot) fallback() Reply {
	return Reply{
		Topic:   TopicFallback,
		Text:    "Извините, я не совсем понял вопрос. Попробуйте переформулировать или выберите один из вариантов ниже.",
		Actions: b.helpActions(),
	}
}
