// Package i18n holds the console's user-facing text. Messages are keyed by
// their English form and registered in the golang.org/x/text catalog.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/callcenter-console/internal/models"
)

// Notification and prompt keys.
const (
	MsgConnectionFailed   = "Connection to the server failed"
	MsgUnexpectedResponse = "Unexpected server response"
	MsgCredentialsMissing = "Enter username and password"
	MsgWelcome            = "Welcome, %s"
	MsgSignedOut          = "Signed out"
	MsgUserFieldsMissing  = "Fill in username, password and full name"
	MsgInvalidRole        = "Unknown role %s"
	MsgNoUserSelected     = "No employee selected for editing"
	MsgUserCreated        = "Employee %s added"
	MsgUserUpdated        = "Employee %s updated"
	MsgUserDeleted        = "Employee deleted"
	MsgDeleteCancelled    = "Deletion cancelled"
	MsgConfirmDelete      = "Delete employee %s?"
	MsgNumberMissing      = "Enter a phone number"
	MsgCallPlaced         = "Calling %s"
	MsgCallEnded          = "Call %d ended"
	MsgCallNotActive      = "Call %d is not active"
	MsgLoadUsersFailed    = "Could not load employees: %s"
	MsgLoadCallsFailed    = "Could not load calls: %s"
	MsgUnassigned         = "Unassigned"
)

// Column and summary keys.
const (
	LabelActiveCalls     = "Active calls"
	LabelQueuedCalls     = "Queued calls"
	LabelCompletedCalls  = "Completed calls"
	LabelOperatorsOnline = "Operators online"
	LabelAvgDuration     = "Average duration"
	LabelID              = "ID"
	LabelUsername        = "Username"
	LabelPassword        = "Password"
	LabelFullName        = "Full name"
	LabelRole            = "Role"
	LabelStatus          = "Status"
	LabelExtension       = "Extension"
	LabelNumber          = "Number"
	LabelOperator        = "Operator"
	LabelDuration        = "Duration"
	LabelStarted         = "Started"
	LabelNotes           = "Notes"
)

var russian = map[string]string{
	MsgConnectionFailed:   "Ошибка подключения к серверу",
	MsgUnexpectedResponse: "Некорректный ответ сервера",
	MsgCredentialsMissing: "Введите логин и пароль",
	MsgWelcome:            "Добро пожаловать, %s",
	MsgSignedOut:          "Вы вышли из системы",
	MsgUserFieldsMissing:  "Заполните логин, пароль и ФИО",
	MsgInvalidRole:        "Неизвестная роль %s",
	MsgNoUserSelected:     "Сотрудник для редактирования не выбран",
	MsgUserCreated:        "Сотрудник %s добавлен",
	MsgUserUpdated:        "Данные сотрудника %s обновлены",
	MsgUserDeleted:        "Сотрудник удален",
	MsgDeleteCancelled:    "Удаление отменено",
	MsgConfirmDelete:      "Удалить сотрудника %s?",
	MsgNumberMissing:      "Введите номер телефона",
	MsgCallPlaced:         "Вызов %s",
	MsgCallEnded:          "Звонок %d завершен",
	MsgCallNotActive:      "Звонок %d не активен",
	MsgLoadUsersFailed:    "Не удалось загрузить сотрудников: %s",
	MsgLoadCallsFailed:    "Не удалось загрузить звонки: %s",
	MsgUnassigned:         "Не назначен",

	LabelActiveCalls:     "Активных звонков",
	LabelQueuedCalls:     "В очереди",
	LabelCompletedCalls:  "Завершено",
	LabelOperatorsOnline: "Операторов на линии",
	LabelAvgDuration:     "Средняя длительность",
	LabelID:              "ID",
	LabelUsername:        "Логин",
	LabelPassword:        "Пароль",
	LabelFullName:        "ФИО",
	LabelRole:            "Роль",
	LabelStatus:          "Статус",
	LabelExtension:       "Добавочный",
	LabelNumber:          "Номер",
	LabelOperator:        "Оператор",
	LabelDuration:        "Длительность",
	LabelStarted:         "Начало",
	LabelNotes:           "Заметки",

	roleKey(models.RoleOperator):   "Оператор",
	roleKey(models.RoleSuperAdmin): "Супер-админ",

	userStatusKey(models.UserStatusOnline):  "Онлайн",
	userStatusKey(models.UserStatusOffline): "Не в сети",
	userStatusKey(models.UserStatusBusy):    "Занят",
	userStatusKey(models.UserStatusBreak):   "Перерыв",

	callStatusKey(models.CallStatusActive):    "В процессе",
	callStatusKey(models.CallStatusCompleted): "Завершен",
	callStatusKey(models.CallStatusQueued):    "В очереди",

	sectionKey("dashboard"): "Дашборд",
	sectionKey("calls"):     "Звонки",
	sectionKey("employees"): "Сотрудники",
	sectionKey("reports"):   "Отчеты",
	sectionKey("clients"):   "Клиенты",
	sectionKey("settings"):  "Настройки",
}

var english = map[string]string{
	roleKey(models.RoleOperator):   "Operator",
	roleKey(models.RoleSuperAdmin): "Super admin",

	userStatusKey(models.UserStatusOnline):  "Online",
	userStatusKey(models.UserStatusOffline): "Offline",
	userStatusKey(models.UserStatusBusy):    "Busy",
	userStatusKey(models.UserStatusBreak):   "On break",

	callStatusKey(models.CallStatusActive):    "In progress",
	callStatusKey(models.CallStatusCompleted): "Completed",
	callStatusKey(models.CallStatusQueued):    "Queued",

	sectionKey("dashboard"): "Dashboard",
	sectionKey("calls"):     "Calls",
	sectionKey("employees"): "Employees",
	sectionKey("reports"):   "Reports",
	sectionKey("clients"):   "Clients",
	sectionKey("settings"):  "Settings",
}

func init() {
	for key, text := range russian {
		message.SetString(language.Russian, key, text)
	}
	for key, text := range english {
		message.SetString(language.English, key, text)
	}
}

func roleKey(r models.Role) string             { return "role." + string(r) }
func userStatusKey(s models.UserStatus) string { return "user_status." + string(s) }
func callStatusKey(s models.CallStatus) string { return "call_status." + string(s) }
func sectionKey(s string) string               { return "section." + s }

// Printer renders messages in one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a Printer for lang ("ru", "en", ...). Unknown or unsupported
// languages fall back to Russian.
func New(lang string) *Printer {
	tag := language.Russian
	if parsed, err := language.Parse(lang); err == nil {
		matcher := language.NewMatcher([]language.Tag{language.Russian, language.English})
		_, idx, conf := matcher.Match(parsed)
		if conf != language.No && idx == 1 {
			tag = language.English
		}
	}
	return &Printer{tag: tag, p: message.NewPrinter(tag)}
}

func (p *Printer) Language() language.Tag { return p.tag }

// Sprintf formats the message registered under key.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

func (p *Printer) Role(r models.Role) string {
	return p.label(roleKey(r), string(r))
}

func (p *Printer) UserStatus(s models.UserStatus) string {
	return p.label(userStatusKey(s), string(s))
}

func (p *Printer) CallStatus(s models.CallStatus) string {
	return p.label(callStatusKey(s), string(s))
}

func (p *Printer) Section(s string) string {
	return p.label(sectionKey(s), s)
}

// label returns the translation of key, or raw for values outside the catalog.
func (p *Printer) label(key, raw string) string {
	if out := p.p.Sprintf(key); out != key {
		return out
	}
	return raw
}
