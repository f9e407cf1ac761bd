package noti

import (
	"context"
	"crudconsole/logger"
	"sync"
	"time"

	"github.com/fatih/structs"
	"github.com/getsentry/sentry-go"
)

const (
	KindError   = "error"
	KindSuccess = "success"
	KindWarning = "warning"
	KindInfo    = "info"
)

// Toast is a user facing notification.
type Toast struct {
	Kind       string    `json:"kind"`
	TitleKey   string    `json:"titleKey"`
	MessageKey string    `json:"messageKey"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"createdAt,omitnested"`
}

type Translator interface {
	Translate(lang string, key string) string
}

type languageKey struct{}

func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, languageKey{}, lang)
}

func LanguageFrom(ctx context.Context) string {
	lang, _ := ctx.Value(languageKey{}).(string)
	return lang
}

// Service creates toasts and hands them to a notifier. Delivery is fire and
// forget: a full buffer drops the toast.
type Service struct {
	mutex      sync.RWMutex
	notifier   Notifier
	events     chan *Event
	translator Translator
	closed     bool
}

func NewService(notifier Notifier, translator Translator) *Service {
	return &Service{notifier: notifier, events: Broadcast(notifier), translator: translator}
}

func (s *Service) Notifier() Notifier {
	return s.notifier
}

func (s *Service) CreateNotification(ctx context.Context, kind string, titleKey string, messageKey string) {
	toast := Toast{
		Kind:       kind,
		TitleKey:   titleKey,
		MessageKey: messageKey,
		Title:      titleKey,
		Message:    messageKey,
		Language:   LanguageFrom(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	if s.translator != nil {
		toast.Title = s.translator.Translate(toast.Language, titleKey)
		toast.Message = s.translator.Translate(toast.Language, messageKey)
	}

	converted := structs.New(toast)
	converted.TagName = "json"
	event := NewObjectEvent(converted.Map())

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		logger.Warn("Notification buffer is full, dropping '%s' toast '%s'", kind, messageKey)
	}
}

// NotifyError reports err to sentry and shows an error toast.
func (s *Service) NotifyError(ctx context.Context, err error, titleKey string, messageKey string) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	s.CreateNotification(ctx, KindError, titleKey, messageKey)
}

func (s *Service) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
