package noti

import (
	"crudconsole/logger"
)

type logNotifier struct{}

func NewLogNotifier(args []string) (Notifier, error) {
	return &logNotifier{}, nil
}

func (ln *logNotifier) start(in chan *Event) {
	for event := range in {
		obj := event.Obj()
		switch obj["kind"] {
		case KindError:
			logger.Error("Notification [%v] %v: %v", obj["titleKey"], obj["title"], obj["message"])
		case KindWarning:
			logger.Warn("Notification [%v] %v: %v", obj["titleKey"], obj["title"], obj["message"])
		default:
			logger.Info("Notification [%v] %v: %v", obj["titleKey"], obj["title"], obj["message"])
		}
	}
}

func (ln *logNotifier) NewNotification() chan *Event {
	in := make(chan *Event, 100)
	go ln.start(in)
	return in
}
