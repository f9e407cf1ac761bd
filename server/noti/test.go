package noti

type TestNotifier struct {
	Events chan *Event
}

func NewTestNotifier(args []string) (Notifier, error) {
	return &TestNotifier{Events: make(chan *Event, 100)}, nil
}

func (tn *TestNotifier) NewNotification() chan *Event {
	return tn.Events
}
