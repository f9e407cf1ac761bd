package noti

import (
	"bytes"
	"crudconsole/logger"
	"crudconsole/server/auth"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

var REST_REDELIVERY_PAUSE = 10 * time.Second
var REST_MAX_REDILIVERY_ATTEMPTS byte = 3

const (
	ErrRESTNoURLFound = "rest_no_url_found"
	ErrRESTFailedURL  = "rest_failed_url"
)

var restClient = &http.Client{
	Timeout: time.Second * 10,
}

type restNotifier struct {
	url string
}

func NewRestNotifier(args []string) (Notifier, error) {
	if len(args) < 1 {
		return nil, NewNotiError(ErrRESTNoURLFound, "Build a rest notifier failed. No URL found in arguments")
	}

	if _, err := url.ParseRequestURI(args[0]); err != nil {
		return nil, NewNotiError(ErrRESTFailedURL, "Build a rest notifier failed. Specified URL '%s' is bad: %s", args[0], err.Error())
	}
	return &restNotifier{url: args[0]}, nil
}

func (rn *restNotifier) redelivery(body []byte, attempt byte) {
	timer := time.NewTimer(REST_REDELIVERY_PAUSE)
	logger.Info("Scheduled '%d' attempt of re-delivery notification for '%s' URL in %s", attempt, rn.url, REST_REDELIVERY_PAUSE)
	<-timer.C
	logger.Info("Setup '%d' attempt of re-delivery notification for '%s' URL", attempt, rn.url)

	tryAgain := func() {
		if attempt < REST_MAX_REDILIVERY_ATTEMPTS {
			go rn.redelivery(body, attempt+1)
		} else {
			logger.Error("Can't schedule re-delivery for '%s' URL. Achieved max re-delivery attempts '%d'", rn.url, REST_MAX_REDILIVERY_ATTEMPTS)
		}
	}
	if !rn.deliver(body) {
		tryAgain()
	}
}

func (rn *restNotifier) deliver(body []byte) bool {
	resp, err := postCallbackData(rn.url, bytes.NewReader(body))
	if err != nil {
		logger.Error("Error sending notification: %s", err.Error())
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Error("Received an invalid response code '%d' from the '%s' notified server", resp.StatusCode, rn.url)
		return false
	}
	return true
}

func (rn *restNotifier) start(in chan *Event) {
	for event := range in {
		body, _ := json.Marshal(event.Obj())
		if !rn.deliver(body) {
			go rn.redelivery(body, 1)
		}
	}
}

func (rn *restNotifier) NewNotification() chan *Event {
	// Use buffer to reduce the effect of network latency on process
	in := make(chan *Event, 100)
	go rn.start(in)
	return in
}

func postCallbackData(url string, body io.Reader) (*http.Response, error) {
	callbackRequest, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	callbackRequest.Header.Add("Content-Type", "application/json")

	if serviceToken, err := auth.GetServiceToken(); err == nil {
		callbackRequest.Header.Add("Authorization", "Service "+serviceToken)
	}

	return restClient.Do(callbackRequest)
}
