package server

import (
	"context"
	"crudconsole/logger"
	"crudconsole/server/auth"
	"crudconsole/server/crud"
	. "crudconsole/server/errors"
	"crudconsole/server/grid"
	"crudconsole/server/i18n"
	"crudconsole/server/journal"
	"crudconsole/server/noti"
	"crudconsole/server/orient"
	"crudconsole/server/rql"
	"crudconsole/utils"
	"encoding/json"
	"io/ioutil"
	"mime"
	"net/http"
	_ "net/http/pprof"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

type ctxKey string

const userKey ctxKey = "auth_user"

func userFrom(ctx context.Context) *auth.User {
	if user, ok := ctx.Value(userKey).(*auth.User); ok {
		return user
	}
	return &auth.User{}
}

type ConsoleApp struct {
	router        *httprouter.Router
	authenticator auth.Authenticator
	catalog       *i18n.Catalog
}

func GetApp(cs *ConsoleServer) *ConsoleApp {
	return &ConsoleApp{
		router:        httprouter.New(),
		authenticator: cs.authenticator,
		catalog:       cs.catalog,
	}
}

// ServeHTTP authenticates the request and stores the user and the toast
// language in the request context.
func (app *ConsoleApp) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	user, err := app.authenticator.Authenticate(req)
	if err != nil {
		returnError(w, err)
		return
	}

	ctx := context.WithValue(req.Context(), userKey, user)
	language := app.catalog.Match(user.Language, req.Header.Get("Accept-Language"))
	ctx = noti.WithLanguage(ctx, language)

	app.router.ServeHTTP(w, req.WithContext(ctx))
}

//Console server description
type ConsoleServer struct {
	addr, port, root string
	s                *http.Server
	authenticator    auth.Authenticator
	client           orient.Client
	notifications    *noti.Service
	catalog          *i18n.Catalog
	journal          journal.Journal
}

func New(host, port, urlPrefix string) *ConsoleServer {
	return &ConsoleServer{addr: host, port: port, root: urlPrefix}
}

func (cs *ConsoleServer) SetAddr(a string) {
	cs.addr = a
}

func (cs *ConsoleServer) SetPort(p string) {
	cs.port = p
}

func (cs *ConsoleServer) SetRoot(r string) {
	cs.root = r
}

func (cs *ConsoleServer) SetAuthenticator(authenticator auth.Authenticator) {
	cs.authenticator = authenticator
}

func (cs *ConsoleServer) SetClient(client orient.Client) {
	cs.client = client
}

func (cs *ConsoleServer) SetNotifications(notifications *noti.Service) {
	cs.notifications = notifications
}

func (cs *ConsoleServer) SetCatalog(catalog *i18n.Catalog) {
	cs.catalog = catalog
}

func (cs *ConsoleServer) SetJournal(linkJournal journal.Journal) {
	cs.journal = linkJournal
}

// setupDependencies builds from the config whatever was not set explicitly.
func (cs *ConsoleServer) setupDependencies(config *utils.AppConfig) {
	if cs.authenticator == nil {
		cs.authenticator = auth.GetAuthenticator(config)
	}
	if cs.client == nil {
		cs.client = orient.NewHTTPClient(config.OrientUrl, config.OrientDatabase, config.OrientUser, config.OrientPassword, config.OrientTimeout)
	}
	if cs.catalog == nil {
		catalog, err := i18n.LoadDir(config.I18nDir, config.DefaultLanguage)
		if err != nil {
			logger.Warn("Can't load translations from '%s': %s", config.I18nDir, err.Error())
			catalog = i18n.NewCatalog(config.DefaultLanguage)
		}
		cs.catalog = catalog
	}
	if cs.journal == nil {
		linkJournal, err := journal.Open(config.JournalDbUrl)
		if err != nil {
			logger.Error("Can't open link journal, journaling is disabled: %s", err.Error())
			linkJournal = journal.NoopJournal{}
		}
		cs.journal = linkJournal
	}
	if cs.notifications == nil {
		notifier, err := noti.NewNotifier(config.Notifier, config.NotifierArgs)
		if err != nil {
			logger.Error("Can't build '%s' notifier, falling back to LOG: %s", config.Notifier, err.Error())
			notifier, _ = noti.NewLogNotifier(nil)
		}
		cs.notifications = noti.NewService(notifier, cs.catalog)
	}
}

func (cs *ConsoleServer) Setup(config *utils.AppConfig) *http.Server {
	cs.setupDependencies(config)

	app := GetApp(cs)
	linker := grid.NewLinker(cs.client, cs.journal, config.GridMaxConcurrency)
	service := crud.NewService(cs.client, cs.notifications, linker, crud.Config{
		Grid:     grid.Options{BatchSize: config.GridBatchSize, MaxConcurrency: config.GridMaxConcurrency},
		Presence: grid.ParsePresence(config.FilterPresence),
	})

	//class operations
	app.router.GET(cs.root+"/meta/:class", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		if columns, err := service.Columns(r.Context(), p.ByName("class")); err == nil {
			sink.pushList(toList(columns), len(columns))
		} else {
			sink.pushError(err)
		}
	}))

	app.router.GET(cs.root+"/size/:class", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		if size, err := service.Size(r.Context(), p.ByName("class")); err == nil {
			sink.pushObj(size)
		} else {
			sink.pushError(err)
		}
	}))

	//grid operations
	pushPage := func(sink *JsonSink, page *crud.Page, q url.Values) {
		if q.Get("view") != "legacy" {
			sink.pushObj(page)
			return
		}
		rows := make([]interface{}, len(page.Rows))
		for i := range page.Rows {
			rows[i] = page.Rows[i].Legacy()
		}
		sink.pushList(rows, page.Total)
	}

	app.router.GET(cs.root+"/grid/:class", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		crudCtx := crud.NewContext(p.ByName("class"), userFrom(r.Context()))
		if page, err := service.Grid(r.Context(), crudCtx, q.Get("q")); err == nil {
			pushPage(sink, page, q)
		} else {
			sink.pushError(err)
		}
	}))

	app.router.POST(cs.root+"/grid/:class", CreateJsonAction(func(src *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		var request struct {
			Levels []grid.CrudLevel `json:"levels"`
			Query  string           `json:"q"`
		}
		if src != nil && len(src.body) > 0 {
			if err := json.Unmarshal(src.body, &request); err != nil {
				sink.pushError(NewValidationError(ErrBadRequest, "Wrong grid request: "+err.Error(), nil))
				return
			}
		}
		if request.Query == "" {
			request.Query = q.Get("q")
		}

		crudCtx := crud.NewContext(p.ByName("class"), userFrom(r.Context()))
		for _, level := range request.Levels {
			crudCtx = crudCtx.WithLevel(level)
		}
		if page, err := service.Grid(r.Context(), crudCtx, request.Query); err == nil {
			pushPage(sink, page, q)
		} else {
			sink.pushError(err)
		}
	}))

	//record operations
	app.router.GET(cs.root+"/data/:class/:rid", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		rid, err := orient.ParseRID(p.ByName("rid"))
		if err != nil {
			sink.pushError(err)
			return
		}
		if record, err := service.Get(r.Context(), p.ByName("class"), rid); err == nil {
			sink.pushObj(record)
		} else {
			sink.pushError(err)
		}
	}))

	app.router.POST(cs.root+"/data/:class", CreateJsonAction(func(src *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		if src == nil || src.single == nil {
			sink.pushError(NewValidationError(ErrBadRequest, "Record object expected", nil))
			return
		}
		crudCtx := crud.NewContext(p.ByName("class"), userFrom(r.Context()))
		if record, err := service.Create(r.Context(), crudCtx, grid.Row(src.single), q.Get("owner"), splitList(q["link"])); err == nil {
			sink.pushObj(record)
		} else {
			sink.pushError(err)
		}
	}))

	app.router.PATCH(cs.root+"/data/:class/:rid", CreateJsonAction(func(src *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		rid, err := orient.ParseRID(p.ByName("rid"))
		if err != nil {
			sink.pushError(err)
			return
		}
		if src == nil || src.single == nil {
			sink.pushError(NewValidationError(ErrBadRequest, "Record object expected", nil))
			return
		}
		if record, err := service.Update(r.Context(), p.ByName("class"), rid, grid.Row(src.single)); err == nil {
			sink.pushObj(record)
		} else {
			sink.pushError(err)
		}
	}))

	app.router.DELETE(cs.root+"/data/:class/:rid", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		rid, err := orient.ParseRID(p.ByName("rid"))
		if err != nil {
			sink.pushError(err)
			return
		}
		if err := service.Delete(r.Context(), p.ByName("class"), []orient.RID{rid}); err == nil {
			sink.pushObj(nil)
		} else {
			sink.pushError(err)
		}
	}))

	app.router.DELETE(cs.root+"/data/:class", CreateJsonAction(func(src *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		if src == nil {
			sink.pushError(NewValidationError(ErrBadRequest, "List of record identifiers expected", nil))
			return
		}
		rids, err := orient.ParseRIDs(src.GetData())
		if err != nil {
			sink.pushError(err)
			return
		}
		if err := service.Delete(r.Context(), p.ByName("class"), rids); err == nil {
			sink.pushObj(nil)
		} else {
			sink.pushError(err)
		}
	}))

	//console support
	app.router.GET(cs.root+"/notifications", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		memory, ok := cs.notifications.Notifier().(*noti.MemoryNotifier)
		if !ok {
			sink.pushList(nil, 0)
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		toasts := memory.Recent(limit)
		sink.pushList(toList(toasts), len(toasts))
	}))

	app.router.GET(cs.root+"/i18n/:lang", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		language := cs.catalog.Match(p.ByName("lang"))
		messages, _ := cs.catalog.Messages(language)
		sink.pushObj(map[string]interface{}{"language": language, "messages": messages})
	}))

	app.router.GET(cs.root+"/journal/:rid", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		rid, err := orient.ParseRID(p.ByName("rid"))
		if err != nil {
			sink.pushError(err)
			return
		}
		if entries, err := cs.journal.List(r.Context(), rid.String()); err == nil {
			sink.pushList(toList(entries), len(entries))
		} else {
			sink.pushError(err)
		}
	}))

	app.router.GET(cs.root+"/probe", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values, r *http.Request) {
		now := int(time.Now().Unix())
		probeData := map[string]interface{}{}
		probeData["status"] = "healthy"
		probeData["uptime"] = now - config.StartTime
		probeData["version"] = "unknown"

		if data, err := ioutil.ReadFile(config.WorkDir + "/VERSION"); err == nil {
			probeData["version"] = strings.TrimSpace(string(data))
		}
		sink.pushObj(probeData)
	}))

	if config.EnableProfiler {
		app.router.Handler(http.MethodGet, "/debug/pprof/:item", http.DefaultServeMux)
	}

	if !config.DisableSafePanicHandler {
		app.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, err interface{}) {
			user := userFrom(r.Context())

			hub := sentry.CurrentHub().Clone()
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetUser(sentry.User{ID: strconv.Itoa(user.Id), Username: user.Login})
				scope.SetRequest(r)
			})
			recovered, ok := err.(error)
			if !ok {
				recovered = errors.Errorf("%v", err)
			}
			hub.CaptureException(recovered)
			logger.Error("Panic while serving %s %s: %s", r.Method, r.URL.Path, recovered.Error())

			returnError(w, recovered)
		}
	}

	cs.s = &http.Server{
		Addr:           cs.addr + ":" + cs.port,
		Handler:        app,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return cs.s
}

func (cs *ConsoleServer) Close() {
	if cs.notifications != nil {
		cs.notifications.Close()
	}
	if cs.journal != nil {
		cs.journal.Close()
	}
}

func toList[T any](items []T) []interface{} {
	list := make([]interface{}, len(items))
	for i := range items {
		list[i] = items[i]
	}
	return list
}

// splitList accepts repeated and comma separated values.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	}
	return utils.Unique(result)
}

func CreateJsonAction(f func(*JsonSource, *JsonSink, httprouter.Params, url.Values, *http.Request)) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, req *http.Request, p httprouter.Params) {
		sink, _ := asJsonSink(w)
		src, e := (*httpRequest)(req).asJsonSource()

		if e != nil {
			returnError(w, e)
			return
		}

		query := make(url.Values)
		if err := parseQuery(query, req.URL.RawQuery); err != nil {
			returnError(w, NewValidationError(ErrBadRequest, err.Error(), nil))
			return
		}

		f(src, sink, p, query, req)
	}
}

func parseQuery(m url.Values, query string) (err error) {

	for query != "" {
		key := query
		if i := strings.IndexAny(key, "&;"); i >= 0 {
			key, query = key[:i], key[i+1:]
		} else {
			query = ""
		}
		if key == "" {
			continue
		}
		value := ""
		if i := strings.Index(key, "="); i >= 0 {
			key, value = key[:i], key[i+1:]
		}
		key, err1 := url.QueryUnescape(key)
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}
		if key != "q" {
			if unescaped, err1 := url.QueryUnescape(value); err1 == nil {
				value = unescaped
			}
		}

		m[key] = append(m[key], value)
		if key == "q" {
			m[key] = []string{strings.Join(m[key], ",")}
		}
	}
	return err
}

//Returns an error to HTTP response in JSON format.
//ServerError carries its own HTTP status. Database errors map not found to 404, bad identifiers to 400 and
//anything else the database rejects to 502. An unreachable link journal is a 502, other journal failures a 500. Other JsonError values are answered with 400, the rest with 500.
func returnError(w http.ResponseWriter, e interface{}) {
	w.Header().Set("Content-Type", "application/json")
	responseData := map[string]interface{}{"status": "FAIL"}

	if err, ok := e.(error); ok {
		e = errors.Cause(err)
	}

	switch e := e.(type) {
	case *auth.AuthError:
		w.WriteHeader(http.StatusUnauthorized)
		responseData["error"] = e.Serialize()
	case *ServerError:
		w.WriteHeader(e.Status)
		responseData["error"] = e.Serialize()
	case *orient.OrientError:
		switch e.Code {
		case orient.ErrOrientNotFound:
			w.WriteHeader(http.StatusNotFound)
		case orient.ErrOrientWrongRID, orient.ErrOrientWrongArgs:
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
		responseData["error"] = json.RawMessage(e.Json())
	case *journal.JournalError:
		var serverError *ServerError
		if e.Code() == journal.ErrJournalUnavailable {
			serverError = NewRemoteError(ErrRemoteFailure, e.Error(), "journal:"+e.Code())
		} else {
			serverError = NewFatalError(ErrInternal, e.Error(), "journal:"+e.Code())
		}
		w.WriteHeader(serverError.Status)
		responseData["error"] = serverError.Serialize()
	case *rql.RqlError:
		w.WriteHeader(http.StatusBadRequest)
		responseData["error"] = json.RawMessage(e.Json())
	case JsonError:
		w.WriteHeader(http.StatusBadRequest)
		responseData["error"] = json.RawMessage(e.Json())
	case error:
		w.WriteHeader(http.StatusInternalServerError)
		responseData["error"] = e.Error()
	default:
		w.WriteHeader(http.StatusInternalServerError)
		responseData["error"] = ErrInternal
	}
	//encoded
	encodedData, _ := json.Marshal(responseData)
	w.Write(encodedData)
}

//The source of JSON object. It contains a value of type map[string]interface{}.
type JsonSource struct {
	body   []byte
	single map[string]interface{}
	list   []interface{}
}

type httpRequest http.Request

func (js *JsonSource) GetData() interface{} {
	if js.list != nil && len(js.list) > 0 {
		return js.list
	} else {
		return js.single
	}
}

//Converts an HTTP request to the JsonSource if the request is valid and contains a valid JSON object or list in its body.
func (r *httpRequest) asJsonSource() (*JsonSource, error) {
	if r.Body != nil {
		smime := r.Header.Get(textproto.CanonicalMIMEHeaderKey("Content-Type"))

		if mm, _, e := mime.ParseMediaType(smime); e == nil && mm == "application/json" {
			var result JsonSource
			result.body, _ = ioutil.ReadAll(r.Body)

			if len(result.body) > 0 {
				if e := json.Unmarshal(result.body, &result.single); e != nil {
					if e = json.Unmarshal(result.body, &result.list); e != nil {
						return nil, &ServerError{Status: http.StatusBadRequest, Code: ErrBadRequest, Msg: "bad JSON", Data: e.Error()}
					}
				}
			}
			return &result, nil
		}
	}

	return nil, nil
}

//The JSON object sink into the HTTP response.
type JsonSink struct {
	rw     http.ResponseWriter
	Status string
}

//Converts http.ResponseWriter into JsonSink.
func asJsonSink(w http.ResponseWriter) (*JsonSink, error) {
	return &JsonSink{w, "OK"}, nil
}

//Push an error into JsonSink.
func (js *JsonSink) pushError(e error) {
	returnError(js.rw, e)
}

//Push an JSON object into JsonSink
func (js *JsonSink) pushObj(object interface{}) {
	responseData := map[string]interface{}{"status": js.Status}
	if object != nil {
		responseData["data"] = object
	}
	if encodedData, err := json.Marshal(responseData); err != nil {
		returnError(js.rw, err)
	} else {
		js.rw.Header().Set("Content-Type", "application/json")
		js.rw.WriteHeader(http.StatusOK)
		js.rw.Write(encodedData)
	}
}

func (js *JsonSink) pushList(objects []interface{}, total int) {
	responseData := map[string]interface{}{"status": js.Status}
	if objects == nil {
		objects = make([]interface{}, 0)
	}
	responseData["data"] = objects
	responseData["total_count"] = total

	if encodedData, err := json.Marshal(responseData); err != nil {
		returnError(js.rw, err)
	} else {
		js.rw.Header().Set("Content-Type", "application/json")
		js.rw.WriteHeader(http.StatusOK)
		js.rw.Write(encodedData)
	}
}
