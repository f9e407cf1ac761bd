package server_test

import (
	"bytes"
	"context"
	"crudconsole/server"
	"crudconsole/server/auth"
	"crudconsole/server/i18n"
	"crudconsole/server/journal"
	"crudconsole/server/noti"
	"crudconsole/server/orient"
	"crudconsole/server/orient/orienttest"
	"crudconsole/utils"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type failingJournal struct {
	code string
}

func (j failingJournal) Record(ctx context.Context, entry journal.Entry) error {
	return journal.NewJournalError(j.code, "journal is down")
}

func (j failingJournal) List(ctx context.Context, createdRid string) ([]journal.Entry, error) {
	return nil, journal.NewJournalError(j.code, "journal is down")
}

func (j failingJournal) Close() error { return nil }

var _ = Describe("Server", func() {
	var (
		httpServer    *http.Server
		recorder      *httptest.ResponseRecorder
		client        *orienttest.Client
		memory        *noti.MemoryNotifier
		notifications *noti.Service
		linkJournal   *journal.MemoryJournal
	)

	appConfig := &utils.AppConfig{
		UrlPrefix:          "/console",
		GridBatchSize:      10,
		GridMaxConcurrency: 2,
		DefaultLanguage:    "en",
		StartTime:          0,
	}

	request := func(method string, path string, body interface{}) map[string]interface{} {
		var reader *bytes.Buffer
		if body != nil {
			encoded, _ := json.Marshal(body)
			reader = bytes.NewBuffer(encoded)
		} else {
			reader = bytes.NewBuffer(nil)
		}
		req, _ := http.NewRequest(method, appConfig.UrlPrefix+path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
		httpServer.Handler.ServeHTTP(recorder, req)

		var decoded map[string]interface{}
		Expect(json.Unmarshal(recorder.Body.Bytes(), &decoded)).To(Succeed())
		return decoded
	}

	BeforeEach(func() {
		client = orienttest.NewClient()
		client.Classes["Customer"] = &orient.ClassInfo{Name: "Customer", Properties: []orient.Property{
			{Name: "name", Type: "STRING"},
			{Name: "users", Type: "LINKSET", LinkedClass: "OUser"},
		}}
		client.Classes["OUser"] = &orient.ClassInfo{Name: "OUser", Properties: []orient.Property{
			{Name: "name", Type: "STRING"},
			{Name: "customer", Type: "LINK", LinkedClass: "Customer"},
		}}
		client.Titles["OUser"] = "name"
		client.Add("#5:0", "OUser", orient.Record{"name": "admin"})
		client.Add("#5:1", "OUser", orient.Record{"name": "reader"})
		client.Add("#12:0", "Customer", orient.Record{"name": "Acme", "users": []interface{}{"#5:0", "#5:1"}})

		catalog := i18n.NewCatalog("en")
		catalog.Add("ru", map[string]interface{}{"SUCCESS": "Успешно"})

		notifier, _ := noti.NewNotifier("MEMORY", nil)
		memory = notifier.(*noti.MemoryNotifier)
		notifications = noti.NewService(memory, catalog)
		linkJournal = &journal.MemoryJournal{}

		srv := server.New("localhost", "8081", appConfig.UrlPrefix)
		srv.SetAuthenticator(&auth.EmptyAuthenticator{})
		srv.SetClient(client)
		srv.SetCatalog(catalog)
		srv.SetNotifications(notifications)
		srv.SetJournal(linkJournal)
		httpServer = srv.Setup(appConfig)
		recorder = httptest.NewRecorder()
	})

	AfterEach(func() {
		notifications.Close()
	})

	It("returns the columns of a class", func() {
		body := request("GET", "/meta/Customer", nil)

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(body["status"]).To(Equal("OK"))
		Expect(body["data"]).To(HaveLen(2))
	})

	It("returns the size of a class", func() {
		body := request("GET", "/size/OUser", nil)

		Expect(body["data"]).To(BeEquivalentTo(2))
	})

	It("answers 404 for unknown classes", func() {
		body := request("GET", "/meta/Missing", nil)

		Expect(recorder.Code).To(Equal(http.StatusNotFound))
		Expect(body["status"]).To(Equal("FAIL"))
		Expect(body["error"].(map[string]interface{})["code"]).To(Equal("orient:not_found"))
	})

	It("lists a grid with resolved links", func() {
		body := request("GET", "/grid/Customer", nil)

		Expect(recorder.Code).To(Equal(http.StatusOK))
		page := body["data"].(map[string]interface{})
		rows := page["rows"].([]interface{})
		Expect(rows).To(HaveLen(1))
		links := rows[0].(map[string]interface{})["links"].(map[string]interface{})
		Expect(links["users"].(map[string]interface{})["display"]).To(Equal([]interface{}{"admin", "reader"}))
	})

	It("lists a grid in the legacy shape", func() {
		body := request("GET", "/grid/Customer?view=legacy", nil)

		rows := body["data"].([]interface{})
		users := rows[0].(map[string]interface{})["users"].(map[string]interface{})
		Expect(users["0"]).To(Equal("admin"))
		Expect(users["_1"]).To(Equal("#5:1"))
		Expect(users["type"]).To(Equal("LINKSET"))
	})

	It("filters a drilled down grid", func() {
		client.Add("#40:0", "MetaDataPropertyBindingParameter", orient.Record{"fromProperty": "customer", "toProperty": "name", "operator": "="})

		request("POST", "/grid/Customer", map[string]interface{}{
			"levels": []interface{}{map[string]interface{}{
				"className": "OUser",
				"linksetProperty": map[string]interface{}{
					"bingingProperties": map[string]interface{}{"a": "#40:0"},
					"data":              map[string]interface{}{"name": "Acme"},
				},
			}},
			"q": "sort(-name)",
		})

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(client.Queries).To(ContainElement("SELECT FROM OUser WHERE customer.name = 'Acme' ORDER BY name DESC"))
	})

	It("answers 400 on wrong RQL", func() {
		body := request("GET", "/grid/Customer?q=eq(phone,1)", nil)

		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		Expect(body["error"].(map[string]interface{})["code"]).To(HavePrefix("rql:"))
	})

	It("reads a record by identifier", func() {
		body := request("GET", "/data/Customer/12:0", nil)

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(body["data"].(map[string]interface{})["name"]).To(Equal("Acme"))
	})

	It("creates a record, links it back and shows a localized toast", func() {
		body := request("POST", "/data/Customer?owner=customer&link=users", map[string]interface{}{
			"name":  "Globex",
			"users": []interface{}{"#5:0"},
		})

		Expect(recorder.Code).To(Equal(http.StatusOK))
		rid := body["data"].(map[string]interface{})["@rid"].(string)
		Expect(client.Record("#5:0")["customer"]).To(Equal(rid))

		entries, _ := linkJournal.List(context.Background(), rid)
		Expect(entries).To(HaveLen(1))

		Eventually(func() []map[string]interface{} { return memory.Recent(0) }).Should(HaveLen(1))
		Expect(memory.Recent(0)[0]["title"]).To(Equal("Успешно"))
		Expect(memory.Recent(0)[0]["language"]).To(Equal("ru"))
	})

	It("lists journal entries and notifications", func() {
		request("POST", "/data/Customer?owner=customer&link=users", map[string]interface{}{"users": []interface{}{"#5:1"}})
		Eventually(func() []map[string]interface{} { return memory.Recent(0) }).Should(HaveLen(1))

		recorder = httptest.NewRecorder()
		body := request("GET", "/notifications", nil)
		Expect(body["data"]).To(HaveLen(1))

		recorder = httptest.NewRecorder()
		body = request("GET", "/journal/30:0", nil)
		Expect(body["data"]).To(HaveLen(1))
		Expect(body["data"].([]interface{})[0].(map[string]interface{})["targetRid"]).To(Equal("#5:1"))
	})

	It("updates a record", func() {
		request("PATCH", "/data/Customer/12:0", map[string]interface{}{"name": "Acme Corp"})

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(client.Record("#12:0")["name"]).To(Equal("Acme Corp"))
	})

	It("deletes one record and lists of records", func() {
		request("DELETE", "/data/OUser/5:0", nil)
		Expect(recorder.Code).To(Equal(http.StatusOK))

		recorder = httptest.NewRecorder()
		request("DELETE", "/data/Customer", []string{"#12:0", "#5:1"})
		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(client.Records).To(BeEmpty())
	})

	It("refuses malformed identifiers", func() {
		request("GET", "/data/Customer/abc", nil)

		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
	})

	It("serves translations", func() {
		body := request("GET", "/i18n/ru", nil)

		data := body["data"].(map[string]interface{})
		Expect(data["language"]).To(Equal("ru"))
		Expect(data["messages"]).To(HaveKeyWithValue("SUCCESS", "Успешно"))
	})

	It("answers the probe", func() {
		body := request("GET", "/probe", nil)

		Expect(body["data"].(map[string]interface{})["status"]).To(Equal("healthy"))
	})

	Describe("journal failures", func() {
		setupWithJournal := func(linkJournal journal.Journal) {
			srv := server.New("localhost", "8081", appConfig.UrlPrefix)
			srv.SetAuthenticator(&auth.EmptyAuthenticator{})
			srv.SetClient(client)
			srv.SetNotifications(notifications)
			srv.SetJournal(linkJournal)
			httpServer = srv.Setup(appConfig)
		}

		It("answers 502 when the journal database is unreachable", func() {
			setupWithJournal(failingJournal{code: journal.ErrJournalUnavailable})

			body := request("GET", "/journal/30:0", nil)
			Expect(recorder.Code).To(Equal(http.StatusBadGateway))
			Expect(body["error"].(map[string]interface{})["Data"]).To(Equal("journal:unavailable"))
		})

		It("answers 500 when the journal can't be read", func() {
			setupWithJournal(failingJournal{code: journal.ErrJournalRead})

			request("GET", "/journal/30:0", nil)
			Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	It("rejects unauthenticated requests", func() {
		srv := server.New("localhost", "8081", appConfig.UrlPrefix)
		srv.SetAuthenticator(auth.NewTokenAuthenticator("http://localhost:1", nil))
		srv.SetClient(client)
		srv.SetNotifications(notifications)
		srv.SetJournal(linkJournal)
		httpServer = srv.Setup(appConfig)

		request("GET", "/meta/Customer", nil)
		Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
	})
})
