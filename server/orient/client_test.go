package orient_test

import (
	"context"
	"crudconsole/server/orient"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTP client", func() {
	var (
		server   *httptest.Server
		client   *orient.HTTPClient
		requests []*http.Request
		bodies   [][]byte
	)

	BeforeEach(func() {
		requests = nil
		bodies = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := ioutil.ReadAll(r.Body)
			requests = append(requests, r)
			bodies = append(bodies, body)

			user, password, ok := r.BasicAuth()
			if !ok || user != "admin" || password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			switch r.URL.Path {
			case "/document/smsc/10:1":
				w.Write([]byte(`{"@rid":"#10:1","@class":"User","name":"Acme"}`))
			case "/document/smsc/10:9":
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"errors":[{"code":404,"reason":404,"content":"Record #10:9 not found"}]}`))
			case "/query/smsc/sql/SELECT FROM User/-1":
				w.Write([]byte(`{"result":[{"@rid":"#10:1"},{"@rid":"#10:2"}]}`))
			case "/class/smsc/User":
				w.Write([]byte(`{"name":"User","records":2,"properties":[{"name":"roles","type":"LINKSET","linkedClass":"Role"}]}`))
			case "/batch/smsc":
				w.Write([]byte(`{"result":[{"@rid":"#10:1","@version":2}]}`))
			default:
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("unexpected " + r.URL.Path))
			}
		}))
		client = orient.NewHTTPClient(server.URL+"/", "smsc", "admin", "secret", time.Second)
	})

	AfterEach(func() {
		server.Close()
	})

	It("loads a record by identifier", func() {
		record, err := client.Load(context.Background(), "#10:1")
		Expect(err).To(BeNil())
		Expect(record.RID()).To(Equal(orient.RID("#10:1")))
		Expect(record.Class()).To(Equal("User"))
		Expect(record["name"]).To(Equal("Acme"))
	})

	It("reports missing records as not found", func() {
		_, err := client.Load(context.Background(), "#10:9")
		Expect(err).To(HaveOccurred())
		Expect(orient.IsNotFound(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("Record #10:9 not found"))
	})

	It("refuses malformed identifiers without a request", func() {
		_, err := client.Load(context.Background(), "users")
		Expect(err).To(HaveOccurred())
		Expect(requests).To(BeEmpty())
	})

	It("runs queries without a limit", func() {
		records, err := client.Query(context.Background(), "SELECT FROM User", 0)
		Expect(err).To(BeNil())
		Expect(records).To(HaveLen(2))
	})

	It("reads class information", func() {
		info, err := client.GetInfoClass(context.Background(), "User")
		Expect(err).To(BeNil())
		Expect(info.Records).To(Equal(2))
		Expect(info.Properties).To(ContainElement(HaveField("LinkedClass", "Role")))
	})

	It("submits batch operations as a transaction", func() {
		result, err := client.Batch(context.Background(), []orient.Operation{
			orient.NewUpdate(orient.Record{"@rid": "#10:1", "customer": "#22:3"}),
		})
		Expect(err).To(BeNil())
		Expect(result.Result).To(HaveLen(1))

		var sent map[string]interface{}
		Expect(json.Unmarshal(bodies[0], &sent)).To(Succeed())
		Expect(sent["transaction"]).To(BeTrue())
		operation := sent["operations"].([]interface{})[0].(map[string]interface{})
		Expect(operation["type"]).To(Equal("u"))
		Expect(operation["record"].(map[string]interface{})["customer"]).To(Equal("#22:3"))
	})

	It("rejects empty batches and unknown operation types", func() {
		_, err := client.Batch(context.Background(), nil)
		Expect(err).To(HaveOccurred())

		_, err = client.Batch(context.Background(), []orient.Operation{{Type: "x"}})
		Expect(err).To(HaveOccurred())
		Expect(requests).To(BeEmpty())
	})

	It("fails on bad credentials", func() {
		client = orient.NewHTTPClient(server.URL, "smsc", "admin", "wrong", time.Second)
		_, err := client.Load(context.Background(), "#10:1")
		Expect(err).To(HaveOccurred())
		Expect(orient.IsNotFound(err)).To(BeFalse())
	})
})

var _ = Describe("Batch type", func() {
	It("accepts verbose and wire names", func() {
		var operation orient.Operation
		Expect(json.Unmarshal([]byte(`{"type":"UPDATE","record":{"@rid":"#1:1"}}`), &operation)).To(Succeed())
		Expect(operation.Type).To(Equal(orient.BatchUpdate))

		Expect(json.Unmarshal([]byte(`{"type":"d"}`), &operation)).To(Succeed())
		Expect(operation.Type).To(Equal(orient.BatchDelete))

		Expect(json.Unmarshal([]byte(`{"type":"MERGE"}`), &operation)).NotTo(Succeed())
	})
})
