package grid_test

import (
	"context"
	"crudconsole/server/grid"
	"crudconsole/server/orient"
	"crudconsole/server/orient/orienttest"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Filter expression builder", func() {
	var (
		client *orienttest.Client
		level  *grid.CrudLevel
	)

	BeforeEach(func() {
		client = orienttest.NewClient()
		client.Add("#40:0", grid.BindingParameterClass, orient.Record{"fromProperty": "customer", "toProperty": "name", "operator": "="})
		client.Add("#40:1", grid.BindingParameterClass, orient.Record{"fromProperty": "customer", "toProperty": "active", "operator": "="})
		client.Add("#40:2", grid.BindingParameterClass, orient.Record{"fromProperty": "order", "toProperty": "total", "operator": ">"})

		level = &grid.CrudLevel{
			ClassName: "Contact",
			LinksetProperty: grid.LinksetProperty{
				BindingProperties: map[string]orient.RID{"a": "#40:0", "b": "#40:1", "c": "#40:2"},
				Data:              map[string]interface{}{"name": "Acme", "active": false, "total": float64(0)},
			},
		}
	})

	It("returns no expression without a level", func() {
		expression, err := grid.NewFilterBuilder(client, grid.PresentValues, 4).Build(context.Background(), nil)

		Expect(err).To(BeNil())
		Expect(expression).To(BeNil())
		Expect(client.Loads).To(BeEmpty())
	})

	It("drops falsy values under the truthy policy", func() {
		expression, err := grid.NewFilterBuilder(client, grid.TruthyValues, 4).Build(context.Background(), level)

		Expect(err).To(BeNil())
		Expect(expression.Clauses()).To(Equal([]string{"customer.name = 'Acme'"}))
	})

	It("counts one clause per truthy value", func() {
		level.LinksetProperty.Data["total"] = float64(10)

		expression, err := grid.NewFilterBuilder(client, grid.TruthyValues, 4).Build(context.Background(), level)

		Expect(err).To(BeNil())
		Expect(expression.Clauses()).To(HaveLen(2))
		Expect(expression.String()).To(Equal("customer.name = 'Acme' OR order.total > 10"))
	})

	It("keeps zero and false values under the present policy", func() {
		expression, err := grid.NewFilterBuilder(client, grid.PresentValues, 4).Build(context.Background(), level)

		Expect(err).To(BeNil())
		Expect(expression.Clauses()).To(Equal([]string{
			"customer.name = 'Acme'",
			"customer.active = false",
			"order.total > 0",
		}))
	})

	It("skips missing, null and empty values under both policies", func() {
		level.LinksetProperty.Data = map[string]interface{}{"name": "", "active": nil}

		for _, presence := range []grid.Presence{grid.PresentValues, grid.TruthyValues} {
			expression, err := grid.NewFilterBuilder(client, presence, 4).Build(context.Background(), level)
			Expect(err).To(BeNil())
			Expect(expression.Empty()).To(BeTrue())
			Expect(expression.String()).To(BeEmpty())
		}
	})

	It("skips bound parameters whose metadata record is missing", func() {
		level.LinksetProperty.BindingProperties["d"] = "#40:9"

		expression, err := grid.NewFilterBuilder(client, grid.PresentValues, 4).Build(context.Background(), level)

		Expect(err).To(BeNil())
		Expect(expression.Clauses()).To(HaveLen(3))
	})

	It("fails when a metadata record can't be fetched", func() {
		client.FailLoad["#40:1"] = errors.New("timeout")

		_, err := grid.NewFilterBuilder(client, grid.PresentValues, 4).Build(context.Background(), level)

		Expect(err).To(HaveOccurred())
	})

	It("links records by identifier without quoting", func() {
		level.LinksetProperty.Data = map[string]interface{}{"name": "#12:3"}

		expression, _ := grid.NewFilterBuilder(client, grid.PresentValues, 4).Build(context.Background(), level)

		Expect(expression.String()).To(Equal("customer.name = #12:3"))
	})

	It("reads levels saved with the old binding key", func() {
		var decoded grid.CrudLevel
		err := json.Unmarshal([]byte(`{"className":"Contact","linksetProperty":{"bingingProperties":{"a":"#40:0"},"data":{"name":"Acme"}}}`), &decoded)

		Expect(err).To(BeNil())
		Expect(decoded.LinksetProperty.BindingProperties).To(Equal(map[string]orient.RID{"a": "#40:0"}))
		Expect(decoded.LinksetProperty.Data).To(HaveKeyWithValue("name", "Acme"))
	})

	It("parses the presence policy by name", func() {
		Expect(grid.ParsePresence("truthy")).To(Equal(grid.TruthyValues))
		Expect(grid.ParsePresence("")).To(Equal(grid.PresentValues))
		Expect(grid.ParsePresence("present").String()).To(Equal("present"))
	})
})
