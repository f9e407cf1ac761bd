package rql_test

import (
	"crudconsole/server/orient"
	"crudconsole/server/rql"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("RQL to OrientDB SQL", func() {
	translator := rql.NewTranslator([]orient.Property{
		{Name: "name", Type: "STRING"},
		{Name: "age", Type: "INTEGER"},
		{Name: "active", Type: "BOOLEAN"},
		{Name: "customer", Type: "LINK", LinkedClass: "Customer"},
		{Name: "users", Type: "LINKSET", LinkedClass: "User"},
	})

	It("returns an empty query for an empty filter", func() {
		query, err := translator.Translate("  ")
		Expect(err).To(BeNil())
		Expect(query.Where).To(BeEmpty())
	})

	It("handles eq() with a quoted string", func() {
		query, err := translator.Translate("eq(name,Acme)")
		Expect(err).To(BeNil())
		Expect(query.Where).To(Equal("name = 'Acme'"))
	})

	It("converts values according to the property type", func() {
		query, err := translator.Translate("and(gt(age,18),eq(active,true),eq(customer,%2322:3))")
		Expect(err).To(BeNil())
		Expect(query.Where).To(Equal("(age > 18 AND active = true AND customer = #22:3)"))
	})

	It("handles null() with eq and ne", func() {
		query, err := translator.Translate("or(eq(name,null()),ne(customer,null()))")
		Expect(err).To(BeNil())
		Expect(query.Where).To(Equal("(name IS NULL OR customer IS NOT NULL)"))
	})

	It("handles not()", func() {
		query, err := translator.Translate("not(like(name,Ac%25))")
		Expect(err).To(BeNil())
		Expect(query.Where).To(Equal("NOT (name LIKE 'Ac%')"))
	})

	It("follows links with the dot notation", func() {
		query, err := translator.Translate("eq(customer.name,Acme)")
		Expect(err).To(BeNil())
		Expect(query.Where).To(Equal("customer.name = 'Acme'"))
	})

	It("handles in()", func() {
		query, err := translator.Translate("in(age,1,2)")
		Expect(err).To(BeNil())
		Expect(query.Where).To(Equal("age IN [1, 2]"))
	})

	It("rejects unknown properties", func() {
		_, err := translator.Translate("eq(password,1)")
		Expect(err).To(HaveOccurred())
		Expect(err.(*rql.RqlError).Code()).To(Equal(rql.ErrRQLWrongFieldName))
	})

	It("rejects paths through plain properties", func() {
		_, err := translator.Translate("eq(name.first,A)")
		Expect(err).To(HaveOccurred())
		Expect(err.(*rql.RqlError).Code()).To(Equal(rql.ErrRQLWrongFieldName))
	})

	It("rejects values of a wrong type", func() {
		_, err := translator.Translate("gt(age,old)")
		Expect(err).To(HaveOccurred())
		Expect(err.(*rql.RqlError).Code()).To(Equal(rql.ErrRQLWrongValue))
	})

	It("rejects null() for ordering operators", func() {
		_, err := translator.Translate("lt(age,null())")
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown operators", func() {
		_, err := translator.Translate("between(age,1,2)")
		Expect(err).To(HaveOccurred())
		Expect(err.(*rql.RqlError).Code()).To(Equal(rql.ErrRQLUnknownOperator))
	})

	It("applies the translated query to a select", func() {
		query := &rql.Query{
			Where:  "age > 18",
			Sort:   []rql.SortField{{Field: "name", Desc: true}},
			Limit:  10,
			Offset: 20,
		}
		sql := query.Apply(orient.Select().From("Customer")).String()
		Expect(sql).To(Equal("SELECT FROM Customer WHERE age > 18 ORDER BY name DESC SKIP 20 LIMIT 10"))
	})
})
