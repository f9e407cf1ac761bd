package crud_test

import (
	"crudconsole/server/auth"
	"crudconsole/server/crud"
	"crudconsole/server/grid"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Crud context", func() {
	user := &auth.User{Login: "admin", Language: "ru"}

	It("starts at the root without a level", func() {
		root := crud.NewContext("Customer", user)

		Expect(root.ClassName()).To(Equal("Customer"))
		Expect(root.Current()).To(BeNil())
		Expect(root.Language()).To(Equal("ru"))
		Expect(root.Pop()).To(Equal(root))
	})

	It("drills into linked grids without changing the parent", func() {
		root := crud.NewContext("Customer", user)
		contacts := root.WithLevel(grid.CrudLevel{ClassName: "Contact"})
		orders := contacts.WithLevel(grid.CrudLevel{ClassName: "Order"})

		Expect(root.Depth()).To(Equal(0))
		Expect(contacts.Depth()).To(Equal(1))
		Expect(orders.ClassName()).To(Equal("Order"))
		Expect(orders.Current().ClassName).To(Equal("Order"))

		back := orders.Pop()
		Expect(back.ClassName()).To(Equal("Contact"))
		Expect(back.Pop().ClassName()).To(Equal("Customer"))
		Expect(contacts.Current().ClassName).To(Equal("Contact"))
	})

	It("keeps siblings independent", func() {
		base := crud.NewContext("Customer", nil).WithLevel(grid.CrudLevel{ClassName: "Contact"})
		first := base.WithLevel(grid.CrudLevel{ClassName: "Order"})
		second := base.WithLevel(grid.CrudLevel{ClassName: "Invoice"})

		Expect(first.Current().ClassName).To(Equal("Order"))
		Expect(second.Current().ClassName).To(Equal("Invoice"))
		Expect(base.Levels()).To(HaveLen(1))
		Expect(second.Language()).To(BeEmpty())
	})
})
