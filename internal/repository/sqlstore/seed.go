package sqlstore

import (
	"github.com/idpuniv/livewire/internal/entity"
	"github.com/shopspring/decimal"
)

// DemoProducts is the catalog loaded into an empty database.
func DemoProducts() []entity.Product {
	p := func(name, code string, price int64, stock int) entity.Product {
		return entity.Product{Name: name, Code: code, Price: decimal.NewFromInt(price), Stock: stock, Published: true}
	}
	return []entity.Product{
		p("Lait 1L UHT entier", "001", 800, 50),
		p("Pain de campagne", "002", 700, 30),
		p("Jus d'orange pressé 1L", "003", 1500, 25),
		p("Pâtes spaghetti 500g", "004", 1000, 40),
		p("Steak haché 15% MG", "005", 3200, 20),
		p("Tomates bio 1kg", "006", 2100, 35),
	}
}
