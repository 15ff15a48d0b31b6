package domain

var Tables = []interface{}{
	// Catalog
	&Product{},
	&Discount{},
	&Customer{},
	&Supplier{},
	// Ledger
	&Transaction{},
	&TransactionLog{},
}
