package invalid

//polyglot:contract
type Counter interface {
	Count() int
}
