package baddirective

//polyglot:contract bundle=messages
type Messages interface {
	//polyglot:message color=red
	Ok() string
}
