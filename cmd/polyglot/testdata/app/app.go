package app

//polyglot:contract bundle=messages
type Messages interface {
	Cancel() string
	//polyglot:message default="OK"
	Ok() string
	//polyglot:message key=retries.left
	RetriesLeft(n int) string
}

// Plain is no message contract.
type Plain interface {
	Name() string
}
