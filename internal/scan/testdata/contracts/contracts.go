package contracts

import (
	"fmt"
	"time"
)

// Messages of the main screen.
//
//polyglot:contract bundle=messages
type Messages interface {
	// Cancel labels the cancel button.
	Cancel() string
	//polyglot:message default="OK"
	Ok() string
	NoDefaultKey() string //polyglot:message key=no.default.key
	YouHaveNRetries(n int) string
	Since(at time.Time, who string) string
}

//polyglot:contract bundle=specific
type Specific interface {
	Messages
	SpecificMessage() string
}

type (
	// Keys echoes resource keys.
	//
	//polyglot:contract handler=key
	Keys interface {
		//polyglot:message key=dialog.title
		Title() string
	}

	// Unmarked is no contract.
	Unmarked interface {
		Other() string
	}
)

//polyglot:contract
type Described interface {
	fmt.Stringer
	Unmarked
	Label(int) string
}
