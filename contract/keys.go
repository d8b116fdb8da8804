package contract

import "strings"

// DeriveKey returns explicitKey when it is not blank, else the method name.
func DeriveKey(methodName, explicitKey string) string {
	if strings.TrimSpace(explicitKey) != "" {
		return explicitKey
	}
	return methodName
}

// DeriveBundleName returns the bundle override of c when it is not blank,
// else the fully qualified contract name.
func DeriveBundleName(c *Contract) string {
	if strings.TrimSpace(c.bundleName) != "" {
		return c.bundleName
	}
	return c.name
}
