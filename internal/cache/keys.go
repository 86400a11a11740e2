package cache

import "fmt"

const keyPrefixLen = 8

func RateLimitKey(companyID int64) string {
	return fmt.Sprintf("sophia:ratelimit:%d", companyID)
}

func AgentAuthKey(companyID int64, keyPrefix string) string {
	return fmt.Sprintf("sophia:auth:%d:%s", companyID, keyPrefix)
}

// AgentAuthCompanyPrefix matches every cached agent credential of a company.
func AgentAuthCompanyPrefix(companyID int64) string {
	return fmt.Sprintf("sophia:auth:%d:", companyID)
}

// KeyPrefix returns the leading characters of an access key used to address
// its cache entry. Short keys are used whole.
func KeyPrefix(accessKey string) string {
	if len(accessKey) <= keyPrefixLen {
		return accessKey
	}
	return accessKey[:keyPrefixLen]
}
