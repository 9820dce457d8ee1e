package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// HostnameRegex validates RFC 1123 host names.
var HostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidateHost accepts a host name or an IP address, without scheme or port.
func ValidateHost(host, fieldName string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(host) > 253 {
		return fmt.Errorf("%s is too long (max 253 characters)", fieldName)
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return nil
	}
	if !HostnameRegex.MatchString(host) {
		return fmt.Errorf("%s %q is not a valid host name (no scheme or port allowed)", fieldName, host)
	}
	return nil
}

// ValidatePort checks the TCP port range.
func ValidatePort(port int, fieldName string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", fieldName, port)
	}
	return nil
}

// ValidateScheme accepts http and https.
func ValidateScheme(scheme, fieldName string) error {
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%s must be http or https, got %q", fieldName, scheme)
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr, fieldName string) error {
	if urlStr == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%s has invalid URL format: %w", fieldName, err)
	}
	if err := ValidateScheme(u.Scheme, fieldName+" scheme"); err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("%s must have a host", fieldName)
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateOneOf checks that value is one of the allowed options.
func ValidateOneOf(value, fieldName string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", fieldName, strings.Join(allowed, ", "), value)
}
