package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// AddParamsToURI appends params to the query component of uri, or to its
// fragment component when fragment is true. The other component is left as is.
func AddParamsToURI(uri string, params Params, fragment bool) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	encoded := params.Encode()
	if encoded == "" {
		return uri, nil
	}
	if fragment {
		frag := u.EscapedFragment()
		if frag != "" {
			frag += "&"
		}
		u.Fragment = ""
		u.RawFragment = ""
		return u.String() + "#" + frag + encoded, nil
	}
	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += encoded
	return u.String(), nil
}

// QueryParams returns the parameters found in the query component of uri.
func QueryParams(uri string) (url.Values, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	return ParseForm(u.RawQuery)
}

// FragmentParams returns the parameters found in the fragment component of uri.
func FragmentParams(uri string) (url.Values, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	return ParseForm(u.EscapedFragment())
}

// IsAbsoluteURI reports whether uri carries a scheme and no fragment.
func IsAbsoluteURI(uri string) bool {
	if strings.Contains(uri, "#") {
		return false
	}
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return u.IsAbs()
}

// RequestURI returns the path and query of uri, as sent on the request line.
func RequestURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery, nil
	}
	return path, nil
}

// HostPort splits the authority of uri. When no port is given the scheme's
// default is used.
func HostPort(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	// u.Host is "dev.example.com:3000", Hostname() drops the ":3000"
	host := u.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("uri %q has no host", uri)
	}
	if port := u.Port(); port != "" {
		return host, port, nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return host, "80", nil
	case "https":
		return host, "443", nil
	default:
		return "", "", fmt.Errorf("no default port for scheme %q", u.Scheme)
	}
}
