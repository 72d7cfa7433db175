package e2etest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// ErrUnexpectedStatus is returned when the server answers with another status than the test expected.
var ErrUnexpectedStatus = errors.New("unexpected status code")

func expectStatus(got, want int) error {
	if got != want {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedStatus, got, want)
	}
	return nil
}

// unsafeCookieJar keeps Secure cookies over plain HTTP so that the test server does not need TLS.
type unsafeCookieJar struct {
	jar *cookiejar.Jar
}

func newUnsafeCookieJar() (*unsafeCookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}
	return &unsafeCookieJar{jar: jar}, nil
}

func (j *unsafeCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	for _, cookie := range cookies {
		cookie.Secure = false
	}
	j.jar.SetCookies(u, cookies)
}

func (j *unsafeCookieJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}
