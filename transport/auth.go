package transport

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidCookieFile  = errors.New("invalid cookie file")
	ErrMissingCredentials = errors.New("missing user and password")
)

type authKind uint8

const (
	authNone authKind = iota
	authUserPass
	authCookieFile
)

// Auth describes how a client authenticates to the server.
//
//   - NoAuth:     no Authorization header
//   - UserPass:   HTTP basic auth with fixed credentials
//   - CookieFile: HTTP basic auth read from a "user:password" cookie file, as written by
//     servers that generate a fresh secret on every start (e.g. bitcoind's .cookie)
type Auth struct {
	kind     authKind
	user     string
	password string
	path     string
}

func NoAuth() Auth {
	return Auth{}
}

func UserPass(user, password string) Auth {
	return Auth{kind: authUserPass, user: user, password: password}
}

func CookieFile(path string) Auth {
	return Auth{kind: authCookieFile, path: path}
}

func (a Auth) IsNone() bool {
	return a.kind == authNone
}

// Credentials resolves the user and password. The cookie file is read on every call,
// so a server restart that rotates the cookie is picked up by the next exchange.
func (a Auth) Credentials() (user, password string, err error) {
	switch a.kind {
	case authUserPass:
		return a.user, a.password, nil
	case authCookieFile:
		return readCookieFile(a.path)
	}
	return "", "", nil
}

// RequireAuth rejects NoAuth, for servers that always demand credentials.
func RequireAuth(a Auth) error {
	if a.IsNone() {
		return ErrMissingCredentials
	}
	return nil
}

func (a Auth) String() string {
	switch a.kind {
	case authUserPass:
		return "userpass(" + a.user + ")"
	case authCookieFile:
		return "cookiefile(" + a.path + ")"
	}
	return "none"
}

func readCookieFile(path string) (string, string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", "", fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", "", fmt.Errorf("read cookie file: %w", err)
		}
		return "", "", fmt.Errorf("%w: %s is empty", ErrInvalidCookieFile, path)
	}

	user, password, ok := strings.Cut(strings.TrimRight(sc.Text(), "\r"), ":")
	if !ok {
		return "", "", fmt.Errorf("%w: %s has no ':' separator", ErrInvalidCookieFile, path)
	}
	return user, password, nil
}
