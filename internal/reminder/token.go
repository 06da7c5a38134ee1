package reminder

import (
	"context"
	"sync"
)

// OnceToken wraps a TokenSource so the exchange happens at most once. The
// first result, token or error, is returned to every later caller. Scope it
// to a single run; the token is never kept beyond that.
type OnceToken struct {
	src   TokenSource
	once  sync.Once
	token string
	err   error
}

// NewOnceToken returns a memoizing wrapper around src.
func NewOnceToken(src TokenSource) *OnceToken {
	return &OnceToken{src: src}
}

// AccessToken returns the memoized token, exchanging it on first use.
// Failures are reported as *CredentialError.
func (o *OnceToken) AccessToken(ctx context.Context) (string, error) {
	o.once.Do(func() {
		o.token, o.err = o.src.AccessToken(ctx)
		if o.err == nil && o.token == "" {
			o.err = &CredentialError{Err: errEmptyToken}
		}
		if o.err != nil {
			o.err = asCredentialError(o.err)
		}
	})
	return o.token, o.err
}
