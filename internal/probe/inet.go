package probe

import (
	"context"
	"io"
	"net/http"
)

// InternetReachable reports whether the internet actually works, not just
// whether an interface is up: the check endpoint must answer 204 within
// the configured timeout. Anything else, transport errors included, is
// unreachable.
func (p *Prober) InternetReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.CheckURL, nil)
	if err != nil {
		p.log.Errorf(logTag, "Building internet check request failed: %v", err)
		return false
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.log.Errorf(logTag, "Internet check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNoContent {
		p.log.Infof(logTag, "Internet connection is active")
		return true
	}
	p.log.Warnf(logTag, "Internet check answered %d, treating as offline", resp.StatusCode)
	return false
}
