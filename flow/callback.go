package flow

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CallbackPath is the local OAuth redirect path.
const CallbackPath = "/oauth/callback"

const callbackSuccessPage = `<html>
	<body>
		<h1>Authorization Successful!</h1>
		<p>You can close this window and return to the application.</p>
		<script>setTimeout(() => window.close(), 2000);</script>
	</body>
</html>
`

// callbackServer is a single-use loopback HTTP listener that captures the
// authorization code and state from the provider redirect.
type callbackServer struct {
	srv  *http.Server
	addr string

	mu    sync.Mutex
	code  string
	state string
}

// startCallbackServer binds a loopback listener on port. Port 0 picks a
// free port; RedirectURL reflects the bound address either way.
func startCallbackServer(port int) (*callbackServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind callback listener: %w", err)
	}

	cs := &callbackServer{addr: ln.Addr().String()}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, cs.handle)
	cs.srv = &http.Server{Handler: mux}

	go cs.srv.Serve(ln)
	return cs, nil
}

// RedirectURL returns the redirect URI registered for this flow attempt.
func (cs *callbackServer) RedirectURL() string {
	return "http://" + cs.addr + CallbackPath
}

// handle accepts exactly one code-bearing request. Requests without a code
// (including provider error redirects) get a client error and the flow keeps
// waiting, bounded by the overall timeout.
func (cs *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		log.Warn().
			Str("error", errParam).
			Str("description", query.Get("error_description")).
			Msg("authorization callback returned an error")
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}

	cs.mu.Lock()
	if cs.code == "" {
		cs.code = code
		cs.state = query.Get("state")
	}
	cs.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(callbackSuccessPage))
}

// result returns the captured code and state, if any.
func (cs *callbackServer) result() (code, state string, ok bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.code, cs.state, cs.code != ""
}

// wait polls for the callback until timeout.
func (cs *callbackServer) wait(ctx context.Context, timeout, pollInterval time.Duration) (code, state string, err error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if code, state, ok := cs.result(); ok {
			return code, state, nil
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-deadline.C:
			return "", "", ErrCallbackTimeout
		case <-tick.C:
		}
	}
}

// close tears the listener down. Called on every terminal state.
func (cs *callbackServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cs.srv.Shutdown(ctx); err != nil {
		cs.srv.Close()
	}
}
