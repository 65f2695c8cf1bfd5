package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/dittrime/stride/internal/tokenstore"
)

const shutdownTime = 5 * time.Second

type credentialResult struct {
	cred tokenstore.Credential
	err  error
}

// Flow runs the browser authorization flow for the CLI: it serves the
// configured redirect URI on loopback, opens the provider's consent page
// and waits for the callback to deliver an authorization code.
type Flow struct {
	auth  *Authenticator
	state string
}

func NewFlow(auth *Authenticator) (*Flow, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	return &Flow{auth: auth, state: state}, nil
}

func (f *Flow) Run(ctx context.Context) (tokenstore.Credential, error) {
	redirect, err := url.Parse(f.auth.config.RedirectURL)
	if err != nil {
		return tokenstore.Credential{}, fmt.Errorf("invalid redirect URI: %w", err)
	}

	resultCh := make(chan credentialResult, 1)

	server, err := f.startCallbackServer(ctx, redirect, resultCh)
	if err != nil {
		return tokenstore.Credential{}, fmt.Errorf("failed to start callback server: %w", err)
	}

	authURL := f.auth.AuthCodeURL(f.state)

	fmt.Printf("Opening browser for authorization...\n")
	fmt.Printf("If the browser doesn't open, visit:\n%s\n\n", authURL)

	if err := openBrowser(authURL); err != nil {
		fmt.Printf("Failed to open browser: %v\n", err)
	}

	select {
	case result := <-resultCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTime)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Warning: failed to shutdown server: %v\n", err)
		}

		return result.cred, result.err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTime)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)

		return tokenstore.Credential{}, ctx.Err()
	}
}

func (f *Flow) startCallbackServer(ctx context.Context, redirect *url.URL, resultCh chan<- credentialResult) (*http.Server, error) {
	mux := http.NewServeMux()

	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		cred, err := f.handleCallback(ctx, w, r)
		if err != nil {
			resultCh <- credentialResult{err: err}
			return
		}
		writeSuccessHTML(w)
		resultCh <- credentialResult{cred: cred}
	})

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			resultCh <- credentialResult{err: fmt.Errorf("server error: %w", err)}
		}
	}()

	return server, nil
}

func (f *Flow) handleCallback(ctx context.Context, w http.ResponseWriter, r *http.Request) (tokenstore.Credential, error) {
	if !ValidateState(f.state, r.URL.Query().Get("state")) {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return tokenstore.Credential{}, errors.New("invalid state parameter")
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		http.Error(w, fmt.Sprintf("OAuth error: %s", errParam), http.StatusBadRequest)
		return tokenstore.Credential{}, fmt.Errorf("%w: %s", ErrAuthorizationDenied, errParam)
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return tokenstore.Credential{}, errors.New("missing authorization code")
	}

	cred, err := f.auth.Exchange(ctx, code)
	if err != nil {
		http.Error(w, "Failed to exchange authorization code", http.StatusInternalServerError)
		return tokenstore.Credential{}, err
	}

	return cred, nil
}

func writeSuccessHTML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body>
<h1>Authorization Successful</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
