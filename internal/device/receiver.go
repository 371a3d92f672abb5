package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxPushBody bounds an encrypted message: a 4096 byte payload plus
// header and tag overhead.
const maxPushBody = 8 << 10

// Deliverer hands a decrypted payload to the delivery worker and waits
// until it is handled. *worker.Worker satisfies it.
type Deliverer interface {
	Push(ctx context.Context, data []byte) error
}

// Receiver is the HTTP side of the device: push services POST encrypted
// messages to the endpoints the device hands out.
type Receiver struct {
	device *Device
	worker Deliverer
	logger *slog.Logger
	now    func() time.Time
}

// NewReceiver creates a receiver delivering to w.
func NewReceiver(d *Device, w Deliverer, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{device: d, worker: w, logger: logger, now: time.Now}
}

// Routes returns the receiver's router.
func (rc *Receiver) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/push/{id}", rc.handlePush)
	return r
}

func (rc *Receiver) handlePush(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch := rc.device.lookup(id)
	if ch == nil {
		http.Error(w, "push subscription has expired or been removed", http.StatusGone)
		return
	}

	if err := verifyVAPID(r, rc.device.audience(), ch.creds.ServerKey, rc.now()); err != nil {
		status := http.StatusUnauthorized
		var ae *authError
		if errors.As(err, &ae) {
			status = ae.status
		}
		rc.logger.Warn("rejected push message", "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	if enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc != "aes128gcm" {
		http.Error(w, "unsupported content encoding", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBody))
	if err != nil {
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}
	payload, err := decrypt(ch.priv, ch.creds.Auth, body)
	if err != nil {
		rc.logger.Warn("undecryptable push message", "error", err)
		http.Error(w, "could not decrypt message", http.StatusBadRequest)
		return
	}

	if err := rc.worker.Push(r.Context(), payload); err != nil {
		rc.logger.Error("push delivery failed", "error", err)
		http.Error(w, "delivery failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ListenAndServe serves the receiver on addr until ctx is cancelled.
func (rc *Receiver) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return rc.Serve(ctx, ln)
}

// Serve serves the receiver on ln until ctx is cancelled.
func (rc *Receiver) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           rc.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		rc.logger.Info("push receiver listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
