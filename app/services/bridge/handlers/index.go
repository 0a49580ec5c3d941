package handlers

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/ardanlabs/lottery/foundation/web"
)

//go:embed assets/index.html
var indexPage []byte

func index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	web.SetStatusCode(ctx, http.StatusOK)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(indexPage)
	return err
}
