package gui

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/pkg/browser"
)

//go:embed static
var staticFiles embed.FS

// Handler はダッシュボードを配信するHTTPハンドラを返す
func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// go:embed が正しければ起こらない
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// Open は既定のブラウザでダッシュボードを開く
func Open(url string) error {
	return browser.OpenURL(url)
}
